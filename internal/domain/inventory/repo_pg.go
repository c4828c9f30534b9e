package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) CreateConsumable(ctx context.Context, c *Consumable) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		if _, err := q.Exec(ctx, `
			INSERT INTO consumable (code, name, unit, reorder_threshold)
			VALUES ($1, $2, $3, $4)`,
			c.Code, c.Name, c.Unit, c.ReorderThreshold,
		); err != nil {
			return err
		}
		_, err := q.Exec(ctx, `
			INSERT INTO stock_level (consumable_code, quantity)
			VALUES ($1, 0)`, c.Code)
		return err
	})
}

func (r *repoPG) GetConsumable(ctx context.Context, code string) (*Consumable, error) {
	c := &Consumable{}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT code, name, unit, reorder_threshold, created_at, updated_at
		FROM consumable WHERE code = $1`, code,
	).Scan(&c.Code, &c.Name, &c.Unit, &c.ReorderThreshold, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repoPG) ListConsumables(ctx context.Context, limit, offset int) ([]*Consumable, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM consumable`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT code, name, unit, reorder_threshold, created_at, updated_at
		FROM consumable ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Consumable
	for rows.Next() {
		c := &Consumable{}
		if err := rows.Scan(&c.Code, &c.Name, &c.Unit, &c.ReorderThreshold, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repoPG) GetStock(ctx context.Context, code string) (*StockLevel, error) {
	s := &StockLevel{}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT consumable_code, quantity, updated_at
		FROM stock_level WHERE consumable_code = $1`, code,
	).Scan(&s.ConsumableCode, &s.Quantity, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repoPG) Restock(ctx context.Context, code string, qty int) (int, error) {
	var remaining int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE stock_level
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE consumable_code = $1
		RETURNING quantity`, code, qty,
	).Scan(&remaining)
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *repoPG) Deduct(ctx context.Context, code string, qty int) (int, error) {
	var remaining int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE stock_level
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE consumable_code = $1 AND quantity >= $2
		RETURNING quantity`, code, qty,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientStock
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}
