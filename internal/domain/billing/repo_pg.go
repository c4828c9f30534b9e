package billing

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

func (r *repoPG) UpsertTariff(ctx context.Context, t *TariffItem) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO tariff_item (procedure_code, description, unit_price, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (procedure_code) DO UPDATE SET
			description=$2, unit_price=$3, currency=$4, updated_at=NOW()`,
		t.ProcedureCode, t.Description, t.UnitPrice, t.Currency,
	)
	return err
}

func (r *repoPG) GetTariff(ctx context.Context, procedureCode string) (*TariffItem, error) {
	t := &TariffItem{}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT procedure_code, description, unit_price, currency, created_at, updated_at
		FROM tariff_item WHERE procedure_code = $1`, procedureCode,
	).Scan(&t.ProcedureCode, &t.Description, &t.UnitPrice, &t.Currency, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTariffNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repoPG) ListTariffs(ctx context.Context, limit, offset int) ([]*TariffItem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM tariff_item`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT procedure_code, description, unit_price, currency, created_at, updated_at
		FROM tariff_item ORDER BY procedure_code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*TariffItem
	for rows.Next() {
		t := &TariffItem{}
		if err := rows.Scan(&t.ProcedureCode, &t.Description, &t.UnitPrice, &t.Currency, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *repoPG) SetBOM(ctx context.Context, procedureCode string, lines []BOMLine) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		if _, err := q.Exec(ctx,
			`DELETE FROM bom_line WHERE procedure_code = $1`, procedureCode); err != nil {
			return err
		}
		for _, l := range lines {
			if _, err := q.Exec(ctx, `
				INSERT INTO bom_line (procedure_code, consumable_code, quantity)
				VALUES ($1, $2, $3)`,
				procedureCode, l.ConsumableCode, l.Quantity,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) GetBOM(ctx context.Context, procedureCode string) ([]BOMLine, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT procedure_code, consumable_code, quantity
		FROM bom_line WHERE procedure_code = $1 ORDER BY consumable_code`, procedureCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BOMLine
	for rows.Next() {
		var l BOMLine
		if err := rows.Scan(&l.ProcedureCode, &l.ConsumableCode, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
