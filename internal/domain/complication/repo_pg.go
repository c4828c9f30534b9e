package complication

import (
	"context"
	"time"

	"github.com/google/uuid"
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

const reportCols = `id, patient_id, encounter_id, severity, symptom_path, description,
	created_at, sla_deadline, resolved_at, escalated, escalated_at`

func (r *repoPG) Create(ctx context.Context, rep *ComplicationReport) error {
	rep.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO complication_report (
			id, patient_id, encounter_id, severity, symptom_path, description,
			created_at, sla_deadline, escalated, escalated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rep.ID, rep.PatientID, rep.EncounterID, string(rep.Severity),
		rep.SymptomPath, rep.Description, rep.CreatedAt, rep.SLADeadline,
		rep.Escalated, rep.EscalatedAt,
	)
	return err
}

func (r *repoPG) scanReport(row pgx.Row) (*ComplicationReport, error) {
	rep := &ComplicationReport{}
	var severity string
	err := row.Scan(
		&rep.ID, &rep.PatientID, &rep.EncounterID, &severity, &rep.SymptomPath,
		&rep.Description, &rep.CreatedAt, &rep.SLADeadline, &rep.ResolvedAt,
		&rep.Escalated, &rep.EscalatedAt,
	)
	if err != nil {
		return nil, err
	}
	rep.Severity = Severity(severity)
	return rep, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ComplicationReport, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM complication_report WHERE id = $1`, id)
	return r.scanReport(row)
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*ComplicationReport, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM complication_report`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reportCols+` FROM complication_report
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*ComplicationReport
	for rows.Next() {
		rep, err := r.scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	return out, total, rows.Err()
}

func (r *repoPG) ListOpen(ctx context.Context) ([]*ComplicationReport, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reportCols+` FROM complication_report
		 WHERE resolved_at IS NULL AND escalated = FALSE
		 ORDER BY sla_deadline ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ComplicationReport
	for rows.Next() {
		rep, err := r.scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *repoPG) MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE complication_report
		SET resolved_at = $2
		WHERE id = $1 AND resolved_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) MarkEscalated(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE complication_report
		SET escalated = TRUE, escalated_at = $2
		WHERE id = $1 AND escalated = FALSE AND resolved_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
