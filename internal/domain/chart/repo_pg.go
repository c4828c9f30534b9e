package chart

import (
	"context"
	"encoding/json"
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

func (r *repoPG) CreateChart(ctx context.Context, c *Chart) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO tooth_chart (id, encounter_id, patient_id, mode)
		VALUES ($1, $2, $3, $4)`,
		c.ID, c.EncounterID, c.PatientID, string(c.Mode),
	)
	return err
}

func (r *repoPG) GetByEncounter(ctx context.Context, encounterID uuid.UUID) (*Chart, error) {
	c := &Chart{Teeth: make(map[string]*Tooth)}
	var mode string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, encounter_id, patient_id, mode, created_at, updated_at
		FROM tooth_chart WHERE encounter_id = $1`, encounterID,
	).Scan(&c.ID, &c.EncounterID, &c.PatientID, &mode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Mode = DentitionMode(mode)

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT fdi, status, mesial, distal, occlusal, buccal, lingual,
		       notes, procedure_ids, probing_code, bleeding, updated_at
		FROM tooth_state WHERE chart_id = $1`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t := &Tooth{}
		if err := rows.Scan(
			&t.FDI, &t.Status,
			&t.Surfaces.Mesial, &t.Surfaces.Distal, &t.Surfaces.Occlusal,
			&t.Surfaces.Buccal, &t.Surfaces.Lingual,
			&t.Notes, &t.ProcedureIDs, &t.ProbingCode, &t.Bleeding, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		c.Teeth[t.FDI] = t
	}
	return c, rows.Err()
}

func (r *repoPG) ApplyToothUpdate(ctx context.Context, c *Chart, tooth *Tooth, snap *IndexSnapshot) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		_, err := q.Exec(ctx, `
			INSERT INTO tooth_state (
				chart_id, fdi, status, mesial, distal, occlusal, buccal, lingual,
				notes, procedure_ids, probing_code, bleeding, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
			ON CONFLICT (chart_id, fdi) DO UPDATE SET
				status=$3, mesial=$4, distal=$5, occlusal=$6, buccal=$7, lingual=$8,
				notes=$9, procedure_ids=$10, probing_code=$11, bleeding=$12, updated_at=NOW()`,
			c.ID, tooth.FDI, tooth.Status,
			tooth.Surfaces.Mesial, tooth.Surfaces.Distal, tooth.Surfaces.Occlusal,
			tooth.Surfaces.Buccal, tooth.Surfaces.Lingual,
			tooth.Notes, tooth.ProcedureIDs, tooth.ProbingCode, tooth.Bleeding,
		)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO index_snapshot (chart_id, snapshot, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (chart_id) DO UPDATE SET snapshot=$2, updated_at=NOW()`,
			c.ID, payload,
		); err != nil {
			return err
		}

		_, err = q.Exec(ctx, `UPDATE tooth_chart SET updated_at=NOW() WHERE id=$1`, c.ID)
		return err
	})
}

func (r *repoPG) GetSnapshot(ctx context.Context, encounterID uuid.UUID) (*IndexSnapshot, error) {
	var payload []byte
	var updatedAt time.Time
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT s.snapshot, s.updated_at
		FROM index_snapshot s
		JOIN tooth_chart c ON c.id = s.chart_id
		WHERE c.encounter_id = $1`, encounterID,
	).Scan(&payload, &updatedAt)
	if err != nil {
		return nil, err
	}

	snap := &IndexSnapshot{}
	if err := json.Unmarshal(payload, snap); err != nil {
		return nil, err
	}
	return snap, nil
}
