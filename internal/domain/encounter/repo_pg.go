package encounter

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/db"
)

// ErrStageConflict means the encounter moved stages under the caller.
var ErrStageConflict = errors.New("encounter stage changed concurrently")

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

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	enc.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO encounter (id, patient_id, doctor_id, patient_age, stage)
		VALUES ($1, $2, $3, $4, $5)`,
		enc.ID, enc.PatientID, enc.DoctorID, enc.PatientAge, string(enc.Stage),
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	enc := &Encounter{}
	var stage string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, patient_age, stage, abandon_reason,
		       closed_at, created_at, updated_at
		FROM encounter WHERE id = $1`, id,
	).Scan(
		&enc.ID, &enc.PatientID, &enc.DoctorID, &enc.PatientAge, &stage,
		&enc.AbandonReason, &enc.ClosedAt, &enc.CreatedAt, &enc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	enc.Stage = Stage(stage)
	return enc, nil
}

func (r *repoPG) UpdateStage(ctx context.Context, enc *Encounter, from Stage) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounter
		SET stage=$2, abandon_reason=$3, closed_at=$4, updated_at=NOW()
		WHERE id=$1 AND stage=$5`,
		enc.ID, string(enc.Stage), enc.AbandonReason, enc.ClosedAt, string(from),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStageConflict
	}
	return nil
}

func (r *repoPG) AddTransition(ctx context.Context, tr *StageTransition) error {
	tr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO encounter_stage_history (id, encounter_id, from_stage, to_stage, reason)
		VALUES ($1, $2, $3, $4, $5)`,
		tr.ID, tr.EncounterID, string(tr.FromStage), string(tr.ToStage), tr.Reason,
	)
	return err
}

func (r *repoPG) StageHistory(ctx context.Context, encounterID uuid.UUID) ([]*StageTransition, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, encounter_id, from_stage, to_stage, reason, at
		FROM encounter_stage_history
		WHERE encounter_id = $1 ORDER BY at ASC`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StageTransition
	for rows.Next() {
		tr := &StageTransition{}
		var from, to string
		if err := rows.Scan(&tr.ID, &tr.EncounterID, &from, &to, &tr.Reason, &tr.At); err != nil {
			return nil, err
		}
		tr.FromStage, tr.ToStage = Stage(from), Stage(to)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (r *repoPG) AddDiagnosis(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO encounter_diagnosis (id, encounter_id, text)
		VALUES ($1, $2, $3)`,
		d.ID, d.EncounterID, d.Text,
	)
	return err
}

func (r *repoPG) ListDiagnoses(ctx context.Context, encounterID uuid.UUID) ([]*Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, encounter_id, text, created_at
		FROM encounter_diagnosis
		WHERE encounter_id = $1 ORDER BY created_at ASC`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Diagnosis
	for rows.Next() {
		d := &Diagnosis{}
		if err := rows.Scan(&d.ID, &d.EncounterID, &d.Text, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const treatmentCols = `id, encounter_id, patient_id, doctor_id, procedure_code, category,
	teeth, status, billed_already, session_number, total_sessions,
	next_session_at, completed_at, created_at, updated_at`

func (r *repoPG) CreateTreatment(ctx context.Context, rec *TreatmentRecord) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO treatment_record (
			id, encounter_id, patient_id, doctor_id, procedure_code, category,
			teeth, status, session_number, total_sessions, next_session_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.EncounterID, rec.PatientID, rec.DoctorID, rec.ProcedureCode,
		rec.Category, rec.Teeth, rec.Status, rec.SessionNumber, rec.TotalSessions,
		rec.NextSessionAt,
	)
	return err
}

func (r *repoPG) scanTreatment(row pgx.Row) (*TreatmentRecord, error) {
	rec := &TreatmentRecord{}
	err := row.Scan(
		&rec.ID, &rec.EncounterID, &rec.PatientID, &rec.DoctorID,
		&rec.ProcedureCode, &rec.Category, &rec.Teeth, &rec.Status,
		&rec.BilledAlready, &rec.SessionNumber, &rec.TotalSessions,
		&rec.NextSessionAt, &rec.CompletedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) GetTreatment(ctx context.Context, id uuid.UUID) (*TreatmentRecord, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+treatmentCols+` FROM treatment_record WHERE id = $1`, id)
	return r.scanTreatment(row)
}

func (r *repoPG) ListTreatments(ctx context.Context, encounterID uuid.UUID) ([]*TreatmentRecord, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+treatmentCols+` FROM treatment_record
		 WHERE encounter_id = $1 ORDER BY created_at ASC`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TreatmentRecord
	for rows.Next() {
		rec, err := r.scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repoPG) UpdateTreatment(ctx context.Context, rec *TreatmentRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_record
		SET status=$2, session_number=$3, total_sessions=$4, next_session_at=$5,
		    completed_at=$6, updated_at=NOW()
		WHERE id=$1`,
		rec.ID, rec.Status, rec.SessionNumber, rec.TotalSessions,
		rec.NextSessionAt, rec.CompletedAt,
	)
	return err
}

func (r *repoPG) MarkBilled(ctx context.Context, treatmentID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_record
		SET billed_already = TRUE, updated_at = NOW()
		WHERE id = $1 AND billed_already = FALSE`, treatmentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
