package encounter

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	// UpdateStage moves the encounter to `to` only while it still sits at
	// `from`; a stale caller gets ErrStageConflict and mutates nothing.
	UpdateStage(ctx context.Context, enc *Encounter, from Stage) error
	AddTransition(ctx context.Context, tr *StageTransition) error
	StageHistory(ctx context.Context, encounterID uuid.UUID) ([]*StageTransition, error)

	AddDiagnosis(ctx context.Context, d *Diagnosis) error
	ListDiagnoses(ctx context.Context, encounterID uuid.UUID) ([]*Diagnosis, error)

	CreateTreatment(ctx context.Context, rec *TreatmentRecord) error
	GetTreatment(ctx context.Context, id uuid.UUID) (*TreatmentRecord, error)
	ListTreatments(ctx context.Context, encounterID uuid.UUID) ([]*TreatmentRecord, error)
	UpdateTreatment(ctx context.Context, rec *TreatmentRecord) error
	// MarkBilled flips billed_already false to true as one atomic step and
	// reports whether this call won the flip. The billing trigger's
	// at-most-once guarantee rests on this.
	MarkBilled(ctx context.Context, treatmentID uuid.UUID) (bool, error)
}
