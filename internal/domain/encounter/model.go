package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Stage is one step of the fixed visit sequence.
type Stage string

const (
	StageIntake        Stage = "INTAKE"
	StageExamination   Stage = "EXAMINATION"
	StageInvestigation Stage = "INVESTIGATION"
	StageDiagnosis     Stage = "DIAGNOSIS"
	StageTreatmentPlan Stage = "TREATMENT_PLAN"
	StageExecution     Stage = "EXECUTION"
	StagePostOp        Stage = "POST_OP"
	StageClosed        Stage = "CLOSED"
	StageAbandoned     Stage = "ABANDONED"
)

// stageOrder is the only legal forward path. Skipping is never permitted;
// the sole exit from the path is the abandon transition.
var stageOrder = []Stage{
	StageIntake,
	StageExamination,
	StageInvestigation,
	StageDiagnosis,
	StageTreatmentPlan,
	StageExecution,
	StagePostOp,
	StageClosed,
}

// Next returns the stage following s on the forward path, or "" when s is
// terminal or unknown.
func (s Stage) Next() Stage {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return ""
}

// Terminal reports whether no further transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageClosed || s == StageAbandoned
}

// Encounter is the context of one active visit. It owns the visit's tooth
// chart and treatment records for its whole lifetime.
type Encounter struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientAge    int        `db:"patient_age" json:"patient_age"`
	Stage         Stage      `db:"stage" json:"stage"`
	AbandonReason string     `db:"abandon_reason" json:"abandon_reason,omitempty"`
	ClosedAt      *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Diagnosis is one free-text diagnosis line attached to the visit.
type Diagnosis struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EncounterID uuid.UUID `db:"encounter_id" json:"encounter_id"`
	Text        string    `db:"text" json:"text"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Treatment statuses.
const (
	TreatmentPlanned    = "planned"
	TreatmentInProgress = "in_progress"
	TreatmentCompleted  = "completed"
	TreatmentCancelled  = "cancelled"
)

// TreatmentRecord is one planned or executed procedure within a visit.
// Once BilledAlready is set the record's financial fields are frozen; only
// annotation fields may still change.
type TreatmentRecord struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	EncounterID   uuid.UUID  `db:"encounter_id" json:"encounter_id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ProcedureCode string     `db:"procedure_code" json:"procedure_code"`
	Category      string     `db:"category" json:"category,omitempty"`
	Teeth         []string   `db:"teeth" json:"teeth,omitempty"`
	Status        string     `db:"status" json:"status"`
	BilledAlready bool       `db:"billed_already" json:"billed_already"`
	SessionNumber int        `db:"session_number" json:"session_number,omitempty"`
	TotalSessions int        `db:"total_sessions" json:"total_sessions,omitempty"`
	NextSessionAt *time.Time `db:"next_session_at" json:"next_session_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// StageTransition is one append-only stage-history row.
type StageTransition struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EncounterID uuid.UUID `db:"encounter_id" json:"encounter_id"`
	FromStage   Stage     `db:"from_stage" json:"from_stage"`
	ToStage     Stage     `db:"to_stage" json:"to_stage"`
	Reason      string    `db:"reason" json:"reason,omitempty"`
	At          time.Time `db:"at" json:"at"`
}
