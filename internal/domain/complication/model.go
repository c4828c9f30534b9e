package complication

import (
	"time"

	"github.com/google/uuid"
)

// ResponseSLA is the fixed response window for a non-emergency
// complication. Severity-dependent windows were considered and deferred;
// keeping a single constant leaves one place to change.
const ResponseSLA = 18 * time.Hour

// ComplicationReport is one triaged post-operative complaint. It is
// terminal on resolution or on breach escalation; resolving after an
// escalation has fired is still permitted and only marks the terminal
// state.
type ComplicationReport struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterID uuid.UUID  `db:"encounter_id" json:"encounter_id"`
	Severity    Severity   `db:"severity" json:"severity"`
	SymptomPath []string   `db:"symptom_path" json:"symptom_path"`
	Description string     `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	SLADeadline time.Time  `db:"sla_deadline" json:"sla_deadline"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	Escalated   bool       `db:"escalated" json:"escalated"`
	EscalatedAt *time.Time `db:"escalated_at" json:"escalated_at,omitempty"`
}

// Open reports whether the complication still awaits resolution or
// escalation.
func (r *ComplicationReport) Open() bool {
	return r.ResolvedAt == nil && !r.Escalated
}
