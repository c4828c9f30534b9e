package billing

import (
	"time"

	"github.com/google/uuid"
)

// TariffItem maps a procedure code to its unit price. Prices are stored in
// minor currency units (paise).
type TariffItem struct {
	ProcedureCode string    `db:"procedure_code" json:"procedure_code"`
	Description   string    `db:"description" json:"description,omitempty"`
	UnitPrice     int64     `db:"unit_price" json:"unit_price"`
	Currency      string    `db:"currency" json:"currency"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// BOMLine is one consumable requirement of a procedure's bill of materials.
type BOMLine struct {
	ProcedureCode  string `db:"procedure_code" json:"procedure_code"`
	ConsumableCode string `db:"consumable_code" json:"consumable_code"`
	Quantity       int    `db:"quantity" json:"quantity"`
}

// ProcedureCompletion is the fact the trigger fires on: one treatment record
// reaching completed.
type ProcedureCompletion struct {
	TreatmentID   uuid.UUID `json:"treatment_id"`
	EncounterID   uuid.UUID `json:"encounter_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	ProcedureCode string    `json:"procedure_code"`
}

// BillingLine is the payload of a BillingLineItemRequested event. PriceFound
// false marks a zero-amount line emitted after a tariff miss.
type BillingLine struct {
	TreatmentID   uuid.UUID `json:"treatment_id"`
	ProcedureCode string    `json:"procedure_code"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	PriceFound    bool      `json:"price_found"`
}
