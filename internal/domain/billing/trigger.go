package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/inventory"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/events"
)

// TreatmentMarker flips a treatment record's billed flag atomically and
// reports whether the caller won the flip. The encounter repository
// implements it.
type TreatmentMarker interface {
	MarkBilled(ctx context.Context, treatmentID uuid.UUID) (bool, error)
}

// StockDeductor is the inventory surface the trigger consumes.
type StockDeductor interface {
	Deduct(ctx context.Context, code string, qty int) (*inventory.Deduction, error)
}

// Trigger maps one completed procedure to its billing line and stock
// deductions. It fires at most once per treatment record.
type Trigger struct {
	repo   Repository
	stock  StockDeductor
	marker TreatmentMarker
	bus    events.Publisher
	log    zerolog.Logger
}

func NewTrigger(repo Repository, stock StockDeductor, marker TreatmentMarker, bus events.Publisher, log zerolog.Logger) *Trigger {
	return &Trigger{repo: repo, stock: stock, marker: marker, bus: bus, log: log}
}

// Fire runs the automation for one procedure completion. The billed flag is
// claimed first: a lost claim means another invocation already fired, and
// this call is a silent no-op. A missing tariff price degrades to a
// zero-amount line; inventory faults are scoped to their own consumable
// line. None of these ever surface as an error to the clinical caller.
func (t *Trigger) Fire(ctx context.Context, pc ProcedureCompletion) error {
	won, err := t.marker.MarkBilled(ctx, pc.TreatmentID)
	if err != nil {
		return fmt.Errorf("claim billed flag: %w", err)
	}
	if !won {
		t.log.Debug().Str("treatment_id", pc.TreatmentID.String()).
			Msg("automation already fired for treatment, skipping")
		return nil
	}

	line := BillingLine{
		TreatmentID:   pc.TreatmentID,
		ProcedureCode: pc.ProcedureCode,
		Currency:      "INR",
	}
	if tariff, err := t.repo.GetTariff(ctx, pc.ProcedureCode); err != nil {
		t.log.Warn().Err(err).Str("procedure_code", pc.ProcedureCode).
			Msg("price not found, emitting zero-amount billing line")
	} else {
		line.Amount = tariff.UnitPrice
		line.Currency = tariff.Currency
		line.PriceFound = true
	}
	t.bus.Publish(ctx, events.New(events.BillingLineRequested, pc.PatientID, pc.EncounterID, line))

	t.deductBOM(ctx, pc)
	return nil
}

func (t *Trigger) deductBOM(ctx context.Context, pc ProcedureCompletion) {
	lines, err := t.repo.GetBOM(ctx, pc.ProcedureCode)
	if err != nil {
		t.log.Error().Err(err).Str("procedure_code", pc.ProcedureCode).
			Msg("bill of materials lookup failed, skipping deductions")
		return
	}

	for _, l := range lines {
		d, err := t.stock.Deduct(ctx, l.ConsumableCode, l.Quantity)
		if errors.Is(err, inventory.ErrInsufficientStock) {
			t.log.Warn().Str("consumable", l.ConsumableCode).Int("requested", l.Quantity).
				Msg("stock deduction rejected, would go negative")
			t.bus.Publish(ctx, events.New(events.StockDepletionError, pc.PatientID, pc.EncounterID, map[string]interface{}{
				"consumable_code": l.ConsumableCode,
				"requested":       l.Quantity,
			}))
			continue
		}
		if err != nil {
			t.log.Error().Err(err).Str("consumable", l.ConsumableCode).
				Msg("stock deduction failed")
			continue
		}

		t.bus.Publish(ctx, events.New(events.StockDeductionRequested, pc.PatientID, pc.EncounterID, d))
		if d.LowStock {
			t.bus.Publish(ctx, events.New(events.LowStockWarning, pc.PatientID, pc.EncounterID, map[string]interface{}{
				"consumable_code": d.ConsumableCode,
				"remaining":       d.Remaining,
			}))
		}
	}
}
