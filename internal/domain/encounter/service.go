package encounter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/billing"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/chart"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/events"
)

var (
	// ErrStageIncomplete rejects an advance while the current stage's
	// completeness predicate does not hold. No state is mutated.
	ErrStageIncomplete = errors.New("current stage is not complete")
	// ErrStageMismatch rejects an operation outside its valid stages.
	ErrStageMismatch = errors.New("operation not valid in current stage")
	// ErrEncounterTerminal rejects mutation of a closed or abandoned visit.
	ErrEncounterTerminal = errors.New("encounter is terminal")
	// ErrTreatmentCancelled rejects completing a cancelled record.
	ErrTreatmentCancelled = errors.New("treatment record is cancelled")
)

// ChartService is the charting surface the state machine drives.
type ChartService interface {
	CreateChart(ctx context.Context, encounterID, patientID uuid.UUID, ageYears int) (*chart.Chart, error)
	ApplyEvent(ctx context.Context, encounterID uuid.UUID, ev chart.ToothEvent) (*chart.IndexSnapshot, error)
	ChartedCount(ctx context.Context, encounterID uuid.UUID) (int, error)
}

// AutomationTrigger fires the billing/stock side effects of one completed
// procedure. It owns the at-most-once guarantee.
type AutomationTrigger interface {
	Fire(ctx context.Context, pc billing.ProcedureCompletion) error
}

type Service struct {
	repo    Repository
	charts  ChartService
	trigger AutomationTrigger
	bus     events.Publisher
	log     zerolog.Logger
}

func NewService(repo Repository, charts ChartService, trigger AutomationTrigger, bus events.Publisher, log zerolog.Logger) *Service {
	return &Service{repo: repo, charts: charts, trigger: trigger, bus: bus, log: log}
}

// Begin opens a visit at INTAKE and creates its tooth chart.
func (s *Service) Begin(ctx context.Context, patientID, doctorID uuid.UUID, patientAge int) (*Encounter, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	if patientAge < 0 {
		return nil, fmt.Errorf("patient_age must not be negative")
	}

	enc := &Encounter{
		PatientID:  patientID,
		DoctorID:   doctorID,
		PatientAge: patientAge,
		Stage:      StageIntake,
	}
	if err := s.repo.Create(ctx, enc); err != nil {
		return nil, fmt.Errorf("create encounter: %w", err)
	}
	if _, err := s.charts.CreateChart(ctx, enc.ID, patientID, patientAge); err != nil {
		return nil, fmt.Errorf("create chart: %w", err)
	}
	if err := s.repo.AddTransition(ctx, &StageTransition{
		EncounterID: enc.ID,
		ToStage:     StageIntake,
	}); err != nil {
		return nil, fmt.Errorf("record opening transition: %w", err)
	}
	return enc, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) StageHistory(ctx context.Context, id uuid.UUID) ([]*StageTransition, error) {
	return s.repo.StageHistory(ctx, id)
}

// Advance moves the visit to the next stage if the current stage's
// completeness predicate holds. There is no skipping.
func (s *Service) Advance(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load encounter: %w", err)
	}
	if enc.Stage.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrEncounterTerminal, enc.Stage)
	}

	if err := s.stageComplete(ctx, enc); err != nil {
		return nil, err
	}

	from := enc.Stage
	enc.Stage = from.Next()
	if enc.Stage == StageClosed {
		now := time.Now().UTC()
		enc.ClosedAt = &now
	}
	if err := s.transition(ctx, enc, from, ""); err != nil {
		return nil, err
	}
	return enc, nil
}

// Abandon exits the visit from any non-terminal stage. Incomplete treatment
// records emit no billing or stock effects.
func (s *Service) Abandon(ctx context.Context, id uuid.UUID, reason string) (*Encounter, error) {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load encounter: %w", err)
	}
	if enc.Stage.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrEncounterTerminal, enc.Stage)
	}

	from := enc.Stage
	enc.Stage = StageAbandoned
	enc.AbandonReason = reason
	now := time.Now().UTC()
	enc.ClosedAt = &now
	if err := s.transition(ctx, enc, from, reason); err != nil {
		return nil, err
	}
	return enc, nil
}

func (s *Service) transition(ctx context.Context, enc *Encounter, from Stage, reason string) error {
	if err := s.repo.UpdateStage(ctx, enc, from); err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	if err := s.repo.AddTransition(ctx, &StageTransition{
		EncounterID: enc.ID,
		FromStage:   from,
		ToStage:     enc.Stage,
		Reason:      reason,
	}); err != nil {
		return fmt.Errorf("record transition: %w", err)
	}

	s.log.Info().Str("encounter_id", enc.ID.String()).
		Str("from", string(from)).Str("to", string(enc.Stage)).
		Msg("encounter stage changed")
	s.bus.Publish(ctx, events.New(events.StageChanged, enc.PatientID, enc.ID, map[string]interface{}{
		"from":   string(from),
		"to":     string(enc.Stage),
		"reason": reason,
	}))
	return nil
}

// stageComplete checks the completeness predicate of the encounter's
// current stage.
func (s *Service) stageComplete(ctx context.Context, enc *Encounter) error {
	switch enc.Stage {
	case StageExamination:
		n, err := s.charts.ChartedCount(ctx, enc.ID)
		if err != nil {
			return fmt.Errorf("count charted teeth: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: no tooth charted yet", ErrStageIncomplete)
		}
	case StageDiagnosis:
		diags, err := s.repo.ListDiagnoses(ctx, enc.ID)
		if err != nil {
			return fmt.Errorf("list diagnoses: %w", err)
		}
		if len(diags) == 0 {
			return fmt.Errorf("%w: no diagnosis recorded", ErrStageIncomplete)
		}
	case StageTreatmentPlan:
		recs, err := s.repo.ListTreatments(ctx, enc.ID)
		if err != nil {
			return fmt.Errorf("list treatments: %w", err)
		}
		if len(recs) == 0 {
			return fmt.Errorf("%w: no treatment planned", ErrStageIncomplete)
		}
	case StageExecution:
		recs, err := s.repo.ListTreatments(ctx, enc.ID)
		if err != nil {
			return fmt.Errorf("list treatments: %w", err)
		}
		for _, rec := range recs {
			if rec.Status == TreatmentPlanned || rec.Status == TreatmentInProgress {
				return fmt.Errorf("%w: treatment %s still %s", ErrStageIncomplete, rec.ID, rec.Status)
			}
		}
	}
	return nil
}

// toothEventStages are the stages in which charting edits are accepted.
var toothEventStages = map[Stage]bool{
	StageExamination:   true,
	StageInvestigation: true,
	StageExecution:     true,
}

// RecordToothEvent applies one charting edit through the chart service,
// which recomputes the index snapshot synchronously.
func (s *Service) RecordToothEvent(ctx context.Context, id uuid.UUID, ev chart.ToothEvent) (*chart.IndexSnapshot, error) {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load encounter: %w", err)
	}
	if !toothEventStages[enc.Stage] {
		return nil, fmt.Errorf("%w: tooth events not accepted in %s", ErrStageMismatch, enc.Stage)
	}
	return s.charts.ApplyEvent(ctx, id, ev)
}

// AddDiagnosis attaches one non-empty diagnosis line to an active visit.
func (s *Service) AddDiagnosis(ctx context.Context, id uuid.UUID, text string) (*Diagnosis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("diagnosis text must not be empty")
	}
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load encounter: %w", err)
	}
	if enc.Stage.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrEncounterTerminal, enc.Stage)
	}

	d := &Diagnosis{EncounterID: id, Text: strings.TrimSpace(text)}
	if err := s.repo.AddDiagnosis(ctx, d); err != nil {
		return nil, fmt.Errorf("add diagnosis: %w", err)
	}
	return d, nil
}

func (s *Service) ListDiagnoses(ctx context.Context, id uuid.UUID) ([]*Diagnosis, error) {
	return s.repo.ListDiagnoses(ctx, id)
}

// PlanTreatment records a procedure selection. Valid while planning and
// during execution, where additional work is commonly added.
func (s *Service) PlanTreatment(ctx context.Context, id uuid.UUID, rec *TreatmentRecord) (*TreatmentRecord, error) {
	if rec.ProcedureCode == "" {
		return nil, fmt.Errorf("procedure_code is required")
	}

	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load encounter: %w", err)
	}
	if enc.Stage != StageTreatmentPlan && enc.Stage != StageExecution {
		return nil, fmt.Errorf("%w: treatments planned in %s or %s only", ErrStageMismatch, StageTreatmentPlan, StageExecution)
	}

	mode := chart.DentitionForAge(enc.PatientAge)
	for _, fdi := range rec.Teeth {
		if !chart.ValidFDI(fdi, mode) {
			return nil, fmt.Errorf("%w: %s", chart.ErrInvalidTooth, fdi)
		}
	}

	rec.EncounterID = id
	rec.PatientID = enc.PatientID
	if rec.DoctorID == uuid.Nil {
		rec.DoctorID = enc.DoctorID
	}
	rec.Status = TreatmentPlanned
	if err := s.repo.CreateTreatment(ctx, rec); err != nil {
		return nil, fmt.Errorf("create treatment: %w", err)
	}
	return rec, nil
}

func (s *Service) ListTreatments(ctx context.Context, id uuid.UUID) ([]*TreatmentRecord, error) {
	return s.repo.ListTreatments(ctx, id)
}

// StartProcedure moves a planned record to in_progress during execution.
func (s *Service) StartProcedure(ctx context.Context, treatmentID uuid.UUID) (*TreatmentRecord, error) {
	rec, enc, err := s.loadTreatment(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	if enc.Stage != StageExecution {
		return nil, fmt.Errorf("%w: procedures run in %s only", ErrStageMismatch, StageExecution)
	}
	if rec.Status != TreatmentPlanned {
		return nil, fmt.Errorf("cannot start treatment in status %s", rec.Status)
	}

	rec.Status = TreatmentInProgress
	if err := s.repo.UpdateTreatment(ctx, rec); err != nil {
		return nil, fmt.Errorf("update treatment: %w", err)
	}
	return rec, nil
}

// CompleteProcedure marks a record completed and fires the automation
// trigger. Completing an already-completed record is a no-op: the caller's
// intent is already satisfied. The trigger's own flag claim keeps the
// billing effects at-most-once even when two callers race past the status
// check.
func (s *Service) CompleteProcedure(ctx context.Context, treatmentID uuid.UUID) (*TreatmentRecord, error) {
	rec, enc, err := s.loadTreatment(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	if rec.Status == TreatmentCompleted {
		return rec, nil
	}
	if rec.Status == TreatmentCancelled {
		return nil, ErrTreatmentCancelled
	}
	if enc.Stage != StageExecution {
		return nil, fmt.Errorf("%w: procedures complete in %s only", ErrStageMismatch, StageExecution)
	}

	now := time.Now().UTC()
	rec.Status = TreatmentCompleted
	rec.CompletedAt = &now
	if err := s.repo.UpdateTreatment(ctx, rec); err != nil {
		return nil, fmt.Errorf("update treatment: %w", err)
	}

	s.bus.Publish(ctx, events.New(events.ProcedureCompleted, enc.PatientID, enc.ID, map[string]interface{}{
		"treatment_id":   rec.ID.String(),
		"procedure_code": rec.ProcedureCode,
	}))

	if err := s.trigger.Fire(ctx, billing.ProcedureCompletion{
		TreatmentID:   rec.ID,
		EncounterID:   enc.ID,
		PatientID:     enc.PatientID,
		DoctorID:      rec.DoctorID,
		ProcedureCode: rec.ProcedureCode,
	}); err != nil {
		// Billing must never block clinical progression.
		s.log.Error().Err(err).Str("treatment_id", rec.ID.String()).
			Msg("automation trigger failed")
	}
	return rec, nil
}

// CancelTreatment cancels a planned or in-progress record.
func (s *Service) CancelTreatment(ctx context.Context, treatmentID uuid.UUID) (*TreatmentRecord, error) {
	rec, _, err := s.loadTreatment(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	if rec.Status == TreatmentCompleted {
		return nil, fmt.Errorf("cannot cancel a completed treatment")
	}
	if rec.Status == TreatmentCancelled {
		return rec, nil
	}

	rec.Status = TreatmentCancelled
	if err := s.repo.UpdateTreatment(ctx, rec); err != nil {
		return nil, fmt.Errorf("update treatment: %w", err)
	}
	return rec, nil
}

func (s *Service) loadTreatment(ctx context.Context, treatmentID uuid.UUID) (*TreatmentRecord, *Encounter, error) {
	rec, err := s.repo.GetTreatment(ctx, treatmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("load treatment: %w", err)
	}
	enc, err := s.repo.GetByID(ctx, rec.EncounterID)
	if err != nil {
		return nil, nil, fmt.Errorf("load encounter: %w", err)
	}
	return rec, enc, nil
}
