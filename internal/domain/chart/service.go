package chart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/events"
)

var (
	// ErrInvalidTooth rejects an FDI id outside the chart's dentition mode.
	ErrInvalidTooth = errors.New("tooth reference not valid for dentition mode")
	// ErrToothMissing rejects surface edits on a tooth charted as missing
	// until its status is explicitly reset.
	ErrToothMissing = errors.New("tooth is marked missing; reset status before charting surfaces")
)

type Service struct {
	repo Repository
	bus  events.Publisher
}

func NewService(repo Repository, bus events.Publisher) *Service {
	return &Service{repo: repo, bus: bus}
}

// CreateChart opens a fresh chart for an encounter. The dentition mode is
// fixed at creation from the patient's age.
func (s *Service) CreateChart(ctx context.Context, encounterID, patientID uuid.UUID, ageYears int) (*Chart, error) {
	c := &Chart{
		EncounterID: encounterID,
		PatientID:   patientID,
		Mode:        DentitionForAge(ageYears),
		Teeth:       make(map[string]*Tooth),
	}
	if err := s.repo.CreateChart(ctx, c); err != nil {
		return nil, fmt.Errorf("create chart: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, encounterID uuid.UUID) (*Chart, error) {
	return s.repo.GetByEncounter(ctx, encounterID)
}

func (s *Service) Snapshot(ctx context.Context, encounterID uuid.UUID) (*IndexSnapshot, error) {
	return s.repo.GetSnapshot(ctx, encounterID)
}

// ChartedCount returns how many teeth carry entries beyond the healthy
// default; the encounter machine's examination predicate consumes this.
func (s *Service) ChartedCount(ctx context.Context, encounterID uuid.UUID) (int, error) {
	c, err := s.repo.GetByEncounter(ctx, encounterID)
	if err != nil {
		return 0, err
	}
	return c.Charted(), nil
}

// ApplyEvent validates and applies one charting edit, then rebuilds the
// index snapshot. Mutation and recomputation commit together: a caller
// never observes a tooth update without the matching snapshot.
func (s *Service) ApplyEvent(ctx context.Context, encounterID uuid.UUID, ev ToothEvent) (*IndexSnapshot, error) {
	c, err := s.repo.GetByEncounter(ctx, encounterID)
	if err != nil {
		return nil, fmt.Errorf("load chart: %w", err)
	}

	if !ValidFDI(ev.FDI, c.Mode) {
		return nil, fmt.Errorf("%w: %s (%s)", ErrInvalidTooth, ev.FDI, c.Mode)
	}
	if ev.Status != "" && !validStatuses[ev.Status] {
		return nil, fmt.Errorf("invalid tooth status: %s", ev.Status)
	}
	if ev.ProbingCode != nil && (*ev.ProbingCode < 0 || *ev.ProbingCode > 4) {
		return nil, fmt.Errorf("probing code out of range: %d", *ev.ProbingCode)
	}

	tooth, ok := c.Teeth[ev.FDI]
	if !ok {
		tooth = &Tooth{FDI: ev.FDI, Status: StatusHealthy}
		c.Teeth[ev.FDI] = tooth
	}

	// A missing tooth accepts no surface edits until its status is reset.
	stillMissing := tooth.Status == StatusMissing && (ev.Status == "" || ev.Status == StatusMissing)
	if stillMissing && ev.Surfaces != nil && ev.Surfaces.Any() {
		return nil, fmt.Errorf("%w: %s", ErrToothMissing, ev.FDI)
	}

	if ev.Status != "" {
		tooth.Status = ev.Status
		if ev.Status == StatusMissing {
			tooth.Surfaces = Surfaces{}
		}
	}
	if ev.Surfaces != nil {
		tooth.Surfaces = *ev.Surfaces
	}
	if ev.Notes != "" {
		tooth.Notes = ev.Notes
	}
	if ev.ProcedureID != "" {
		tooth.ProcedureIDs = append(tooth.ProcedureIDs, ev.ProcedureID)
	}
	if ev.ProbingCode != nil {
		tooth.ProbingCode = *ev.ProbingCode
	}
	if ev.Bleeding != nil {
		tooth.Bleeding = *ev.Bleeding
	}
	tooth.UpdatedAt = time.Now().UTC()

	snap := Recompute(c)
	if err := s.repo.ApplyToothUpdate(ctx, c, tooth, snap); err != nil {
		return nil, fmt.Errorf("persist tooth update: %w", err)
	}

	s.bus.Publish(ctx, events.New(events.ToothStateChanged, c.PatientID, encounterID, map[string]interface{}{
		"fdi":    tooth.FDI,
		"status": tooth.Status,
	}))
	s.bus.Publish(ctx, events.New(events.IndexSnapshotUpdated, c.PatientID, encounterID, snap))

	return snap, nil
}
