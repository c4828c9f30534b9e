package complication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/events"
)

type Service struct {
	repo Repository
	tree *Tree
	bus  events.Publisher
	log  zerolog.Logger
	now  func() time.Time
}

func NewService(repo Repository, tree *Tree, bus events.Publisher, log zerolog.Logger) *Service {
	return &Service{repo: repo, tree: tree, bus: bus, log: log, now: time.Now}
}

// Triage walks the decision tree over the given answers, stores the
// classified report, and emits the classification. Emergency severity
// bypasses the SLA timer entirely: the report is created already escalated
// and an UrgentEscalation goes out immediately.
func (s *Service) Triage(ctx context.Context, patientID, encounterID uuid.UUID, answers []string, description string) (*ComplicationReport, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}

	severity, path, err := s.tree.Walk(answers)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rep := &ComplicationReport{
		PatientID:   patientID,
		EncounterID: encounterID,
		Severity:    severity,
		SymptomPath: path,
		Description: description,
		CreatedAt:   now,
		SLADeadline: now.Add(ResponseSLA),
	}
	if severity == SeverityEmergency {
		rep.Escalated = true
		rep.EscalatedAt = &now
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return nil, fmt.Errorf("create complication report: %w", err)
	}

	s.log.Info().Str("report_id", rep.ID.String()).Str("severity", string(severity)).
		Msg("complication classified")
	s.bus.Publish(ctx, events.New(events.ComplicationClassified, patientID, encounterID, map[string]interface{}{
		"report_id": rep.ID.String(),
		"severity":  string(severity),
	}))
	if severity == SeverityEmergency {
		s.bus.Publish(ctx, events.New(events.UrgentEscalation, patientID, encounterID, map[string]interface{}{
			"report_id": rep.ID.String(),
		}))
	}
	return rep, nil
}

// Resolve stamps the report resolved. Losing the stamp to an earlier
// resolution is a no-op; resolving after a breach escalation is permitted.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (*ComplicationReport, error) {
	won, err := s.repo.MarkResolved(ctx, id, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve complication: %w", err)
	}
	if !won {
		s.log.Debug().Str("report_id", id.String()).Msg("complication already resolved")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ComplicationReport, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*ComplicationReport, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Questions exposes the triage tree for clients rendering the chat flow.
func (s *Service) Questions() *Tree {
	return s.tree
}
