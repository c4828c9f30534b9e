package complication

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/events"
)

// Monitor is the recurring SLA evaluation pass. It is the one actor that
// runs concurrently with user-driven resolution; the escalation
// compare-and-set in the repository arbitrates that race.
type Monitor struct {
	repo     Repository
	bus      events.Publisher
	log      zerolog.Logger
	interval time.Duration
	now      func() time.Time
}

func NewMonitor(repo Repository, bus events.Publisher, log zerolog.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{repo: repo, bus: bus, log: log, interval: interval, now: time.Now}
}

// Start runs evaluation passes until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.log.Info().Dur("interval", m.interval).Msg("complication SLA monitor started")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("complication SLA monitor stopped")
			return
		case <-ticker.C:
			if err := m.EvaluateOnce(ctx); err != nil {
				m.log.Error().Err(err).Msg("SLA evaluation pass failed")
			}
		}
	}
}

// EvaluateOnce scans open reports and escalates every one past its
// deadline. The escalated flag, not the clock comparison, guards against a
// second emission on later passes.
func (m *Monitor) EvaluateOnce(ctx context.Context) error {
	reports, err := m.repo.ListOpen(ctx)
	if err != nil {
		return err
	}

	now := m.now().UTC()
	for _, rep := range reports {
		if !now.After(rep.SLADeadline) {
			continue
		}
		won, err := m.repo.MarkEscalated(ctx, rep.ID, now)
		if err != nil {
			m.log.Error().Err(err).Str("report_id", rep.ID.String()).
				Msg("escalation update failed")
			continue
		}
		if !won {
			// Resolved or escalated between the scan and the update.
			continue
		}

		m.log.Warn().Str("report_id", rep.ID.String()).
			Time("deadline", rep.SLADeadline).Msg("complication SLA breached")
		m.bus.Publish(ctx, events.New(events.SlaBreached, rep.PatientID, rep.EncounterID, map[string]interface{}{
			"report_id": rep.ID.String(),
			"severity":  string(rep.Severity),
		}))
	}
	return nil
}
