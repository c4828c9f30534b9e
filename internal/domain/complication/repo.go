package complication

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *ComplicationReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*ComplicationReport, error)
	List(ctx context.Context, limit, offset int) ([]*ComplicationReport, int, error)
	// ListOpen returns unresolved, unescalated reports for the monitor.
	ListOpen(ctx context.Context) ([]*ComplicationReport, error)
	// MarkResolved stamps resolved_at once and reports whether this call
	// won; a report already resolved loses. Resolution after escalation is
	// allowed.
	MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// MarkEscalated flips escalated false to true only while unresolved, as
	// one conditional update. The loser of a resolve/escalate race is a
	// no-op.
	MarkEscalated(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
