package chart

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateChart(ctx context.Context, c *Chart) error
	GetByEncounter(ctx context.Context, encounterID uuid.UUID) (*Chart, error)
	// ApplyToothUpdate persists a tooth row and the rebuilt snapshot in one
	// transaction so callers never observe one without the other.
	ApplyToothUpdate(ctx context.Context, c *Chart, tooth *Tooth, snap *IndexSnapshot) error
	GetSnapshot(ctx context.Context, encounterID uuid.UUID) (*IndexSnapshot, error)
}
