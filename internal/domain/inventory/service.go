package inventory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) CreateConsumable(ctx context.Context, c *Consumable) error {
	if c.Code == "" {
		return fmt.Errorf("code is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Unit == "" {
		c.Unit = "unit"
	}
	return s.repo.CreateConsumable(ctx, c)
}

func (s *Service) GetConsumable(ctx context.Context, code string) (*Consumable, error) {
	return s.repo.GetConsumable(ctx, code)
}

func (s *Service) ListConsumables(ctx context.Context, limit, offset int) ([]*Consumable, int, error) {
	return s.repo.ListConsumables(ctx, limit, offset)
}

func (s *Service) GetStock(ctx context.Context, code string) (*StockLevel, error) {
	return s.repo.GetStock(ctx, code)
}

func (s *Service) Restock(ctx context.Context, code string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("restock quantity must be positive")
	}
	remaining, err := s.repo.Restock(ctx, code, qty)
	if err != nil {
		return 0, fmt.Errorf("restock %s: %w", code, err)
	}
	s.log.Info().Str("consumable", code).Int("qty", qty).Int("remaining", remaining).
		Msg("stock replenished")
	return remaining, nil
}

// Deduct removes qty from stock. A deduction that would drive the level
// negative is rejected whole with ErrInsufficientStock; a successful one
// that lands under the reorder threshold is flagged LowStock.
func (s *Service) Deduct(ctx context.Context, code string, qty int) (*Deduction, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("deduction quantity must be positive")
	}

	remaining, err := s.repo.Deduct(ctx, code, qty)
	if err != nil {
		return nil, err
	}

	d := &Deduction{ConsumableCode: code, Quantity: qty, Remaining: remaining}
	if c, err := s.repo.GetConsumable(ctx, code); err == nil && remaining < c.ReorderThreshold {
		d.LowStock = true
		s.log.Warn().Str("consumable", code).Int("remaining", remaining).
			Int("threshold", c.ReorderThreshold).Msg("stock under reorder threshold")
	}
	return d, nil
}
