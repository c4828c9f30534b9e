package billing

import (
	"context"
	"fmt"
)

// Service covers tariff-master and bill-of-materials maintenance. The
// automation path lives on Trigger.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) UpsertTariff(ctx context.Context, t *TariffItem) error {
	if t.ProcedureCode == "" {
		return fmt.Errorf("procedure_code is required")
	}
	if t.UnitPrice < 0 {
		return fmt.Errorf("unit_price must not be negative")
	}
	if t.Currency == "" {
		t.Currency = "INR"
	}
	return s.repo.UpsertTariff(ctx, t)
}

func (s *Service) GetTariff(ctx context.Context, procedureCode string) (*TariffItem, error) {
	return s.repo.GetTariff(ctx, procedureCode)
}

func (s *Service) ListTariffs(ctx context.Context, limit, offset int) ([]*TariffItem, int, error) {
	return s.repo.ListTariffs(ctx, limit, offset)
}

func (s *Service) SetBOM(ctx context.Context, procedureCode string, lines []BOMLine) error {
	if procedureCode == "" {
		return fmt.Errorf("procedure_code is required")
	}
	for _, l := range lines {
		if l.ConsumableCode == "" {
			return fmt.Errorf("consumable_code is required")
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("quantity for %s must be positive", l.ConsumableCode)
		}
	}
	return s.repo.SetBOM(ctx, procedureCode, lines)
}

func (s *Service) GetBOM(ctx context.Context, procedureCode string) ([]BOMLine, error) {
	return s.repo.GetBOM(ctx, procedureCode)
}
