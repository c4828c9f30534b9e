package billing

import (
	"context"
	"errors"
)

// ErrTariffNotFound reports a procedure code absent from the tariff master.
var ErrTariffNotFound = errors.New("tariff not found for procedure code")

type Repository interface {
	UpsertTariff(ctx context.Context, t *TariffItem) error
	GetTariff(ctx context.Context, procedureCode string) (*TariffItem, error)
	ListTariffs(ctx context.Context, limit, offset int) ([]*TariffItem, int, error)

	// SetBOM replaces the full bill of materials for a procedure.
	SetBOM(ctx context.Context, procedureCode string, lines []BOMLine) error
	GetBOM(ctx context.Context, procedureCode string) ([]BOMLine, error)
}
