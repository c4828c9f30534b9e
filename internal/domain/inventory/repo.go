package inventory

import (
	"context"
	"errors"
)

// ErrInsufficientStock rejects a deduction that would drive stock negative.
var ErrInsufficientStock = errors.New("insufficient stock for deduction")

type Repository interface {
	CreateConsumable(ctx context.Context, c *Consumable) error
	GetConsumable(ctx context.Context, code string) (*Consumable, error)
	ListConsumables(ctx context.Context, limit, offset int) ([]*Consumable, int, error)

	GetStock(ctx context.Context, code string) (*StockLevel, error)
	// Restock adds qty and returns the resulting quantity.
	Restock(ctx context.Context, code string, qty int) (int, error)
	// Deduct subtracts qty only while enough stock remains, as one
	// conditional update. Returns the resulting quantity or
	// ErrInsufficientStock with stock untouched.
	Deduct(ctx context.Context, code string, qty int) (int, error)
}
