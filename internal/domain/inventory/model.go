package inventory

import "time"

// Consumable is one stock-managed supply item. The reorder threshold drives
// low-stock warnings after deductions.
type Consumable struct {
	Code             string    `db:"code" json:"code"`
	Name             string    `db:"name" json:"name"`
	Unit             string    `db:"unit" json:"unit"`
	ReorderThreshold int       `db:"reorder_threshold" json:"reorder_threshold"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// StockLevel is the current on-hand quantity for one consumable.
type StockLevel struct {
	ConsumableCode string    `db:"consumable_code" json:"consumable_code"`
	Quantity       int       `db:"quantity" json:"quantity"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Deduction is the outcome of a successful stock deduction.
type Deduction struct {
	ConsumableCode string `json:"consumable_code"`
	Quantity       int    `json:"quantity"`
	Remaining      int    `json:"remaining"`
	LowStock       bool   `json:"low_stock"`
}
