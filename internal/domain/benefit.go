package domain

import (
	"github.com/shopspring/decimal"
)

// Benefit represents a monetary benefit balance in the domain layer.
// The Version field is the sole authority for optimistic conflict
// detection: it starts at 0 on creation and increments by exactly 1 on
// every committed write.
type Benefit struct {
	ID          int64
	Name        string
	Description string
	Balance     decimal.Decimal
	Active      bool
	Version     int64
}

// Validate ensures the benefit adheres to domain rules.
// Returns an error if validation fails.
func (b *Benefit) Validate() error {
	if b.Name == "" {
		return NewInvalidArgument("benefit name cannot be empty")
	}

	if b.Balance.IsNegative() {
		return NewInvalidArgument("benefit balance cannot be negative")
	}

	return nil
}

// Clone returns a deep copy of the benefit. Strategies work on
// transaction-local copies; a retry must never reuse a stale copy.
func (b *Benefit) Clone() *Benefit {
	c := *b
	return &c
}
