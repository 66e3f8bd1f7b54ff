package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Strategy selects the concurrency-control discipline a transfer runs
// under. The closed set of variants replaces the original annotation
// driven dispatch with explicit selection.
type Strategy string

const (
	// StrategyOptimistic detects conflicts at write time via the
	// version counter and retries with backoff. The default.
	StrategyOptimistic Strategy = "optimistic"

	// StrategyPessimistic serializes conflicting writers with exclusive
	// row locks acquired in ascending-id order.
	StrategyPessimistic Strategy = "pessimistic"

	// StrategyMixed locks the source exclusively and leaves the
	// destination under optimistic control. No retry on conflict.
	StrategyMixed Strategy = "mixed"
)

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyOptimistic, StrategyPessimistic, StrategyMixed:
		return true
	}
	return false
}

// TransferRequest describes one requested balance transfer. It is
// ephemeral and never persisted.
type TransferRequest struct {
	FromID   int64
	ToID     int64
	Amount   decimal.Decimal
	Strategy Strategy
}

// TransferOutcome reports a committed transfer. FromVersion and
// ToVersion are the versions after the write.
type TransferOutcome struct {
	TransferID  uuid.UUID
	FromID      int64
	ToID        int64
	Amount      decimal.Decimal
	Strategy    Strategy
	FromVersion int64
	ToVersion   int64
	CompletedAt time.Time
}
