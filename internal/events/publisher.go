package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/benefitflow/backend/internal/domain"
)

// TransferCompleted is emitted after a transfer commits.
type TransferCompleted struct {
	TransferID  uuid.UUID       `json:"transfer_id"`
	FromID      int64           `json:"from_id"`
	ToID        int64           `json:"to_id"`
	Amount      decimal.Decimal `json:"amount"`
	Strategy    domain.Strategy `json:"strategy"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Publisher delivers transfer events to interested consumers.
// Publication is best-effort: a failed publish never fails the
// transfer that produced the event.
type Publisher interface {
	PublishTransferCompleted(ctx context.Context, event TransferCompleted) error
}

// NoopPublisher discards events. Used when no broker is configured and
// in tests.
type NoopPublisher struct{}

func (NoopPublisher) PublishTransferCompleted(ctx context.Context, event TransferCompleted) error {
	return nil
}
