package transfer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/benefitflow/backend/internal/domain"
	"github.com/benefitflow/backend/internal/events"
)

// Config tunes the transfer engine.
type Config struct {
	// MaxAmount is the upper bound for a single transfer.
	MaxAmount decimal.Decimal
	// MaxAttempts bounds the optimistic strategy's retry loop.
	MaxAttempts int
	// BackoffBase is the backoff unit between optimistic retries; the
	// wait before retry n is BackoffBase * n.
	BackoffBase time.Duration
}

// DefaultConfig returns the production defaults: 1,000,000 amount
// limit, 3 optimistic attempts, 100ms backoff base.
func DefaultConfig() Config {
	return Config{
		MaxAmount:   decimal.NewFromInt(1_000_000),
		MaxAttempts: 3,
		BackoffBase: 100 * time.Millisecond,
	}
}

// executor is one concurrency-control discipline for a transfer.
type executor interface {
	execute(ctx context.Context, req domain.TransferRequest) (*domain.TransferOutcome, error)
}

// Engine selects and runs a locking strategy for each transfer and
// normalizes outcomes and failures for callers. It also serves the
// lock-free read operations and benefit creation/listing.
type Engine struct {
	store      domain.Store
	publisher  events.Publisher
	cfg        Config
	strategies map[domain.Strategy]executor
}

// NewEngine creates an Engine over the given store. A nil publisher
// disables event publication.
func NewEngine(store domain.Store, publisher events.Publisher, cfg Config) *Engine {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Engine{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		strategies: map[domain.Strategy]executor{
			domain.StrategyOptimistic:  &optimisticStrategy{store: store, cfg: cfg},
			domain.StrategyPessimistic: &pessimisticStrategy{store: store, cfg: cfg},
			domain.StrategyMixed:       &mixedStrategy{store: store, cfg: cfg},
		},
	}
}

// ExecuteTransfer runs one transfer under the requested strategy. An
// empty strategy selects optimistic. On success the committed outcome
// is returned and a TransferCompleted event is published best-effort.
func (e *Engine) ExecuteTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferOutcome, error) {
	if req.Strategy == "" {
		req.Strategy = domain.StrategyOptimistic
	}
	if !req.Strategy.Valid() {
		return nil, domain.NewInvalidArgument("unknown locking strategy: %q", req.Strategy)
	}

	outcome, err := e.strategies[req.Strategy].execute(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := e.publisher.PublishTransferCompleted(ctx, events.TransferCompleted{
		TransferID:  outcome.TransferID,
		FromID:      outcome.FromID,
		ToID:        outcome.ToID,
		Amount:      outcome.Amount,
		Strategy:    outcome.Strategy,
		CompletedAt: outcome.CompletedAt,
	}); err != nil {
		log.Printf("transfer %s committed but event publication failed: %v", outcome.TransferID, err)
	}

	return outcome, nil
}

// GetBalance returns the benefit's current balance.
func (e *Engine) GetBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	benefit, err := e.getKnown(ctx, id)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return benefit.Balance, nil
}

// GetVersion returns the benefit's current version.
func (e *Engine) GetVersion(ctx context.Context, id int64) (int64, error) {
	benefit, err := e.getKnown(ctx, id)
	if err != nil {
		return 0, err
	}
	return benefit.Version, nil
}

// HasVersionConflict reports whether the supplied version is stale. A
// missing benefit counts as a conflict.
func (e *Engine) HasVersionConflict(ctx context.Context, id, suppliedVersion int64) (bool, error) {
	benefit, err := e.store.GetByID(ctx, id)
	if err != nil {
		return false, domain.NewStorageFailure(err, "failed to read benefit %d", id)
	}
	if benefit == nil {
		return true, nil
	}
	return benefit.Version != suppliedVersion, nil
}

// CanTransfer reports whether a transfer of amount out of the given
// benefit could pass the pre-checks. It never returns a domain error
// for an unknown id, an inactive benefit, a non-positive amount, or an
// insufficient balance; all of those are simply false.
func (e *Engine) CanTransfer(ctx context.Context, fromID int64, amount decimal.Decimal) (bool, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return false, nil
	}

	benefit, err := e.store.GetByID(ctx, fromID)
	if err != nil {
		return false, domain.NewStorageFailure(err, "failed to read benefit %d", fromID)
	}
	if benefit == nil {
		return false, nil
	}

	return benefit.Active && benefit.Balance.GreaterThanOrEqual(amount), nil
}

// CreateBenefit persists a new benefit. The version always starts at 0
// regardless of what the caller supplied.
func (e *Engine) CreateBenefit(ctx context.Context, benefit *domain.Benefit) (*domain.Benefit, error) {
	if benefit == nil {
		return nil, domain.NewInvalidArgument("benefit cannot be nil")
	}
	if err := benefit.Validate(); err != nil {
		return nil, err
	}

	benefit.Version = 0
	if err := e.store.Create(ctx, benefit); err != nil {
		return nil, domain.NewStorageFailure(err, "failed to create benefit")
	}

	return benefit, nil
}

// GetBenefit returns the benefit with the given id.
func (e *Engine) GetBenefit(ctx context.Context, id int64) (*domain.Benefit, error) {
	return e.getKnown(ctx, id)
}

// ListBenefits returns all benefits ordered by id.
func (e *Engine) ListBenefits(ctx context.Context) ([]*domain.Benefit, error) {
	benefits, err := e.store.List(ctx)
	if err != nil {
		return nil, domain.NewStorageFailure(err, "failed to list benefits")
	}
	return benefits, nil
}

// ListActiveBenefits returns all active benefits ordered by id.
func (e *Engine) ListActiveBenefits(ctx context.Context) ([]*domain.Benefit, error) {
	benefits, err := e.store.ListActive(ctx)
	if err != nil {
		return nil, domain.NewStorageFailure(err, "failed to list active benefits")
	}
	return benefits, nil
}

func (e *Engine) getKnown(ctx context.Context, id int64) (*domain.Benefit, error) {
	benefit, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, domain.NewStorageFailure(err, "failed to read benefit %d", id)
	}
	if benefit == nil {
		return nil, domain.NewInvalidArgument("benefit not found: %d", id)
	}
	return benefit, nil
}

// newOutcome assembles the committed result from the post-write record
// copies, whose versions already carry the increment.
func newOutcome(req domain.TransferRequest, strategy domain.Strategy, from, to *domain.Benefit) *domain.TransferOutcome {
	return &domain.TransferOutcome{
		TransferID:  uuid.New(),
		FromID:      req.FromID,
		ToID:        req.ToID,
		Amount:      req.Amount,
		Strategy:    strategy,
		FromVersion: from.Version,
		ToVersion:   to.Version,
		CompletedAt: time.Now(),
	}
}

// classifyStoreError maps a store failure to the engine taxonomy,
// distinguishing caller cancellation (typically during a lock wait)
// from genuine storage failures. Already-classified errors pass
// through untouched.
func classifyStoreError(ctx context.Context, err error, format string, args ...any) error {
	var classified *domain.Error
	if errors.As(err, &classified) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewInterrupted(err, "transfer interrupted while waiting on the store")
	}
	return domain.NewStorageFailure(err, format, args...)
}

// classifyConflictError is classifyStoreError except that version
// conflicts pass through unwrapped, so the optimistic retry loop can
// see them.
func classifyConflictError(ctx context.Context, err error, format string, args ...any) error {
	if errors.Is(err, domain.ErrVersionConflict) {
		return err
	}
	return classifyStoreError(ctx, err, format, args...)
}
