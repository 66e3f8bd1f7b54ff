package transfer

import (
	"context"
	"errors"

	"github.com/benefitflow/backend/internal/domain"
)

// mixedStrategy locks only the source exclusively, on the assumption
// that the source side carries the contention, and leaves the
// destination under optimistic control. A destination conflict fails
// the whole transfer with no retry; the caller resubmits.
type mixedStrategy struct {
	store domain.Store
	cfg   Config
}

func (s *mixedStrategy) execute(ctx context.Context, req domain.TransferRequest) (*domain.TransferOutcome, error) {
	if err := validateRequestShape(req, s.cfg.MaxAmount); err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, domain.NewStorageFailure(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	from, err := tx.GetByIDForUpdate(ctx, req.FromID)
	if err != nil {
		return nil, classifyStoreError(ctx, err, "failed to lock source benefit %d", req.FromID)
	}
	to, err := tx.GetByID(ctx, req.ToID)
	if err != nil {
		return nil, classifyStoreError(ctx, err, "failed to read destination benefit")
	}

	if err := validateBenefitsExist(from, to, req.FromID, req.ToID); err != nil {
		return nil, err
	}
	if err := validateBusinessRules(from, to, req.Amount); err != nil {
		return nil, err
	}

	applyTransfer(from, to, req.Amount)

	savedFrom, err := tx.SaveLocked(ctx, from)
	if err != nil {
		return nil, classifyStoreError(ctx, err, "failed to save source benefit")
	}
	savedTo, err := tx.SaveWithVersionCheck(ctx, to)
	if err != nil {
		return nil, s.classifyDestinationError(ctx, err, req.ToID)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.classifyDestinationError(ctx, err, req.ToID)
	}

	return newOutcome(req, domain.StrategyMixed, savedFrom, savedTo), nil
}

// classifyDestinationError converts a destination version conflict into
// the caller-facing ConcurrencyConflict. The deferred rollback has
// already guaranteed the source lock releases without a committed
// change.
func (s *mixedStrategy) classifyDestinationError(ctx context.Context, err error, toID int64) error {
	if errors.Is(err, domain.ErrVersionConflict) {
		return domain.NewConcurrencyConflict("concurrency conflict on destination benefit %d, resubmit the transfer", toID)
	}
	return classifyStoreError(ctx, err, "failed to save destination benefit")
}
