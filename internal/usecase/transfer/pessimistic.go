package transfer

import (
	"context"

	"github.com/benefitflow/backend/internal/domain"
)

// pessimisticStrategy performs a transfer under exclusive row locks on
// both participants, held until the transaction ends. Conflicting
// writers block instead of failing, so no retry loop is needed.
type pessimisticStrategy struct {
	store domain.Store
	cfg   Config
}

func (s *pessimisticStrategy) execute(ctx context.Context, req domain.TransferRequest) (*domain.TransferOutcome, error) {
	if err := validateRequestShape(req, s.cfg.MaxAmount); err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, domain.NewStorageFailure(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	// Locks are acquired in ascending-id order regardless of transfer
	// direction, so two concurrent transfers over the same pair can
	// never hold one lock each and wait on the other.
	firstID, secondID := req.FromID, req.ToID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := tx.GetByIDForUpdate(ctx, firstID)
	if err != nil {
		return nil, classifyStoreError(ctx, err, "failed to lock benefit %d", firstID)
	}
	second, err := tx.GetByIDForUpdate(ctx, secondID)
	if err != nil {
		return nil, classifyStoreError(ctx, err, "failed to lock benefit %d", secondID)
	}

	from, to := first, second
	if req.FromID != firstID {
		from, to = second, first
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
	savedTo, err := tx.SaveLocked(ctx, to)
	if err != nil {
		return nil, classifyStoreError(ctx, err, "failed to save destination benefit")
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyStoreError(ctx, err, "failed to commit transfer")
	}

	return newOutcome(req, domain.StrategyPessimistic, savedFrom, savedTo), nil
}
