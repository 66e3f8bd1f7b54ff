package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/benefitflow/backend/internal/domain"
)

// optimisticStrategy performs a transfer under optimistic concurrency
// control: unlocked reads, version-checked writes, and a bounded retry
// loop with exponential backoff on conflict. Low overhead under low to
// medium contention.
type optimisticStrategy struct {
	store domain.Store
	cfg   Config
}

func (s *optimisticStrategy) execute(ctx context.Context, req domain.TransferRequest) (*domain.TransferOutcome, error) {
	if err := validateRequestShape(req, s.cfg.MaxAmount); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		outcome, err := s.attempt(ctx, req)
		if err == nil {
			return outcome, nil
		}

		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}

		if attempt == s.cfg.MaxAttempts {
			break
		}

		// Exponential backoff before re-reading: base x attempt number.
		if err := sleepBackoff(ctx, s.cfg.BackoffBase*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, domain.NewConcurrencyExhausted(
		"transfer aborted after %d attempts due to concurrency conflicts, try again", s.cfg.MaxAttempts)
}

// attempt runs one full read-validate-mutate-write cycle in its own
// transaction. The in-memory copies are scoped to this call; a retry
// starts over from a fresh read and never reuses a stale version.
func (s *optimisticStrategy) attempt(ctx context.Context, req domain.TransferRequest) (*domain.TransferOutcome, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, domain.NewStorageFailure(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	from, err := tx.GetByID(ctx, req.FromID)
	if err != nil {
		return nil, classifyStoreError(ctx, err, "failed to read source benefit")
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

	savedFrom, err := tx.SaveWithVersionCheck(ctx, from)
	if err != nil {
		return nil, classifyConflictError(ctx, err, "failed to save source benefit")
	}
	savedTo, err := tx.SaveWithVersionCheck(ctx, to)
	if err != nil {
		return nil, classifyConflictError(ctx, err, "failed to save destination benefit")
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyConflictError(ctx, err, "failed to commit transfer")
	}

	return newOutcome(req, domain.StrategyOptimistic, savedFrom, savedTo), nil
}

// sleepBackoff waits for d or until the caller cancels, whichever comes
// first. Cancellation surfaces as an Interrupted failure.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return domain.NewInterrupted(ctx.Err(), "transfer interrupted during retry backoff")
	}
}
