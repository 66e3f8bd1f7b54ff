package domain

import (
	"context"
)

// Store is the benefit record store consumed by the transfer engine.
// Begin opens the transaction scope a single transfer attempt runs in;
// the non-transactional accessors serve reads, creation, and seeding.
type Store interface {
	// Begin opens a new transaction. The caller must end it with
	// Commit or Rollback on every exit path.
	Begin(ctx context.Context) (Tx, error)

	// GetByID retrieves a benefit without locking. Returns (nil, nil)
	// when the id is unknown.
	GetByID(ctx context.Context, id int64) (*Benefit, error)

	// Create persists a new benefit with version 0.
	Create(ctx context.Context, benefit *Benefit) error

	// List retrieves all benefits ordered by id.
	List(ctx context.Context) ([]*Benefit, error)

	// ListActive retrieves all active benefits ordered by id.
	ListActive(ctx context.Context) ([]*Benefit, error)
}

// Tx is a scoped transaction handle over the benefit store. All reads
// and writes of one transfer attempt go through a single Tx; row locks
// acquired by the ForUpdate/ForShare reads are held until Commit or
// Rollback. The two writes of a transfer become visible atomically at
// Commit, or not at all.
type Tx interface {
	// GetByID retrieves a benefit without locking. Returns (nil, nil)
	// when the id is unknown.
	GetByID(ctx context.Context, id int64) (*Benefit, error)

	// GetByIDForUpdate retrieves a benefit under an exclusive row lock
	// held until the transaction ends. Blocks concurrent exclusive and
	// shared lockers of the same id. Returns (nil, nil) when unknown.
	GetByIDForUpdate(ctx context.Context, id int64) (*Benefit, error)

	// GetByIDForShare retrieves a benefit under a shared row lock held
	// until the transaction ends. Blocks concurrent exclusive lockers,
	// admits concurrent shared lockers. Returns (nil, nil) when unknown.
	GetByIDForShare(ctx context.Context, id int64) (*Benefit, error)

	// GetAllForUpdate retrieves the benefits for the given ids under
	// exclusive row locks, acquiring them in ascending-id order. Ids
	// with no record are simply absent from the result.
	GetAllForUpdate(ctx context.Context, ids []int64) ([]*Benefit, error)

	// SaveWithVersionCheck stages the benefit's new balance if and only
	// if the stored version still equals benefit.Version; otherwise it
	// fails with ErrVersionConflict. On success the returned copy
	// carries the incremented version.
	SaveWithVersionCheck(ctx context.Context, benefit *Benefit) (*Benefit, error)

	// SaveLocked stages the benefit's new balance unconditionally and
	// increments its version. The caller must already hold the row's
	// exclusive lock via GetByIDForUpdate or GetAllForUpdate.
	SaveLocked(ctx context.Context, benefit *Benefit) (*Benefit, error)

	// Commit makes all staged writes visible atomically. Adapters that
	// defer conflict detection to commit time may fail here with
	// ErrVersionConflict; callers treat that exactly like a conflict
	// from SaveWithVersionCheck.
	Commit() error

	// Rollback discards all staged writes and releases held locks. It
	// is a no-op after a successful Commit, so it is safe to defer.
	Rollback() error
}
