package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/benefitflow/backend/internal/domain"
)

// maxSharedLocks sizes each row's semaphore. A shared locker takes one
// unit, an exclusive locker takes all of them, which yields
// readers-block-writer / writer-blocks-everyone semantics with
// context-aware waiting.
const maxSharedLocks = 1 << 30

// Store is an in-memory implementation of domain.Store with row-level
// locking and atomic version-checked commits. It backs tests and
// broker-less local runs; concurrency semantics match the Postgres
// adapter: locks are held until the transaction ends, staged writes
// become visible atomically at commit.
type Store struct {
	mu      sync.Mutex
	records map[int64]*domain.Benefit
	locks   map[int64]*semaphore.Weighted
	nextID  int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[int64]*domain.Benefit),
		locks:   make(map[int64]*semaphore.Weighted),
		nextID:  1,
	}
}

// Begin opens a new transaction.
func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		store:     s,
		exclusive: make(map[int64]bool),
		shared:    make(map[int64]bool),
	}, nil
}

// GetByID retrieves a committed benefit without locking. Returns
// (nil, nil) when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Benefit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

// Create persists a new benefit. A zero id is assigned the next free
// id; an explicit id must not collide with an existing record.
func (s *Store) Create(ctx context.Context, benefit *domain.Benefit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if benefit.ID == 0 {
		benefit.ID = s.nextID
	} else if _, exists := s.records[benefit.ID]; exists {
		return fmt.Errorf("benefit %d already exists", benefit.ID)
	}
	if benefit.ID >= s.nextID {
		s.nextID = benefit.ID + 1
	}

	benefit.Version = 0
	s.records[benefit.ID] = benefit.Clone()
	return nil
}

// List returns all benefits ordered by id.
func (s *Store) List(ctx context.Context) ([]*domain.Benefit, error) {
	return s.list(ctx, false)
}

// ListActive returns all active benefits ordered by id.
func (s *Store) ListActive(ctx context.Context) ([]*domain.Benefit, error) {
	return s.list(ctx, true)
}

func (s *Store) list(ctx context.Context, activeOnly bool) ([]*domain.Benefit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.Benefit, 0, len(s.records))
	for _, record := range s.records {
		if activeOnly && !record.Active {
			continue
		}
		result = append(result, record.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// lockFor returns the row semaphore for id, creating it on first use.
// Lock entries are never removed; benefits are not deleted within
// transfer scope.
func (s *Store) lockFor(id int64) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = semaphore.NewWeighted(maxSharedLocks)
		s.locks[id] = lock
	}
	return lock
}

// stagedWrite is one pending mutation inside a transaction.
type stagedWrite struct {
	benefit *domain.Benefit
	// versionChecked writes were staged by SaveWithVersionCheck and are
	// re-validated against readVersion at commit time.
	versionChecked bool
	readVersion    int64
}

// memTx implements domain.Tx. A transaction stages writes locally and
// applies them under the store mutex at commit, re-checking every
// version-checked write so that two writers that observed the same
// version can never both commit.
type memTx struct {
	store     *Store
	done      bool
	exclusive map[int64]bool
	shared    map[int64]bool
	lockOrder []int64
	staged    []stagedWrite
}

func (t *memTx) GetByID(ctx context.Context, id int64) (*domain.Benefit, error) {
	if err := t.ensureOpen(ctx); err != nil {
		return nil, err
	}
	return t.read(id), nil
}

func (t *memTx) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Benefit, error) {
	if err := t.ensureOpen(ctx); err != nil {
		return nil, err
	}
	if err := t.acquireExclusive(ctx, id); err != nil {
		return nil, err
	}
	return t.read(id), nil
}

func (t *memTx) GetByIDForShare(ctx context.Context, id int64) (*domain.Benefit, error) {
	if err := t.ensureOpen(ctx); err != nil {
		return nil, err
	}
	if err := t.acquireShared(ctx, id); err != nil {
		return nil, err
	}
	return t.read(id), nil
}

func (t *memTx) GetAllForUpdate(ctx context.Context, ids []int64) ([]*domain.Benefit, error) {
	if err := t.ensureOpen(ctx); err != nil {
		return nil, err
	}

	// Ascending-id acquisition keeps concurrent bulk lockers from
	// waiting on each other in a cycle.
	ordered := append([]int64(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	result := make([]*domain.Benefit, 0, len(ordered))
	for _, id := range ordered {
		if err := t.acquireExclusive(ctx, id); err != nil {
			return nil, err
		}
		if record := t.read(id); record != nil {
			result = append(result, record)
		}
	}
	return result, nil
}

func (t *memTx) SaveWithVersionCheck(ctx context.Context, benefit *domain.Benefit) (*domain.Benefit, error) {
	if err := t.ensureOpen(ctx); err != nil {
		return nil, err
	}

	// A versioned write still needs the row's exclusive lock so it
	// cannot slip past a transaction holding the row FOR UPDATE. The
	// acquisition is no-wait: a held lock means a conflicting writer is
	// in flight, which reads as a version conflict rather than risking
	// a lock-order deadlock between writers saving pairs in opposite
	// orders.
	if !t.exclusive[benefit.ID] {
		if t.shared[benefit.ID] {
			return nil, fmt.Errorf("benefit %d: cannot upgrade a shared lock to exclusive", benefit.ID)
		}
		if !t.store.lockFor(benefit.ID).TryAcquire(maxSharedLocks) {
			return nil, domain.ErrVersionConflict
		}
		t.exclusive[benefit.ID] = true
		t.lockOrder = append(t.lockOrder, benefit.ID)
	}

	t.store.mu.Lock()
	current, ok := t.store.records[benefit.ID]
	t.store.mu.Unlock()

	// A missing record counts as a conflict, conservatively: the copy
	// the caller holds no longer describes anything committed.
	if !ok || current.Version != benefit.Version {
		return nil, domain.ErrVersionConflict
	}

	saved := benefit.Clone()
	saved.Version++
	t.staged = append(t.staged, stagedWrite{
		benefit:        saved,
		versionChecked: true,
		readVersion:    benefit.Version,
	})
	return saved.Clone(), nil
}

func (t *memTx) SaveLocked(ctx context.Context, benefit *domain.Benefit) (*domain.Benefit, error) {
	if err := t.ensureOpen(ctx); err != nil {
		return nil, err
	}
	if !t.exclusive[benefit.ID] {
		return nil, fmt.Errorf("benefit %d is not exclusively locked by this transaction", benefit.ID)
	}

	saved := benefit.Clone()
	saved.Version++
	t.staged = append(t.staged, stagedWrite{benefit: saved})
	return saved.Clone(), nil
}

// Commit re-validates every version-checked write against the current
// committed state and applies all staged writes atomically. On a
// conflict nothing is applied and the transaction ends rolled back.
func (t *memTx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already ended")
	}

	t.store.mu.Lock()
	for _, write := range t.staged {
		if !write.versionChecked {
			continue
		}
		current, ok := t.store.records[write.benefit.ID]
		if !ok || current.Version != write.readVersion {
			t.store.mu.Unlock()
			t.finish()
			return domain.ErrVersionConflict
		}
	}
	for _, write := range t.staged {
		t.store.records[write.benefit.ID] = write.benefit.Clone()
	}
	t.store.mu.Unlock()

	t.finish()
	return nil
}

// Rollback discards staged writes and releases held locks. Safe to
// call after Commit.
func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.staged = nil
	for _, id := range t.lockOrder {
		lock := t.store.lockFor(id)
		if t.exclusive[id] {
			lock.Release(maxSharedLocks)
		} else {
			lock.Release(1)
		}
	}
	t.lockOrder = nil
	t.exclusive = make(map[int64]bool)
	t.shared = make(map[int64]bool)
	t.done = true
}

func (t *memTx) ensureOpen(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already ended")
	}
	return ctx.Err()
}

// read returns the transaction's view of a record: the latest staged
// write if one exists, otherwise a clone of the committed state.
func (t *memTx) read(id int64) *domain.Benefit {
	for i := len(t.staged) - 1; i >= 0; i-- {
		if t.staged[i].benefit.ID == id {
			return t.staged[i].benefit.Clone()
		}
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	record, ok := t.store.records[id]
	if !ok {
		return nil
	}
	return record.Clone()
}

func (t *memTx) acquireExclusive(ctx context.Context, id int64) error {
	if t.exclusive[id] {
		return nil
	}
	if t.shared[id] {
		return fmt.Errorf("benefit %d: cannot upgrade a shared lock to exclusive", id)
	}
	if err := t.store.lockFor(id).Acquire(ctx, maxSharedLocks); err != nil {
		return err
	}
	t.exclusive[id] = true
	t.lockOrder = append(t.lockOrder, id)
	return nil
}

func (t *memTx) acquireShared(ctx context.Context, id int64) error {
	if t.exclusive[id] || t.shared[id] {
		return nil
	}
	if err := t.store.lockFor(id).Acquire(ctx, 1); err != nil {
		return err
	}
	t.shared[id] = true
	t.lockOrder = append(t.lockOrder, id)
	return nil
}

var _ domain.Store = (*Store)(nil)
