package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/benefitflow/backend/internal/adapter/repository/memory"
	"github.com/benefitflow/backend/internal/domain"
)

// seedStore populates an in-memory store with the two benefits the
// transfer scenarios use.
func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &domain.Benefit{
		ID: 1, Name: "Meal Allowance", Balance: decimal.RequireFromString("500.00"), Active: true,
	}))
	require.NoError(t, store.Create(ctx, &domain.Benefit{
		ID: 2, Name: "Food Allowance", Balance: decimal.RequireFromString("200.00"), Active: true,
	}))

	return store
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffBase = 5 * time.Millisecond
	return cfg
}

func TestOptimisticTransfer_Success(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	engine := NewEngine(store, nil, testConfig())

	outcome, err := engine.ExecuteTransfer(ctx, domain.TransferRequest{
		FromID: 1, ToID: 2, Amount: decimal.RequireFromString("100.00"), Strategy: domain.StrategyOptimistic,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StrategyOptimistic, outcome.Strategy)
	assert.Equal(t, int64(1), outcome.FromVersion)
	assert.Equal(t, int64(1), outcome.ToVersion)

	from, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	to, err := store.GetByID(ctx, 2)
	require.NoError(t, err)

	assert.True(t, from.Balance.Equal(decimal.RequireFromString("400.00")))
	assert.True(t, to.Balance.Equal(decimal.RequireFromString("300.00")))
	assert.Equal(t, int64(1), from.Version)
	assert.Equal(t, int64(1), to.Version)
}

func TestOptimisticTransfer_RetriesOnConflictThenSucceeds(t *testing.T) {
	ctx := context.Background()

	fromV0 := &domain.Benefit{ID: 1, Balance: decimal.RequireFromString("500.00"), Active: true, Version: 0}
	toV0 := &domain.Benefit{ID: 2, Balance: decimal.RequireFromString("200.00"), Active: true, Version: 0}

	// First attempt conflicts on the source save.
	tx1 := new(MockTx)
	tx1.On("GetByID", mock.Anything, int64(1)).Return(fromV0, nil)
	tx1.On("GetByID", mock.Anything, int64(2)).Return(toV0, nil)
	tx1.On("SaveWithVersionCheck", mock.Anything, benefitWithID(1)).Return(nil, domain.ErrVersionConflict)
	tx1.On("Rollback").Return(nil)

	// Second attempt reads fresh copies and commits.
	fromV1 := &domain.Benefit{ID: 1, Balance: decimal.RequireFromString("500.00"), Active: true, Version: 1}
	toV1 := &domain.Benefit{ID: 2, Balance: decimal.RequireFromString("200.00"), Active: true, Version: 1}
	savedFrom := &domain.Benefit{ID: 1, Balance: decimal.RequireFromString("400.00"), Active: true, Version: 2}
	savedTo := &domain.Benefit{ID: 2, Balance: decimal.RequireFromString("300.00"), Active: true, Version: 2}

	tx2 := new(MockTx)
	tx2.On("GetByID", mock.Anything, int64(1)).Return(fromV1, nil)
	tx2.On("GetByID", mock.Anything, int64(2)).Return(toV1, nil)
	tx2.On("SaveWithVersionCheck", mock.Anything, benefitWithID(1)).Return(savedFrom, nil)
	tx2.On("SaveWithVersionCheck", mock.Anything, benefitWithID(2)).Return(savedTo, nil)
	tx2.On("Commit").Return(nil)
	tx2.On("Rollback").Return(nil)

	store := new(MockStore)
	store.On("Begin", mock.Anything).Return(tx1, nil).Once()
	store.On("Begin", mock.Anything).Return(tx2, nil).Once()

	strategy := &optimisticStrategy{store: store, cfg: testConfig()}
	outcome, err := strategy.execute(ctx, domain.TransferRequest{
		FromID: 1, ToID: 2, Amount: decimal.RequireFromString("100.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), outcome.FromVersion)
	assert.Equal(t, int64(2), outcome.ToVersion)
	store.AssertNumberOfCalls(t, "Begin", 2)
	tx1.AssertCalled(t, "Rollback")
	tx2.AssertCalled(t, "Commit")
}

func TestOptimisticTransfer_ExhaustsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()

	from := &domain.Benefit{ID: 1, Balance: decimal.RequireFromString("500.00"), Active: true}
	to := &domain.Benefit{ID: 2, Balance: decimal.RequireFromString("200.00"), Active: true}

	tx := new(MockTx)
	tx.On("GetByID", mock.Anything, int64(1)).Return(from, nil)
	tx.On("GetByID", mock.Anything, int64(2)).Return(to, nil)
	tx.On("SaveWithVersionCheck", mock.Anything, mock.Anything).Return(nil, domain.ErrVersionConflict)
	tx.On("Rollback").Return(nil)

	store := new(MockStore)
	store.On("Begin", mock.Anything).Return(tx, nil)

	strategy := &optimisticStrategy{store: store, cfg: testConfig()}
	_, err := strategy.execute(ctx, domain.TransferRequest{
		FromID: 1, ToID: 2, Amount: decimal.RequireFromString("100.00"),
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindConcurrencyExhausted, domain.KindOf(err))
	assert.Contains(t, err.Error(), "3 attempts")
	store.AssertNumberOfCalls(t, "Begin", 3)
}

func TestOptimisticTransfer_BackoffIncreasesBetweenAttempts(t *testing.T) {
	ctx := context.Background()

	from := &domain.Benefit{ID: 1, Balance: decimal.RequireFromString("500.00"), Active: true}
	to := &domain.Benefit{ID: 2, Balance: decimal.RequireFromString("200.00"), Active: true}

	tx := new(MockTx)
	tx.On("GetByID", mock.Anything, int64(1)).Return(from, nil)
	tx.On("GetByID", mock.Anything, int64(2)).Return(to, nil)
	tx.On("SaveWithVersionCheck", mock.Anything, mock.Anything).Return(nil, domain.ErrVersionConflict)
	tx.On("Rollback").Return(nil)

	store := new(MockStore)
	store.On("Begin", mock.Anything).Return(tx, nil)

	cfg := DefaultConfig()
	cfg.BackoffBase = 20 * time.Millisecond

	strategy := &optimisticStrategy{store: store, cfg: cfg}

	start := time.Now()
	_, err := strategy.execute(ctx, domain.TransferRequest{
		FromID: 1, ToID: 2, Amount: decimal.RequireFromString("100.00"),
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, domain.KindConcurrencyExhausted, domain.KindOf(err))
	// Two waits between three attempts: base*1 + base*2.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestOptimisticTransfer_InterruptedDuringBackoff(t *testing.T) {
	from := &domain.Benefit{ID: 1, Balance: decimal.RequireFromString("500.00"), Active: true}
	to := &domain.Benefit{ID: 2, Balance: decimal.RequireFromString("200.00"), Active: true}

	tx := new(MockTx)
	tx.On("GetByID", mock.Anything, int64(1)).Return(from, nil)
	tx.On("GetByID", mock.Anything, int64(2)).Return(to, nil)
	tx.On("SaveWithVersionCheck", mock.Anything, mock.Anything).Return(nil, domain.ErrVersionConflict)
	tx.On("Rollback").Return(nil)

	store := new(MockStore)
	store.On("Begin", mock.Anything).Return(tx, nil)

	cfg := DefaultConfig()
	cfg.BackoffBase = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	strategy := &optimisticStrategy{store: store, cfg: cfg}
	_, err := strategy.execute(ctx, domain.TransferRequest{
		FromID: 1, ToID: 2, Amount: decimal.RequireFromString("100.00"),
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindInterrupted, domain.KindOf(err))
	// The conflicted attempt's transaction was rolled back before the
	// interruption surfaced.
	tx.AssertCalled(t, "Rollback")
}

func TestOptimisticTransfer_ValidationFailsBeforeAnyRead(t *testing.T) {
	store := new(MockStore)

	strategy := &optimisticStrategy{store: store, cfg: testConfig()}
	_, err := strategy.execute(context.Background(), domain.TransferRequest{
		FromID: 1, ToID: 1, Amount: decimal.RequireFromString("100.00"),
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
	store.AssertNotCalled(t, "Begin", mock.Anything)
}
