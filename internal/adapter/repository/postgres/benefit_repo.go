package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/benefitflow/backend/internal/domain"
)

const benefitColumns = "id, name, description, balance, active, version"

// Store implements domain.Store on top of Postgres. Row locks come
// from SELECT ... FOR UPDATE / FOR SHARE and are held until the
// enclosing sql.Tx commits or rolls back; the version check rides on
// the UPDATE's WHERE clause, so conflict detection is atomic with the
// write.
type Store struct {
	db *DB
}

// NewStore creates a new Postgres-backed benefit store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Begin opens a new database transaction.
func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

// GetByID retrieves a benefit by its ID without locking. Returns
// (nil, nil) when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Benefit, error) {
	query := fmt.Sprintf("SELECT %s FROM benefits WHERE id = $1", benefitColumns)
	return scanBenefit(s.db.QueryRowContext(ctx, query, id))
}

// Create persists a new benefit with version 0. A zero id lets the
// database assign one.
func (s *Store) Create(ctx context.Context, benefit *domain.Benefit) error {
	if benefit.ID == 0 {
		query := `
			INSERT INTO benefits (name, description, balance, active, version)
			VALUES ($1, $2, $3, $4, 0)
			RETURNING id
		`
		err := s.db.QueryRowContext(ctx, query,
			benefit.Name,
			benefit.Description,
			benefit.Balance.String(),
			benefit.Active,
		).Scan(&benefit.ID)
		if err != nil {
			return fmt.Errorf("failed to create benefit: %w", err)
		}
	} else {
		query := `
			INSERT INTO benefits (id, name, description, balance, active, version)
			VALUES ($1, $2, $3, $4, $5, 0)
		`
		_, err := s.db.ExecContext(ctx, query,
			benefit.ID,
			benefit.Name,
			benefit.Description,
			benefit.Balance.String(),
			benefit.Active,
		)
		if err != nil {
			return fmt.Errorf("failed to create benefit %d: %w", benefit.ID, err)
		}
	}

	benefit.Version = 0
	return nil
}

// List retrieves all benefits ordered by id.
func (s *Store) List(ctx context.Context) ([]*domain.Benefit, error) {
	query := fmt.Sprintf("SELECT %s FROM benefits ORDER BY id", benefitColumns)
	return s.queryBenefits(ctx, query)
}

// ListActive retrieves all active benefits ordered by id.
func (s *Store) ListActive(ctx context.Context) ([]*domain.Benefit, error) {
	query := fmt.Sprintf("SELECT %s FROM benefits WHERE active ORDER BY id", benefitColumns)
	return s.queryBenefits(ctx, query)
}

func (s *Store) queryBenefits(ctx context.Context, query string, args ...any) ([]*domain.Benefit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query benefits: %w", err)
	}
	defer rows.Close()

	var result []*domain.Benefit
	for rows.Next() {
		benefit, err := scanBenefitRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, benefit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate benefits: %w", err)
	}
	return result, nil
}

// pgTx implements domain.Tx over one sql.Tx.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetByID(ctx context.Context, id int64) (*domain.Benefit, error) {
	query := fmt.Sprintf("SELECT %s FROM benefits WHERE id = $1", benefitColumns)
	return scanBenefit(t.tx.QueryRowContext(ctx, query, id))
}

func (t *pgTx) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Benefit, error) {
	query := fmt.Sprintf("SELECT %s FROM benefits WHERE id = $1 FOR UPDATE", benefitColumns)
	return scanBenefit(t.tx.QueryRowContext(ctx, query, id))
}

func (t *pgTx) GetByIDForShare(ctx context.Context, id int64) (*domain.Benefit, error) {
	query := fmt.Sprintf("SELECT %s FROM benefits WHERE id = $1 FOR SHARE", benefitColumns)
	return scanBenefit(t.tx.QueryRowContext(ctx, query, id))
}

func (t *pgTx) GetAllForUpdate(ctx context.Context, ids []int64) ([]*domain.Benefit, error) {
	// ORDER BY inside the locking select makes Postgres take the row
	// locks in ascending-id order.
	query := fmt.Sprintf("SELECT %s FROM benefits WHERE id = ANY($1) ORDER BY id FOR UPDATE", benefitColumns)

	rows, err := t.tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock benefits: %w", err)
	}
	defer rows.Close()

	var result []*domain.Benefit
	for rows.Next() {
		benefit, err := scanBenefitRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, benefit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locked benefits: %w", err)
	}
	return result, nil
}

func (t *pgTx) SaveWithVersionCheck(ctx context.Context, benefit *domain.Benefit) (*domain.Benefit, error) {
	query := `
		UPDATE benefits
		SET balance = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	saved := *benefit
	err := t.tx.QueryRowContext(ctx, query,
		benefit.Balance.String(),
		benefit.ID,
		benefit.Version,
	).Scan(&saved.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the version moved on or the row is gone; both mean
			// the caller's copy is stale.
			return nil, domain.ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to save benefit %d: %w", benefit.ID, err)
	}

	return &saved, nil
}

func (t *pgTx) SaveLocked(ctx context.Context, benefit *domain.Benefit) (*domain.Benefit, error) {
	query := `
		UPDATE benefits
		SET balance = $1, version = version + 1
		WHERE id = $2
		RETURNING version
	`

	saved := *benefit
	err := t.tx.QueryRowContext(ctx, query,
		benefit.Balance.String(),
		benefit.ID,
	).Scan(&saved.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("benefit %d not found for locked save", benefit.ID)
		}
		return nil, fmt.Errorf("failed to save benefit %d: %w", benefit.ID, err)
	}

	return &saved, nil
}

func (t *pgTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBenefit(row scanner) (*domain.Benefit, error) {
	benefit, err := scanBenefitRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return benefit, nil
}

func scanBenefitRow(row scanner) (*domain.Benefit, error) {
	var benefit domain.Benefit
	var balanceStr string

	err := row.Scan(
		&benefit.ID,
		&benefit.Name,
		&benefit.Description,
		&balanceStr,
		&benefit.Active,
		&benefit.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan benefit: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	benefit.Balance = balance

	return &benefit, nil
}

var _ domain.Store = (*Store)(nil)
