package seeder

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/benefitflow/backend/internal/domain"
)

// Fixed ids for the initial benefit fixtures, stable across restarts
// so seeding stays idempotent.
const (
	MealAllowanceID = 1
	FoodAllowanceID = 2
	HealthPlanID    = 3
	LifeInsuranceID = 4
)

// Seeder loads the initial benefit fixtures.
type Seeder struct {
	store domain.Store
}

// NewSeeder creates a new Seeder instance.
func NewSeeder(store domain.Store) *Seeder {
	return &Seeder{store: store}
}

// Seed ensures the initial benefits exist in the store. Benefits that
// are already present are left untouched, so running Seed on every
// startup is safe.
func (s *Seeder) Seed(ctx context.Context) error {
	fixtures := []*domain.Benefit{
		{
			ID:          MealAllowanceID,
			Name:        "Meal Allowance",
			Description: "Benefit for daily meals",
			Balance:     decimal.RequireFromString("500.00"),
			Active:      true,
		},
		{
			ID:          FoodAllowanceID,
			Name:        "Food Allowance",
			Description: "Benefit for grocery shopping",
			Balance:     decimal.RequireFromString("800.00"),
			Active:      true,
		},
		{
			ID:          HealthPlanID,
			Name:        "Health Plan",
			Description: "Company health plan",
			Balance:     decimal.RequireFromString("1200.00"),
			Active:      true,
		},
		{
			ID:          LifeInsuranceID,
			Name:        "Life Insurance",
			Description: "Group life insurance",
			Balance:     decimal.RequireFromString("150.00"),
			Active:      false,
		},
	}

	for _, fixture := range fixtures {
		existing, err := s.store.GetByID(ctx, fixture.ID)
		if err != nil {
			return fmt.Errorf("failed to check benefit %d: %w", fixture.ID, err)
		}
		if existing != nil {
			continue
		}

		if err := s.store.Create(ctx, fixture); err != nil {
			return fmt.Errorf("failed to seed benefit %d: %w", fixture.ID, err)
		}
	}

	return nil
}
