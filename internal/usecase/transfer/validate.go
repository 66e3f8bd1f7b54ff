package transfer

import (
	"github.com/shopspring/decimal"

	"github.com/benefitflow/backend/internal/domain"
)

// The validation functions below are pure and shared by every strategy.
// Each strategy calls them in the same order before mutating anything:
// request shape, then existence, then business rules.

// validateRequestShape checks the transfer parameters themselves,
// before any record is read.
func validateRequestShape(req domain.TransferRequest, maxAmount decimal.Decimal) error {
	if req.FromID == 0 || req.ToID == 0 {
		return domain.NewInvalidArgument("transfer requires both a source and a destination benefit id")
	}

	if req.FromID == req.ToID {
		return domain.NewInvalidArgument("cannot transfer to the same benefit: %d", req.FromID)
	}

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.NewInvalidArgument("transfer amount must be positive, got %s", req.Amount.StringFixed(2))
	}

	if req.Amount.GreaterThan(maxAmount) {
		return domain.NewInvalidArgument("transfer amount %s exceeds the allowed limit of %s",
			req.Amount.StringFixed(2), maxAmount.StringFixed(2))
	}

	return nil
}

// validateBenefitsExist checks that both sides of the transfer were
// found, naming whichever is missing.
func validateBenefitsExist(from, to *domain.Benefit, fromID, toID int64) error {
	if from == nil {
		return domain.NewInvalidArgument("source benefit not found: %d", fromID)
	}
	if to == nil {
		return domain.NewInvalidArgument("destination benefit not found: %d", toID)
	}
	return nil
}

// validateBusinessRules checks active status on both sides and
// sufficient funds on the source. The insufficient-funds message
// carries both figures with two-decimal formatting.
func validateBusinessRules(from, to *domain.Benefit, amount decimal.Decimal) error {
	if !from.Active {
		return domain.NewBusinessRuleViolation("source benefit %d is not active", from.ID)
	}

	if !to.Active {
		return domain.NewBusinessRuleViolation("destination benefit %d is not active", to.ID)
	}

	if from.Balance.LessThan(amount) {
		return domain.NewBusinessRuleViolation("insufficient balance: current balance %s, requested amount %s",
			from.Balance.StringFixed(2), amount.StringFixed(2))
	}

	return nil
}

// applyTransfer performs the in-memory mutation on transaction-local
// copies. Persisting the result is the calling strategy's job.
func applyTransfer(from, to *domain.Benefit, amount decimal.Decimal) {
	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
}
