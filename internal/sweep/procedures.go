package sweep

import (
	"time"

	"github.com/Dan9191/credit-service/internal/amortization"
	"github.com/Dan9191/credit-service/internal/lifecycle"
	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
	"github.com/shopspring/decimal"
)

// DetectOverdue marks an ACTIVE credit whose due date has passed as OVERDUE.
// It reports whether the credit changed; running it again is a no-op.
func DetectOverdue(c *models.Credit, now time.Time) bool {
	if c.Status != models.CreditStatusActive || !c.NextPaymentDate.Before(now) {
		return false
	}
	if err := lifecycle.Transition(c, models.CreditStatusOverdue, lifecycle.TriggerOverdueSweep); err != nil {
		return false
	}
	c.OverdueDays = 1
	c.UpdatedAt = now
	return true
}

// AccruePenalty charges one penalty of installment*penaltyRate to an OVERDUE
// credit and returns the charge. Every call charges again.
func AccruePenalty(c *models.Credit, penaltyRate decimal.Decimal, now time.Time) (decimal.Decimal, bool) {
	if c.Status != models.CreditStatusOverdue {
		return decimal.Zero, false
	}
	penalty := money.Round2(c.InstallmentAmount.Mul(penaltyRate))
	c.AccumulatedPenalty = c.AccumulatedPenalty.Add(penalty)
	c.OverdueDays++
	c.UpdatedAt = now
	return penalty, true
}

// AdvanceDueDate moves a past-due date of an open credit one step forward
func AdvanceDueDate(c *models.Credit, now time.Time, step amortization.PeriodStep) bool {
	if !c.IsOpen() || !c.NextPaymentDate.Before(now) {
		return false
	}
	c.NextPaymentDate = step.Advance(c.NextPaymentDate)
	c.UpdatedAt = now
	return true
}
