// Package repayment splits an incoming payment across a credit's obligations.
package repayment

import (
	"fmt"
	"time"

	"github.com/Dan9191/credit-service/internal/amortization"
	"github.com/Dan9191/credit-service/internal/lifecycle"
	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
	"github.com/shopspring/decimal"
)

// Allocation is the result of applying one payment to a credit
type Allocation struct {
	PenaltyPaid   decimal.Decimal
	InterestPaid  decimal.Decimal
	PrincipalPaid decimal.Decimal
	// Excess is the part of PrincipalPaid beyond the outstanding principal.
	// It is kept by the lender, not refunded.
	Excess  decimal.Decimal
	PaidOff bool
	Credit  models.Credit
	Payment models.Payment
}

// Allocate applies amount to the credit in the order penalty, interest,
// principal. The credit is taken by value and returned updated inside the
// allocation; on error nothing is produced.
func Allocate(c models.Credit, annualRate, amount decimal.Decimal, now time.Time, step amortization.PeriodStep) (*Allocation, error) {
	if !lifecycle.CanRepay(c.Status) {
		return nil, fmt.Errorf("%w: credit %d cannot be repaid in status %s", models.ErrInvalidState, c.ID, c.Status)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment must be positive, got %s", models.ErrInvalidAmount, amount)
	}
	if !amount.Equal(money.Round2(amount)) {
		return nil, fmt.Errorf("%w: payment %s has more than two fractional digits", models.ErrInvalidAmount, amount)
	}

	a := &Allocation{
		PenaltyPaid:   decimal.Zero,
		InterestPaid:  decimal.Zero,
		PrincipalPaid: decimal.Zero,
		Excess:        decimal.Zero,
	}
	remaining := amount

	if c.AccumulatedPenalty.IsPositive() {
		a.PenaltyPaid = money.Min(remaining, c.AccumulatedPenalty)
		remaining = remaining.Sub(a.PenaltyPaid)
		c.AccumulatedPenalty = c.AccumulatedPenalty.Sub(a.PenaltyPaid)
		if c.AccumulatedPenalty.IsZero() {
			c.OverdueDays = 0
		}
	}

	if remaining.IsPositive() {
		due := money.Round2(c.RemainingPrincipal.Mul(amortization.PeriodRate(annualRate)))
		a.InterestPaid = money.Min(remaining, due)
		remaining = remaining.Sub(a.InterestPaid)
	}

	if remaining.IsPositive() {
		a.PrincipalPaid = remaining
		a.Excess = money.Max(remaining.Sub(c.RemainingPrincipal), decimal.Zero)
		c.RemainingPrincipal = money.Max(c.RemainingPrincipal.Sub(remaining), decimal.Zero)
		// one payment retires at most one scheduled period
		if c.RemainingMonths > 0 {
			c.RemainingMonths--
		}
	}

	if !c.RemainingPrincipal.IsPositive() || c.RemainingMonths == 0 {
		if err := lifecycle.Transition(&c, models.CreditStatusPaidOff, lifecycle.TriggerRepayment); err != nil {
			return nil, err
		}
		c.RemainingPrincipal = decimal.Zero
		c.RemainingMonths = 0
		c.AccumulatedPenalty = decimal.Zero
		c.OverdueDays = 0
		a.PaidOff = true
	} else {
		if c.Status == models.CreditStatusOverdue && c.AccumulatedPenalty.IsZero() {
			if err := lifecycle.Transition(&c, models.CreditStatusActive, lifecycle.TriggerRepayment); err != nil {
				return nil, err
			}
		}
		c.NextPaymentDate = step.Advance(now)
	}
	c.UpdatedAt = now

	a.Credit = c
	a.Payment = models.Payment{
		CreditID:    c.ID,
		Amount:      amount,
		PaymentType: models.PaymentTypeManualRepayment,
		PaymentDate: now,
		CreatedAt:   now,
	}
	return a, nil
}
