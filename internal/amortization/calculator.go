package amortization

import (
	"fmt"
	"time"

	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
	"github.com/shopspring/decimal"
)

var (
	one           = decimal.NewFromInt(1)
	periodsInYear = decimal.NewFromInt(12)
)

// Plan is the outcome of originating a credit: the installment and its schedule
type Plan struct {
	PeriodRate  decimal.Decimal
	Installment decimal.Decimal
	Rows        []models.PaymentSchedule
}

// PeriodRate converts a nominal annual rate into a monthly rate kept at
// money.RateScale digits.
func PeriodRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.DivRound(periodsInYear, money.RateScale)
}

// ComputeInstallment returns the constant annuity installment
func ComputeInstallment(principal, annualRate decimal.Decimal, termPeriods int) (decimal.Decimal, error) {
	if err := validate(principal, annualRate, termPeriods); err != nil {
		return decimal.Zero, err
	}
	return installment(principal, PeriodRate(annualRate), termPeriods), nil
}

func installment(principal, rate decimal.Decimal, n int) decimal.Decimal {
	if rate.IsZero() {
		return principal.DivRound(decimal.NewFromInt(int64(n)), money.Scale)
	}
	growth := money.PowInt(one.Add(rate), n)
	return principal.Mul(rate).Mul(growth).DivRound(growth.Sub(one), money.Scale)
}

func validate(principal, annualRate decimal.Decimal, termPeriods int) error {
	if termPeriods < 1 {
		return fmt.Errorf("%w: term must be at least 1 period, got %d", models.ErrInvalidTerm, termPeriods)
	}
	if !principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive, got %s", models.ErrInvalidAmount, principal)
	}
	if annualRate.IsNegative() {
		return fmt.Errorf("%w: annual rate must not be negative, got %s", models.ErrInvalidAmount, annualRate)
	}
	return nil
}

// NewPlan computes the installment and the full schedule for a new credit.
// The first installment falls one step after issueDate.
func NewPlan(principal, annualRate decimal.Decimal, termPeriods int, issueDate time.Time, step PeriodStep) (*Plan, error) {
	if err := validate(principal, annualRate, termPeriods); err != nil {
		return nil, err
	}
	rate := PeriodRate(annualRate)
	inst := installment(principal, rate, termPeriods)
	return &Plan{
		PeriodRate:  rate,
		Installment: inst,
		Rows:        GenerateSchedule(principal, rate, inst, termPeriods, step.Advance(issueDate), step),
	}, nil
}
