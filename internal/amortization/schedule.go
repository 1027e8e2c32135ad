package amortization

import (
	"time"

	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
	"github.com/shopspring/decimal"
)

// GenerateSchedule lays out termPeriods installments. The last row takes the
// whole remaining balance so the principal portions sum to principal exactly.
// Rows carry no credit ID; the caller assigns it.
func GenerateSchedule(principal, periodRate, installment decimal.Decimal, termPeriods int, firstDueDate time.Time, step PeriodStep) []models.PaymentSchedule {
	if termPeriods < 1 {
		return nil
	}
	rows := make([]models.PaymentSchedule, 0, termPeriods)
	balance := principal
	for k := 1; k <= termPeriods; k++ {
		interest := money.Round2(balance.Mul(periodRate))

		var portion decimal.Decimal
		if k == termPeriods {
			portion = balance
		} else {
			// tiny principals can round the installment below the interest
			// or above what is left
			portion = money.Min(money.Max(installment.Sub(interest), decimal.Zero), balance)
		}

		balance = money.Max(balance.Sub(portion), decimal.Zero)

		rows = append(rows, models.PaymentSchedule{
			PeriodNumber:     k,
			DueDate:          step.AdvanceN(firstDueDate, k-1),
			TotalPayment:     interest.Add(portion),
			InterestPortion:  interest,
			PrincipalPortion: portion,
			RemainingBalance: balance,
		})
	}
	return rows
}
