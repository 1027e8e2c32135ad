package amortization

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issued = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func TestPeriodRate(t *testing.T) {
	assert.Equal(t, "0.015", PeriodRate(money.MustParse("0.18")).String())
	assert.Equal(t, "0.0058333333", PeriodRate(money.MustParse("0.07")).String())
	assert.True(t, PeriodRate(decimal.Zero).IsZero())
}

func TestComputeInstallment(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		term      int
		want      string
	}{
		{"one percent monthly", "100000", "0.12", 12, "8884.88"},
		{"six percent three years", "10000", "0.06", 36, "304.22"},
		{"single period", "1000", "0.12", 1, "1010.00"},
		{"zero rate", "12000", "0", 12, "1000.00"},
		{"zero rate rounds half up", "1000", "0", 3, "333.33"},
		{"zero rate rounds up", "100", "0", 6, "16.67"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeInstallment(money.MustParse(tt.principal), money.MustParse(tt.rate), tt.term)
			require.NoError(t, err)
			assert.Equal(t, tt.want, money.Format(got))
		})
	}
}

func TestComputeInstallmentValidation(t *testing.T) {
	_, err := ComputeInstallment(money.MustParse("1000"), money.MustParse("0.1"), 0)
	assert.True(t, errors.Is(err, models.ErrInvalidTerm))

	_, err = ComputeInstallment(decimal.Zero, money.MustParse("0.1"), 12)
	assert.True(t, errors.Is(err, models.ErrInvalidAmount))

	_, err = ComputeInstallment(money.MustParse("-5"), money.MustParse("0.1"), 12)
	assert.True(t, errors.Is(err, models.ErrInvalidAmount))

	_, err = ComputeInstallment(money.MustParse("1000"), money.MustParse("-0.1"), 12)
	assert.True(t, errors.Is(err, models.ErrInvalidAmount))
}

func TestScheduleSumsToPrincipal(t *testing.T) {
	principals := []string{"0.05", "1", "999.99", "1000", "123456.78", "5000000"}
	rates := []string{"0", "0.01", "0.075", "0.18", "0.365", "0.99"}
	terms := []int{1, 2, 3, 7, 12, 36, 120, 360}

	for _, p := range principals {
		for _, r := range rates {
			for _, n := range terms {
				name := fmt.Sprintf("%s@%s/%d", p, r, n)
				principal := money.MustParse(p)
				plan, err := NewPlan(principal, money.MustParse(r), n, issued, Monthly())
				require.NoError(t, err, name)
				require.Len(t, plan.Rows, n, name)

				sum := decimal.Zero
				for _, row := range plan.Rows {
					assert.False(t, row.PrincipalPortion.IsNegative(), name)
					assert.False(t, row.RemainingBalance.IsNegative(), name)
					sum = sum.Add(row.PrincipalPortion)
				}
				assert.True(t, sum.Equal(principal), "%s: principal portions sum to %s", name, sum)
				assert.True(t, plan.Rows[n-1].RemainingBalance.IsZero(), name)
			}
		}
	}
}

func TestScheduleRows(t *testing.T) {
	plan, err := NewPlan(money.MustParse("100000"), money.MustParse("0.12"), 12, issued, Monthly())
	require.NoError(t, err)

	first := plan.Rows[0]
	assert.Equal(t, 1, first.PeriodNumber)
	assert.Equal(t, "1000.00", money.Format(first.InterestPortion))
	assert.Equal(t, "7884.88", money.Format(first.PrincipalPortion))
	assert.Equal(t, "8884.88", money.Format(first.TotalPayment))
	assert.Equal(t, "92115.12", money.Format(first.RemainingBalance))
	assert.Equal(t, time.Date(2025, 2, 15, 9, 30, 0, 0, time.UTC), first.DueDate)

	last := plan.Rows[11]
	assert.Equal(t, 12, last.PeriodNumber)
	assert.Equal(t, time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC), last.DueDate)
	assert.True(t, last.TotalPayment.Equal(last.InterestPortion.Add(last.PrincipalPortion)))
	// the final row absorbs rounding, so it stays within a few cents of the installment
	assert.True(t, last.TotalPayment.Sub(plan.Installment).Abs().LessThan(money.MustParse("0.10")))
}

func TestScheduleIsDeterministic(t *testing.T) {
	build := func() []byte {
		rows := GenerateSchedule(money.MustParse("250000"), PeriodRate(money.MustParse("0.095")),
			money.MustParse("5250.13"), 60, issued, Monthly())
		b, err := json.Marshal(rows)
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, build(), build())
}

func TestZeroRateSchedule(t *testing.T) {
	plan, err := NewPlan(money.MustParse("12000"), decimal.Zero, 12, issued, Monthly())
	require.NoError(t, err)
	assert.Equal(t, "1000.00", money.Format(plan.Installment))
	for _, row := range plan.Rows {
		assert.True(t, row.InterestPortion.IsZero(), "period %d", row.PeriodNumber)
		assert.Equal(t, "1000.00", money.Format(row.PrincipalPortion), "period %d", row.PeriodNumber)
	}
}

func TestScheduleDueDatesFollowStep(t *testing.T) {
	step := PeriodStep{Unit: UnitDay, Count: 7}
	rows := GenerateSchedule(money.MustParse("700"), decimal.Zero, money.MustParse("100"), 7, issued, step)
	for k, row := range rows {
		assert.Equal(t, issued.AddDate(0, 0, 7*k), row.DueDate)
	}
}

func TestNewPlanValidation(t *testing.T) {
	_, err := NewPlan(money.MustParse("1000"), money.MustParse("0.1"), 0, issued, Monthly())
	assert.ErrorIs(t, err, models.ErrInvalidTerm)
}
