package amortization

import (
	"fmt"
	"strings"
	"time"
)

// PeriodUnit is the calendar unit of one installment period
type PeriodUnit string

const (
	UnitMinute PeriodUnit = "minute"
	UnitDay    PeriodUnit = "day"
	UnitMonth  PeriodUnit = "month"
)

// PeriodStep is the distance between two consecutive due dates
type PeriodStep struct {
	Unit  PeriodUnit
	Count int
}

// Monthly is one calendar month
func Monthly() PeriodStep {
	return PeriodStep{Unit: UnitMonth, Count: 1}
}

// ParsePeriodStep builds a step from its textual unit and count
func ParsePeriodStep(unit string, count int) (PeriodStep, error) {
	if count < 1 {
		return PeriodStep{}, fmt.Errorf("period count must be positive, got %d", count)
	}
	u := PeriodUnit(strings.ToLower(strings.TrimSpace(unit)))
	switch u {
	case UnitMinute, UnitDay, UnitMonth:
		return PeriodStep{Unit: u, Count: count}, nil
	}
	return PeriodStep{}, fmt.Errorf("unknown period unit %q", unit)
}

// Advance moves t forward by one step
func (p PeriodStep) Advance(t time.Time) time.Time {
	return p.AdvanceN(t, 1)
}

// AdvanceN moves t forward by n steps. Month steps are computed from t in one
// go and clamp to the last day of the target month, so the 31st stays on
// month ends instead of drifting.
func (p PeriodStep) AdvanceN(t time.Time, n int) time.Time {
	k := n * p.Count
	switch p.Unit {
	case UnitMinute:
		return t.Add(time.Duration(k) * time.Minute)
	case UnitDay:
		return t.AddDate(0, 0, k)
	default:
		return addMonths(t, k)
	}
}

func (p PeriodStep) String() string {
	return fmt.Sprintf("%d %s", p.Count, p.Unit)
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	last := target.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return target.AddDate(0, 0, d-1)
}
