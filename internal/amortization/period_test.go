package amortization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriodStep(t *testing.T) {
	step, err := ParsePeriodStep(" Month ", 1)
	require.NoError(t, err)
	assert.Equal(t, Monthly(), step)

	step, err = ParsePeriodStep("minute", 5)
	require.NoError(t, err)
	assert.Equal(t, PeriodStep{Unit: UnitMinute, Count: 5}, step)

	_, err = ParsePeriodStep("week", 1)
	assert.Error(t, err)

	_, err = ParsePeriodStep("day", 0)
	assert.Error(t, err)
}

func TestAdvance(t *testing.T) {
	base := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(time.Minute), PeriodStep{Unit: UnitMinute, Count: 1}.Advance(base))
	assert.Equal(t, base.AddDate(0, 0, 2), PeriodStep{Unit: UnitDay, Count: 2}.Advance(base))

	monthly := Monthly()
	assert.Equal(t, time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC), monthly.Advance(base))
	assert.Equal(t, time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC), monthly.AdvanceN(base, 2))
	assert.Equal(t, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
		monthly.Advance(time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC), monthly.AdvanceN(base, 12))
}
