package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearUnitsPastYears(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	units, err := YearUnits(2022, 2023, 60, now)
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.Equal(t, "2022", units[0].Label)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).Unix(), units[0].Span.Start)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Unix()-60, units[0].Span.End)
	assert.Equal(t, "2023", units[1].Label)
}

func TestYearUnitsTruncatesCurrentYear(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 30, 45, 0, time.UTC)
	units, err := YearUnits(2025, 2025, 60, now)
	require.NoError(t, err)
	require.Len(t, units, 1)

	// The open minute 00:30 is excluded; the last closed one starts 00:29.
	want := time.Date(2025, time.June, 1, 0, 29, 0, 0, time.UTC).Unix()
	assert.Equal(t, want, units[0].Span.End)
}

func TestYearUnitsSkipsFutureYears(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	units, err := YearUnits(2025, 2026, 60, now)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "2025", units[0].Label)
}

func TestYearUnitsRejectsInvertedRange(t *testing.T) {
	_, err := YearUnits(2024, 2022, 60, time.Now())
	assert.Error(t, err)
}

func TestUnitIDStable(t *testing.T) {
	assert.Equal(t, UnitID("BTC-USD", "2023"), UnitID("BTC-USD", "2023"))
	assert.NotEqual(t, UnitID("BTC-USD", "2023"), UnitID("BTC-USD", "2024"))
	assert.NotEqual(t, UnitID("BTC-USD", "2023"), UnitID("ETH-USD", "2023"))
}
