package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlearchive/internal/domain/entity/series"
)

func fullSeries(t *testing.T, start, end, period int64) *series.CandleSeries {
	t.Helper()
	s := series.NewSeries(period)
	for ts := start; ts <= end; ts += period {
		require.NoError(t, s.Put(series.Candle{Timestamp: ts, Open: 10, High: 11, Low: 9, Close: 10, Volume: 1}))
	}
	return s
}

func TestValidateCompleteSeries(t *testing.T) {
	s := fullSeries(t, 0, 600, 60)
	report := NewValidator(0).Validate(s, 0, 600, 60)

	assert.True(t, report.OK)
	assert.Equal(t, int64(11), report.Expected)
	assert.Equal(t, int64(11), report.Present)
	assert.Empty(t, report.Violations)
}

func TestValidateMissingFirstTimestampIsOneViolation(t *testing.T) {
	s := fullSeries(t, 60, 600, 60)
	report := NewValidator(0).Validate(s, 0, 600, 60)

	require.False(t, report.OK)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, series.ViolationMissing, report.Violations[0].Kind)
	assert.Equal(t, int64(0), report.Violations[0].Timestamp)
}

func TestValidateFlagsBadOHLC(t *testing.T) {
	s := fullSeries(t, 0, 120, 60)
	require.NoError(t, s.Put(series.Candle{Timestamp: 60, Open: 10, High: 9, Low: 9, Close: 10, Volume: 1}))

	report := NewValidator(0).Validate(s, 0, 120, 60)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, series.ViolationOHLC, report.Violations[0].Kind)
	assert.Equal(t, int64(60), report.Violations[0].Timestamp)
}

func TestValidateSkipsSentinels(t *testing.T) {
	s := fullSeries(t, 0, 120, 60)
	require.NoError(t, s.Put(series.CarryForward(60, 10)))
	require.NoError(t, s.Put(series.UnknownSentinel(0)))

	report := NewValidator(0).Validate(s, 0, 120, 60)
	assert.True(t, report.OK)
}

func TestValidateFlagsOffGridCandles(t *testing.T) {
	s := fullSeries(t, 0, 120, 60)
	require.NoError(t, s.Put(series.Candle{Timestamp: 90, Open: 10, High: 11, Low: 9, Close: 10, Volume: 1}))

	report := NewValidator(0).Validate(s, 0, 120, 60)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, series.ViolationDuplicate, report.Violations[0].Kind)
	assert.Equal(t, int64(90), report.Violations[0].Timestamp)
}

func TestValidateNeverMutates(t *testing.T) {
	s := fullSeries(t, 60, 600, 60)
	before := s.Len()
	_ = NewValidator(0).Validate(s, 0, 600, 60)
	assert.Equal(t, before, s.Len())
}

func TestCheckContinuity(t *testing.T) {
	v := NewValidator(0)
	assert.Nil(t, v.CheckContinuity(540, 600, 60))

	violation := v.CheckContinuity(540, 720, 60)
	require.NotNil(t, violation)
	assert.Equal(t, series.ViolationBoundary, violation.Kind)
	assert.Equal(t, int64(720), violation.Timestamp)
}

func TestCheckContinuityTolerance(t *testing.T) {
	v := NewValidator(60)
	assert.Nil(t, v.CheckContinuity(540, 660, 60))
	assert.NotNil(t, v.CheckContinuity(540, 780, 60))
}

func TestValidateSegments(t *testing.T) {
	first := fullSeries(t, 0, 540, 60)
	second := fullSeries(t, 600, 1140, 60)

	report := NewValidator(0).ValidateSegments(
		[]*series.CandleSeries{first, second},
		[][2]int64{{0, 540}, {600, 1140}},
		60,
	)
	assert.True(t, report.OK)
	assert.Equal(t, int64(20), report.Expected)
}

func TestValidateSegmentsFlagsBadJoin(t *testing.T) {
	first := fullSeries(t, 0, 540, 60)
	second := fullSeries(t, 720, 1140, 60)

	report := NewValidator(0).ValidateSegments(
		[]*series.CandleSeries{first, second},
		[][2]int64{{0, 540}, {720, 1140}},
		60,
	)
	require.False(t, report.OK)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, series.ViolationBoundary, report.Violations[0].Kind)
}
