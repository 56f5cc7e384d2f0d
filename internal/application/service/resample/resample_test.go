package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlearchive/internal/domain/entity/series"
)

func minuteSeries(t *testing.T, candles []series.Candle) *series.CandleSeries {
	t.Helper()
	s := series.NewSeries(60)
	require.NoError(t, s.PutAll(candles))
	return s
}

func TestDownsampleAggregatesBuckets(t *testing.T) {
	src := minuteSeries(t, []series.Candle{
		{Timestamp: 0, Open: 10, High: 12, Low: 9, Close: 11, Volume: 1},
		{Timestamp: 60, Open: 11, High: 15, Low: 10, Close: 14, Volume: 2},
		{Timestamp: 120, Open: 14, High: 14, Low: 8, Close: 9, Volume: 3},
		{Timestamp: 180, Open: 9, High: 10, Low: 9, Close: 10, Volume: 4},
		{Timestamp: 240, Open: 10, High: 11, Low: 7, Close: 8, Volume: 5},
	})

	out, err := Downsample(src, 300)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())

	bucket, ok := out.At(0)
	require.True(t, ok)
	assert.Equal(t, 10.0, bucket.Open)
	assert.Equal(t, 15.0, bucket.High)
	assert.Equal(t, 7.0, bucket.Low)
	assert.Equal(t, 8.0, bucket.Close)
	assert.Equal(t, 15.0, bucket.Volume)
}

func TestDownsampleAlignsBucketsToTargetGrid(t *testing.T) {
	src := minuteSeries(t, []series.Candle{
		{Timestamp: 240, Open: 1, High: 2, Low: 1, Close: 2, Volume: 1},
		{Timestamp: 300, Open: 2, High: 3, Low: 2, Close: 3, Volume: 1},
	})

	out, err := Downsample(src, 300)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.True(t, out.Has(0))
	assert.True(t, out.Has(300))
}

func TestDownsampleSkipsEmptyBuckets(t *testing.T) {
	src := minuteSeries(t, []series.Candle{
		{Timestamp: 0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: 600, Open: 2, High: 2, Low: 2, Close: 2, Volume: 2},
	})

	out, err := Downsample(src, 300)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.False(t, out.Has(300))
}

func TestDownsampleRejectsNonMultiplePeriods(t *testing.T) {
	src := minuteSeries(t, nil)
	_, err := Downsample(src, 90)
	assert.Error(t, err)
}

func TestDownsampleSamePeriodCopies(t *testing.T) {
	src := minuteSeries(t, []series.Candle{
		{Timestamp: 0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	})
	out, err := Downsample(src, 60)
	require.NoError(t, err)
	assert.Equal(t, src.Candles(), out.Candles())
}
