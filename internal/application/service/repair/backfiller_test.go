package repair

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlearchive/internal/application/service/acquisition"
	"candlearchive/internal/domain/entity/series"
	"candlearchive/internal/domain/interfaces"
)

// stubSource answers with a fixed candle set, or always fails.
type stubSource struct {
	candles []series.Candle
	down    bool
}

func (s *stubSource) Name() string   { return "stub" }
func (s *stubSource) PageLimit() int { return 1000 }

func (s *stubSource) Fetch(ctx context.Context, symbol string, window series.FetchWindow) ([]series.Candle, error) {
	if s.down {
		return nil, &interfaces.SourceError{Source: "stub", Kind: interfaces.KindFatal, Err: errors.New("unreachable")}
	}
	var out []series.Candle
	for _, c := range s.candles {
		if c.Timestamp >= window.Start && c.Timestamp < window.End {
			out = append(out, c)
		}
	}
	return out, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestBackfiller(src *stubSource) *Backfiller {
	fetcher := acquisition.NewRangeFetcher(src, "BTCUSDT", acquisition.RetryConfig{MaxRetries: 0, BackoffBase: time.Millisecond}, testLogger())
	return NewBackfiller(fetcher, testLogger())
}

func TestRepairSynthesizesWhenSecondaryDown(t *testing.T) {
	b := newTestBackfiller(&stubSource{down: true})
	lastKnown := &series.Candle{Timestamp: 60, Open: 99, High: 101, Low: 98, Close: 100, Volume: 3}

	candles, record, indeterminate := b.Repair(context.Background(), series.MissingRange{Start: 120, End: 240}, 60, lastKnown)
	require.Len(t, candles, 3)
	assert.False(t, indeterminate)
	assert.Equal(t, series.RepairSynthesized, record.Method)
	assert.Equal(t, 3, record.PointsAdded)
	assert.Equal(t, 3, record.Synthesized)

	for _, c := range candles {
		assert.True(t, c.Synthetic())
		assert.Equal(t, 100.0, c.Open)
		assert.Equal(t, 100.0, c.Close)
		assert.Zero(t, c.Volume)
	}
}

func TestRepairLeadingEdgeWithoutPriorIsIndeterminate(t *testing.T) {
	b := newTestBackfiller(&stubSource{down: true})

	candles, record, indeterminate := b.Repair(context.Background(), series.MissingRange{Start: 0, End: 120}, 60, nil)
	require.Len(t, candles, 3)
	assert.True(t, indeterminate)
	assert.Equal(t, series.RepairSynthesized, record.Method)
	for _, c := range candles {
		assert.True(t, c.Unknown())
	}
}

func TestRepairPrefersSecondarySource(t *testing.T) {
	src := &stubSource{candles: []series.Candle{
		{Timestamp: 120, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 2},
	}}
	b := newTestBackfiller(src)
	lastKnown := &series.Candle{Timestamp: 60, Close: 100}

	candles, record, indeterminate := b.Repair(context.Background(), series.MissingRange{Start: 120, End: 240}, 60, lastKnown)
	require.Len(t, candles, 3)
	assert.False(t, indeterminate)
	assert.Equal(t, series.RepairSecondarySource, record.Method)
	assert.Equal(t, 2, record.Synthesized)

	// The fetched candle survives untouched.
	assert.Equal(t, 10.5, candles[0].Close)
	// Carry-forward continues from the fetched close, not the prior one.
	assert.Equal(t, 10.5, candles[1].Close)
	assert.True(t, candles[1].Synthetic())
	assert.Equal(t, 10.5, candles[2].Close)
}

func TestRepairSentinelsUntilFirstFetchedCandle(t *testing.T) {
	src := &stubSource{candles: []series.Candle{
		{Timestamp: 120, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 2},
	}}
	b := newTestBackfiller(src)

	candles, _, indeterminate := b.Repair(context.Background(), series.MissingRange{Start: 0, End: 180}, 60, nil)
	require.Len(t, candles, 4)
	assert.True(t, indeterminate)
	assert.True(t, candles[0].Unknown())
	assert.True(t, candles[1].Unknown())
	assert.Equal(t, 10.5, candles[2].Close)
	assert.Equal(t, 10.5, candles[3].Close)
	assert.True(t, candles[3].Synthetic())
}
