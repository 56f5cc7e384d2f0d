package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlearchive/internal/domain/entity/series"
)

func TestMergePrecedenceWinsConflicts(t *testing.T) {
	batches := []SourcedCandles{
		{Source: "b", Candles: []series.Candle{{Timestamp: 60, Close: 70}}},
		{Source: "a", Candles: []series.Candle{{Timestamp: 60, Close: 50}}},
	}

	merged, dropped := Merge(batches, []string{"a", "b"}, 60)
	assert.Equal(t, 1, dropped)
	c, ok := merged.At(60)
	require.True(t, ok)
	assert.Equal(t, 50.0, c.Close)
}

func TestMergeFirstEncounteredWinsWithoutPrecedence(t *testing.T) {
	batches := []SourcedCandles{
		{Source: "x", Candles: []series.Candle{{Timestamp: 60, Close: 1}}},
		{Source: "y", Candles: []series.Candle{{Timestamp: 60, Close: 2}}},
	}

	merged, dropped := Merge(batches, nil, 60)
	assert.Equal(t, 1, dropped)
	c, ok := merged.At(60)
	require.True(t, ok)
	assert.Equal(t, 1.0, c.Close)
}

func TestMergeWithItselfIsIdentity(t *testing.T) {
	candles := []series.Candle{
		{Timestamp: 60, Close: 1}, {Timestamp: 120, Close: 2}, {Timestamp: 180, Close: 3},
	}
	batches := []SourcedCandles{
		{Source: "s", Candles: candles},
		{Source: "s", Candles: candles},
	}

	merged, dropped := Merge(batches, nil, 60)
	assert.Equal(t, len(candles), dropped)
	assert.Equal(t, len(candles), merged.Len())
	assert.Equal(t, candles, merged.Candles())
}

func TestMergeDisjointBatches(t *testing.T) {
	batches := []SourcedCandles{
		{Source: "a", Candles: []series.Candle{{Timestamp: 60}, {Timestamp: 180}}},
		{Source: "b", Candles: []series.Candle{{Timestamp: 120}}},
	}

	merged, dropped := Merge(batches, []string{"a", "b"}, 60)
	assert.Zero(t, dropped)
	assert.Equal(t, 3, merged.Len())
}
