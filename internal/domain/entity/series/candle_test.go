package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	c := Candle{
		Timestamp: 1672531200,
		Open:      16541.77,
		High:      16544.2,
		Low:       16538.01,
		Close:     16543.5,
		Volume:    12.3456789,
	}
	rec := NewRecord(c)
	assert.Equal(t, "2023-01-01 00:00:00", rec.Timestamp)
	assert.Equal(t, c.Timestamp, rec.UnixTimestamp)

	back, err := rec.Candle()
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestRecordCSVRoundTrip(t *testing.T) {
	c := Candle{Timestamp: 1672531260, Open: 100.5, High: 101, Low: 99.25, Close: 100.75, Volume: 0.125}
	row := NewRecord(c).CSV()
	require.Len(t, row, len(RecordHeader))

	rec, err := RecordFromCSV(row)
	require.NoError(t, err)
	back, err := rec.Candle()
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestRecordCandleRejectsDisagreeingTimestamps(t *testing.T) {
	rec := NewRecord(Candle{Timestamp: 1672531200, Open: 1, High: 1, Low: 1, Close: 1})
	rec.UnixTimestamp += 60
	_, err := rec.Candle()
	assert.Error(t, err)
}

func TestRecordFromCSVRejectsShortRows(t *testing.T) {
	_, err := RecordFromCSV([]string{"2023-01-01 00:00:00", "1", "2"})
	assert.Error(t, err)
}

func TestSyntheticAndUnknown(t *testing.T) {
	carried := CarryForward(60, 42.5)
	assert.True(t, carried.Synthetic())
	assert.False(t, carried.Unknown())
	assert.Equal(t, 42.5, carried.Open)
	assert.Equal(t, 42.5, carried.Close)
	assert.Zero(t, carried.Volume)

	sentinel := UnknownSentinel(60)
	assert.True(t, sentinel.Unknown())
	assert.True(t, sentinel.Synthetic())
}

func TestCheckOHLC(t *testing.T) {
	valid := Candle{Timestamp: 60, Open: 10, High: 12, Low: 9, Close: 11, Volume: 1}
	assert.NoError(t, valid.CheckOHLC())

	highBelowClose := valid
	highBelowClose.High = 10.5
	assert.Error(t, highBelowClose.CheckOHLC())

	lowAboveOpen := valid
	lowAboveOpen.Low = 10.5
	assert.Error(t, lowAboveOpen.CheckOHLC())

	// Sentinels are exempt from the price relationship.
	assert.NoError(t, UnknownSentinel(60).CheckOHLC())
	assert.NoError(t, CarryForward(60, 42).CheckOHLC())
}
