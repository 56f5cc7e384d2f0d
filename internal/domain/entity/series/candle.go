package series

import (
	"fmt"
	"strconv"
	"time"
)

// Candle represents one fixed-interval OHLCV record. Timestamp is epoch
// seconds aligned to the period grid.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Synthetic reports whether the candle is a carried-forward placeholder:
// all four prices equal and zero volume.
func (c Candle) Synthetic() bool {
	return c.Open == c.High && c.High == c.Low && c.Low == c.Close && c.Volume == 0
}

// Unknown reports whether the candle is the all-zero leading-edge sentinel.
func (c Candle) Unknown() bool {
	return c.Open == 0 && c.High == 0 && c.Low == 0 && c.Close == 0 && c.Volume == 0
}

// CheckOHLC verifies the price relationship high >= max(open, close) and
// low <= min(open, close). Sentinel candles are exempt.
func (c Candle) CheckOHLC() error {
	if c.Synthetic() || c.Unknown() {
		return nil
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("non-positive price at %d", c.Timestamp)
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("high %v below open/close at %d", c.High, c.Timestamp)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low %v above open/close at %d", c.Low, c.Timestamp)
	}
	if c.Volume < 0 {
		return fmt.Errorf("negative volume at %d", c.Timestamp)
	}
	return nil
}

// CarryForward builds a synthetic zero-volume candle at ts from the last
// known close price.
func CarryForward(ts int64, lastClose float64) Candle {
	return Candle{
		Timestamp: ts,
		Open:      lastClose,
		High:      lastClose,
		Low:       lastClose,
		Close:     lastClose,
	}
}

// UnknownSentinel builds the all-zero candle used when a gap precedes any
// known price.
func UnknownSentinel(ts int64) Candle {
	return Candle{Timestamp: ts}
}

const timestampLayout = "2006-01-02 15:04:05"

// RecordHeader is the CSV column order consumed downstream. Both timestamp
// representations are kept on purpose.
var RecordHeader = []string{"timestamp", "open", "close", "volume", "unix_timestamp", "high", "low"}

// Record is the wire/file shape of a candle: seven fields, fixed order,
// with the timestamp carried both formatted and as epoch seconds.
type Record struct {
	Timestamp     string  `json:"timestamp"`
	Open          float64 `json:"open"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	UnixTimestamp int64   `json:"unix_timestamp"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
}

// NewRecord converts a candle into its wire shape.
func NewRecord(c Candle) Record {
	return Record{
		Timestamp:     time.Unix(c.Timestamp, 0).UTC().Format(timestampLayout),
		Open:          c.Open,
		Close:         c.Close,
		Volume:        c.Volume,
		UnixTimestamp: c.Timestamp,
		High:          c.High,
		Low:           c.Low,
	}
}

// Candle converts the record back to the in-memory form. The epoch-seconds
// field is authoritative; the formatted timestamp must agree with it.
func (r Record) Candle() (Candle, error) {
	if r.Timestamp != "" {
		parsed, err := time.Parse(timestampLayout, r.Timestamp)
		if err != nil {
			return Candle{}, fmt.Errorf("parse timestamp %q: %w", r.Timestamp, err)
		}
		if parsed.Unix() != r.UnixTimestamp {
			return Candle{}, fmt.Errorf("timestamp %q disagrees with unix_timestamp %d", r.Timestamp, r.UnixTimestamp)
		}
	}
	return Candle{
		Timestamp: r.UnixTimestamp,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}, nil
}

// CSV renders the record as one CSV row in RecordHeader order.
func (r Record) CSV() []string {
	return []string{
		r.Timestamp,
		formatFloat(r.Open),
		formatFloat(r.Close),
		formatFloat(r.Volume),
		strconv.FormatInt(r.UnixTimestamp, 10),
		formatFloat(r.High),
		formatFloat(r.Low),
	}
}

// RecordFromCSV parses one CSV row in RecordHeader order.
func RecordFromCSV(fields []string) (Record, error) {
	if len(fields) != len(RecordHeader) {
		return Record{}, fmt.Errorf("expected %d fields, got %d", len(RecordHeader), len(fields))
	}
	open, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse open: %w", err)
	}
	closePrice, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse close: %w", err)
	}
	volume, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse volume: %w", err)
	}
	unixTS, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse unix_timestamp: %w", err)
	}
	high, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse high: %w", err)
	}
	low, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse low: %w", err)
	}
	return Record{
		Timestamp:     fields[0],
		Open:          open,
		Close:         closePrice,
		Volume:        volume,
		UnixTimestamp: unixTS,
		High:          high,
		Low:           low,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
