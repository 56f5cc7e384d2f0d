package series

// MissingRange is a contiguous span of expected-but-absent timestamps.
// Both bounds are inclusive and aligned to the period grid.
type MissingRange struct {
	Start int64 `json:"start_timestamp"`
	End   int64 `json:"end_timestamp"`
}

// Count returns the number of missing candles the range covers.
func (r MissingRange) Count(period int64) int64 {
	if period <= 0 || r.End < r.Start {
		return 0
	}
	return (r.End-r.Start)/period + 1
}

// FetchWindow describes one request-sized unit of fetch work. The window is
// half-open: candles with Start <= ts < End belong to it. Source adapters
// translate this convention to whatever the provider expects.
type FetchWindow struct {
	Start     int64
	End       int64
	Period    int64
	PageLimit int
}

// Count returns the number of candles the window spans.
func (w FetchWindow) Count() int64 {
	if w.Period <= 0 || w.End <= w.Start {
		return 0
	}
	return (w.End - w.Start) / w.Period
}

// Repair methods recorded in RepairRecord.
const (
	RepairSecondarySource = "secondary-source"
	RepairSynthesized     = "synthesized"
)

// RepairRecord is the audit trail of how one missing range was resolved.
type RepairRecord struct {
	Range       MissingRange `json:"range"`
	Method      string       `json:"method"`
	PointsAdded int          `json:"points_added"`
	Synthesized int          `json:"synthesized"`
}
