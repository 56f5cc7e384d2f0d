package validation

import (
	"fmt"

	"candlearchive/internal/domain/entity/series"
)

// Validator checks coverage, per-candle invariants, and cross-segment
// continuity. It only reports; it never corrects.
type Validator struct {
	boundaryTolerance int64
}

// NewValidator builds a validator. boundaryTolerance, in seconds, relaxes
// the continuity check at declared segment boundaries only.
func NewValidator(boundaryTolerance int64) *Validator {
	if boundaryTolerance < 0 {
		boundaryTolerance = 0
	}
	return &Validator{boundaryTolerance: boundaryTolerance}
}

// Validate checks that exactly one candle exists per expected timestamp in
// [start, end] and that every non-sentinel candle satisfies the OHLC
// relationship. Violations are reported in timestamp order.
func (v *Validator) Validate(s *series.CandleSeries, start, end, period int64) series.Report {
	report := series.Report{OK: true, Present: int64(s.Len())}
	if period <= 0 || end < start {
		report.Add(series.Violation{Kind: series.ViolationBoundary, Detail: "empty or inverted span"})
		return report
	}
	report.Expected = (end-start)/period + 1

	for ts := start; ts <= end; ts += period {
		c, ok := s.At(ts)
		if !ok {
			report.Add(series.Violation{
				Timestamp: ts,
				Kind:      series.ViolationMissing,
				Detail:    "no candle at expected timestamp",
			})
			continue
		}
		if err := c.CheckOHLC(); err != nil {
			report.Add(series.Violation{
				Timestamp: ts,
				Kind:      series.ViolationOHLC,
				Detail:    err.Error(),
			})
		}
	}

	// Entries off the expected grid count against uniqueness: the span must
	// hold exactly one candle per expected timestamp and nothing else.
	for _, c := range s.Candles() {
		if c.Timestamp < start || c.Timestamp > end || (c.Timestamp-start)%period != 0 {
			report.Add(series.Violation{
				Timestamp: c.Timestamp,
				Kind:      series.ViolationDuplicate,
				Detail:    "candle outside the expected timestamp grid",
			})
		}
	}
	return report
}

// CheckContinuity verifies that two chronologically adjacent segments join
// cleanly: the first timestamp of the next segment follows the last
// timestamp of the previous one by exactly one period, or within the
// boundary tolerance.
func (v *Validator) CheckContinuity(prevLast, nextFirst, period int64) *series.Violation {
	gap := nextFirst - prevLast
	if gap == period {
		return nil
	}
	if diff := gap - period; diff >= -v.boundaryTolerance && diff <= v.boundaryTolerance {
		return nil
	}
	return &series.Violation{
		Timestamp: nextFirst,
		Kind:      series.ViolationBoundary,
		Detail:    fmt.Sprintf("segment joins with gap of %ds, want %ds (tolerance %ds)", gap, period, v.boundaryTolerance),
	}
}

// ValidateSegments validates each segment over its own span and then the
// joins between consecutive segments. Spans must be given in chronological
// order, one per segment.
func (v *Validator) ValidateSegments(segments []*series.CandleSeries, spans [][2]int64, period int64) series.Report {
	combined := series.Report{OK: true}
	for i, seg := range segments {
		r := v.Validate(seg, spans[i][0], spans[i][1], period)
		combined.Expected += r.Expected
		combined.Present += r.Present
		for _, violation := range r.Violations {
			combined.Add(violation)
		}
		if i == 0 {
			continue
		}
		prev, okPrev := segments[i-1].Last()
		first, okFirst := seg.First()
		if !okPrev || !okFirst {
			continue
		}
		if violation := v.CheckContinuity(prev.Timestamp, first.Timestamp, period); violation != nil {
			combined.Add(*violation)
		}
	}
	return combined
}
