package repair

import (
	"candlearchive/internal/domain/entity/series"
)

// FindGaps walks an expected cursor from start to end (inclusive) in steps
// of period and groups consecutive absences into ranges. Linear time over
// the span via the series' timestamp index.
func FindGaps(s *series.CandleSeries, start, end, period int64) []series.MissingRange {
	if period <= 0 || end < start {
		return nil
	}
	var gaps []series.MissingRange
	var open *series.MissingRange
	for ts := start; ts <= end; ts += period {
		if s.Has(ts) {
			if open != nil {
				gaps = append(gaps, *open)
				open = nil
			}
			continue
		}
		if open == nil {
			open = &series.MissingRange{Start: ts, End: ts}
		} else {
			open.End = ts
		}
	}
	if open != nil {
		gaps = append(gaps, *open)
	}
	return gaps
}

// FindDuplicates reports timestamps occurring more than once in a raw
// candle batch, keyed by timestamp with their multiplicity. Duplicates can
// only exist pre-merge; they are flagged for the merger to resolve, never
// silently dropped here.
func FindDuplicates(candles []series.Candle) map[int64]int {
	counts := make(map[int64]int, len(candles))
	for _, c := range candles {
		counts[c.Timestamp]++
	}
	dups := make(map[int64]int)
	for ts, n := range counts {
		if n > 1 {
			dups[ts] = n
		}
	}
	return dups
}
