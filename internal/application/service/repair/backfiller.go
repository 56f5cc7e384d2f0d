package repair

import (
	"context"

	"candlearchive/internal/application/service/acquisition"
	"candlearchive/internal/domain/entity/series"

	"github.com/sirupsen/logrus"
)

// Backfiller resolves missing ranges with a two-tier policy: first the
// secondary source over exactly the range, then synthetic carry-forward for
// whatever is still absent. Both tiers are deterministic for the same
// inputs.
type Backfiller struct {
	secondary *acquisition.RangeFetcher
	logger    *logrus.Entry
}

// NewBackfiller wires a backfiller to the secondary-source fetcher. A nil
// fetcher disables tier one and everything is synthesized.
func NewBackfiller(secondary *acquisition.RangeFetcher, logger *logrus.Logger) *Backfiller {
	return &Backfiller{
		secondary: secondary,
		logger:    logger.WithField("component", "backfiller"),
	}
}

// Source names the secondary source, or "synthetic" when none is wired.
func (b *Backfiller) Source() string {
	if b.secondary == nil {
		return "synthetic"
	}
	return b.secondary.Source()
}

// Repair produces one candle per timestamp in rng. lastKnown is the latest
// candle before the range, or nil when the range sits at the true start of
// the series; in that case the leading points become all-zero sentinels and
// the second return value reports the indeterminate start.
func (b *Backfiller) Repair(ctx context.Context, rng series.MissingRange, period int64, lastKnown *series.Candle) ([]series.Candle, series.RepairRecord, bool) {
	fetched := make(map[int64]series.Candle)
	if b.secondary != nil {
		window := series.FetchWindow{
			Start:  rng.Start,
			End:    rng.End + period, // half-open window covering the inclusive range
			Period: period,
		}
		candles, err := b.secondary.Fetch(ctx, window)
		if err != nil {
			b.logger.WithFields(logrus.Fields{
				"range_start": rng.Start,
				"range_end":   rng.End,
			}).WithError(err).Warn("secondary source unavailable, synthesizing range")
		}
		for _, c := range candles {
			if c.Timestamp >= rng.Start && c.Timestamp <= rng.End {
				fetched[c.Timestamp] = c
			}
		}
	}

	var lastClose float64
	known := false
	if lastKnown != nil {
		lastClose = lastKnown.Close
		known = true
	}

	indeterminate := false
	synthesized := 0
	patched := make([]series.Candle, 0, rng.Count(period))
	for ts := rng.Start; ts <= rng.End; ts += period {
		if c, ok := fetched[ts]; ok {
			patched = append(patched, c)
			lastClose = c.Close
			known = true
			continue
		}
		synthesized++
		if !known {
			patched = append(patched, series.UnknownSentinel(ts))
			indeterminate = true
			continue
		}
		patched = append(patched, series.CarryForward(ts, lastClose))
	}

	method := series.RepairSecondarySource
	if len(fetched) == 0 {
		method = series.RepairSynthesized
	}
	record := series.RepairRecord{
		Range:       rng,
		Method:      method,
		PointsAdded: len(patched),
		Synthesized: synthesized,
	}
	b.logger.WithFields(logrus.Fields{
		"range_start": rng.Start,
		"range_end":   rng.End,
		"method":      method,
		"points":      record.PointsAdded,
		"synthesized": synthesized,
	}).Info("range repaired")
	return patched, record, indeterminate
}
