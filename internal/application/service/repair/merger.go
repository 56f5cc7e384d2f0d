package repair

import (
	"candlearchive/internal/domain/entity/series"
)

// SourcedCandles is one candle collection tagged with the source it came
// from, for precedence resolution during merge.
type SourcedCandles struct {
	Source  string
	Candles []series.Candle
}

// Merge combines the collections into one series. Duplicate timestamps are
// resolved by the explicit precedence list of source names; a source absent
// from the list, or an empty list, falls back to first-encountered wins.
// Precedence is configuration, never an interactive decision. The second
// return value counts dropped duplicates for observability.
func Merge(batches []SourcedCandles, precedence []string, period int64) (*series.CandleSeries, int) {
	rank := make(map[string]int, len(precedence))
	for i, name := range precedence {
		rank[name] = i
	}
	// Sources outside the precedence list rank after every listed one, in
	// encounter order.
	next := len(precedence)
	sourceRank := func(name string) int {
		if r, ok := rank[name]; ok {
			return r
		}
		rank[name] = next
		next++
		return rank[name]
	}

	type pick struct {
		candle series.Candle
		rank   int
	}
	chosen := make(map[int64]pick)
	dropped := 0
	for _, batch := range batches {
		r := sourceRank(batch.Source)
		for _, c := range batch.Candles {
			existing, ok := chosen[c.Timestamp]
			if !ok {
				chosen[c.Timestamp] = pick{candle: c, rank: r}
				continue
			}
			dropped++
			if r < existing.rank {
				chosen[c.Timestamp] = pick{candle: c, rank: r}
			}
		}
	}

	out := series.NewSeries(period)
	for _, p := range chosen {
		// Put on a fresh series cannot fail.
		_ = out.Put(p.candle)
	}
	return out, dropped
}
