package resample

import (
	"fmt"

	"candlearchive/internal/domain/entity/series"
)

// Downsample aggregates a fine-grained series into a coarser one. The target
// period must be a whole multiple of the source period. Buckets are aligned
// to multiples of the target period; buckets with no source candles are
// skipped rather than synthesized.
func Downsample(src *series.CandleSeries, targetPeriod int64) (*series.CandleSeries, error) {
	sourcePeriod := src.Period()
	if sourcePeriod <= 0 || targetPeriod <= 0 {
		return nil, fmt.Errorf("resample %ds to %ds: periods must be positive", sourcePeriod, targetPeriod)
	}
	if targetPeriod%sourcePeriod != 0 {
		return nil, fmt.Errorf("resample %ds to %ds: target is not a multiple of source", sourcePeriod, targetPeriod)
	}
	if targetPeriod == sourcePeriod {
		out := series.NewSeries(targetPeriod)
		if err := out.PutAll(src.Candles()); err != nil {
			return nil, err
		}
		return out, nil
	}

	out := series.NewSeries(targetPeriod)
	var bucket series.Candle
	var bucketStart int64 = -1

	flush := func() error {
		if bucketStart < 0 {
			return nil
		}
		bucket.Timestamp = bucketStart
		err := out.Put(bucket)
		bucketStart = -1
		return err
	}

	for _, c := range src.Candles() {
		start := c.Timestamp - mod(c.Timestamp, targetPeriod)
		if start != bucketStart {
			if err := flush(); err != nil {
				return nil, err
			}
			bucketStart = start
			bucket = c
			continue
		}
		if c.High > bucket.High {
			bucket.High = c.High
		}
		if c.Low < bucket.Low {
			bucket.Low = c.Low
		}
		bucket.Close = c.Close
		bucket.Volume += c.Volume
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// mod is the floored modulo, safe for pre-epoch timestamps.
func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
