package acquisition

import (
	"context"
	"errors"

	"candlearchive/internal/domain/entity/series"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Span is the full time range one unit of work covers, inclusive of both
// grid-aligned bounds.
type Span struct {
	Start  int64
	End    int64
	Period int64
}

// Windows partitions the span into fixed-size sub-windows of
// pageLimit*period seconds each. Sub-window starts are the keys the
// scheduler assembles results by.
func (s Span) Windows(pageLimit int) []series.FetchWindow {
	if pageLimit <= 0 || s.Period <= 0 || s.End < s.Start {
		return nil
	}
	step := int64(pageLimit) * s.Period
	limit := s.End + s.Period // half-open end covering the inclusive span
	var windows []series.FetchWindow
	for start := s.Start; start < limit; start += step {
		end := start + step
		if end > limit {
			end = limit
		}
		windows = append(windows, series.FetchWindow{
			Start:     start,
			End:       end,
			Period:    s.Period,
			PageLimit: pageLimit,
		})
	}
	return windows
}

// ParallelScheduler runs a RangeFetcher concurrently across the sub-windows
// of a span on a bounded worker pool. Every worker owns exactly one result
// slot, so assembly needs no locking and is deterministic regardless of
// completion order. A failed sub-window leaves a hole for the gap detector;
// it never aborts its siblings.
type ParallelScheduler struct {
	fetcher *RangeFetcher
	workers int
	logger  *logrus.Entry
}

// NewParallelScheduler builds a scheduler over the given fetcher.
func NewParallelScheduler(fetcher *RangeFetcher, workers int, logger *logrus.Logger) *ParallelScheduler {
	if workers <= 0 {
		workers = 1
	}
	return &ParallelScheduler{
		fetcher: fetcher,
		workers: workers,
		logger:  logger.WithField("component", "parallel_scheduler"),
	}
}

// Source names the backing candle source.
func (p *ParallelScheduler) Source() string { return p.fetcher.Source() }

// FetchAll fetches the whole span and returns the raw candles in window
// order, plus the list of sub-window failures. Failed windows leave holes,
// and a misbehaving source may deliver more than one candle per timestamp;
// both stay in the batch for the caller to flag and resolve. Only context
// cancellation is returned as an error.
func (p *ParallelScheduler) FetchAll(ctx context.Context, span Span) ([]series.Candle, []*ChunkFetchFailure, error) {
	windows := span.Windows(p.fetcher.source.PageLimit())
	results := make([][]series.Candle, len(windows))
	failed := make([]*ChunkFetchFailure, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, w := range windows {
		g.Go(func() error {
			candles, err := p.fetcher.Fetch(gctx, w)
			if err != nil {
				var failure *ChunkFetchFailure
				if errors.As(err, &failure) {
					failed[i] = failure
					p.logger.WithFields(logrus.Fields{
						"window_start": w.Start,
						"attempts":     failure.Attempts,
					}).WithError(failure.Err).Warn("sub-window fetch failed")
					return nil
				}
				return err
			}
			results[i] = candles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var out []series.Candle
	for _, candles := range results {
		out = append(out, candles...)
	}

	var failures []*ChunkFetchFailure
	for _, f := range failed {
		if f != nil {
			failures = append(failures, f)
		}
	}
	p.logger.WithFields(logrus.Fields{
		"windows":  len(windows),
		"failures": len(failures),
		"candles":  len(out),
	}).Info("span fetch finished")
	return out, failures, nil
}
