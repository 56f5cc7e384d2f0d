package acquisition

import (
	"context"
	"fmt"
	"time"

	"candlearchive/internal/domain/entity/series"
	"candlearchive/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// ChunkFetchFailure is returned once the retry budget for a window is
// exhausted. Callers decide whether to proceed with a hole.
type ChunkFetchFailure struct {
	Window   series.FetchWindow
	Source   string
	Attempts int
	Err      error
}

func (f *ChunkFetchFailure) Error() string {
	return fmt.Sprintf("fetch %s [%d, %d) failed after %d attempts: %v",
		f.Source, f.Window.Start, f.Window.End, f.Attempts, f.Err)
}

func (f *ChunkFetchFailure) Unwrap() error { return f.Err }

// RetryConfig bounds the retry loop for one page request.
type RetryConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
}

// RangeFetcher pulls candles for one bounded window from a source,
// paginating past the source page limit and retrying transient and
// rate-limit failures with exponential backoff. It has no side effects
// beyond the network call and may be re-issued safely.
type RangeFetcher struct {
	source interfaces.CandleSource
	symbol string
	cfg    RetryConfig
	logger *logrus.Entry
}

// NewRangeFetcher wires a fetcher to one source and symbol.
func NewRangeFetcher(source interfaces.CandleSource, symbol string, cfg RetryConfig, logger *logrus.Logger) *RangeFetcher {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	return &RangeFetcher{
		source: source,
		symbol: symbol,
		cfg:    cfg,
		logger: logger.WithFields(logrus.Fields{
			"component": "range_fetcher",
			"source":    source.Name(),
		}),
	}
}

// Source returns the name of the backing provider.
func (f *RangeFetcher) Source() string { return f.source.Name() }

// Fetch returns candles for the window in ascending order. On exhausted
// retries the error is a *ChunkFetchFailure; candles fetched for earlier
// pages of the same window are discarded so the result is all-or-nothing.
func (f *RangeFetcher) Fetch(ctx context.Context, window series.FetchWindow) ([]series.Candle, error) {
	out := make([]series.Candle, 0, window.Count())
	for _, page := range paginate(window, f.source.PageLimit()) {
		candles, err := f.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		out = append(out, candles...)
	}
	return out, nil
}

// fetchPage runs the bounded retry loop for a single page-sized window.
// The loop carries an explicit attempt counter; there is no recursion, so
// the retry budget is auditable.
func (f *RangeFetcher) fetchPage(ctx context.Context, page series.FetchWindow) ([]series.Candle, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.cfg.BackoffBase << (attempt - 1)
			f.logger.WithFields(logrus.Fields{
				"window_start": page.Start,
				"attempt":      attempt,
				"delay":        delay.String(),
			}).Warn("retrying window fetch")
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}
		attempts++
		candles, err := f.source.Fetch(ctx, f.symbol, page)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !interfaces.Retryable(err) {
			break
		}
	}
	return nil, &ChunkFetchFailure{
		Window:   page,
		Source:   f.source.Name(),
		Attempts: attempts,
		Err:      lastErr,
	}
}

// paginate splits a window into page-limit-sized sub-windows. A degenerate
// window (no limit or no period) passes through as a single page rather
// than looping on a zero step.
func paginate(window series.FetchWindow, pageLimit int) []series.FetchWindow {
	if pageLimit <= 0 || window.Period <= 0 {
		return []series.FetchWindow{window}
	}
	span := int64(pageLimit) * window.Period
	var pages []series.FetchWindow
	for start := window.Start; start < window.End; start += span {
		end := start + span
		if end > window.End {
			end = window.End
		}
		pages = append(pages, series.FetchWindow{
			Start:     start,
			End:       end,
			Period:    window.Period,
			PageLimit: pageLimit,
		})
	}
	return pages
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
