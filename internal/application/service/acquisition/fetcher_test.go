package acquisition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlearchive/internal/domain/entity/series"
	"candlearchive/internal/domain/interfaces"
)

// fakeSource serves candles on the period grid, failing the first failures
// calls per window start. A duplicates entry adds a second, conflicting
// candle right after the grid one.
type fakeSource struct {
	mu         sync.Mutex
	pageLimit  int
	failures   map[int64]int
	failWith   error
	calls      map[int64]int
	duplicates map[int64]series.Candle
}

func newFakeSource(pageLimit int) *fakeSource {
	return &fakeSource{
		pageLimit:  pageLimit,
		failures:   make(map[int64]int),
		calls:      make(map[int64]int),
		duplicates: make(map[int64]series.Candle),
	}
}

func (f *fakeSource) Name() string   { return "fake" }
func (f *fakeSource) PageLimit() int { return f.pageLimit }

func (f *fakeSource) Fetch(ctx context.Context, symbol string, window series.FetchWindow) ([]series.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[window.Start]++
	if f.failures[window.Start] > 0 {
		f.failures[window.Start]--
		err := f.failWith
		if err == nil {
			err = &interfaces.SourceError{Source: "fake", Kind: interfaces.KindTransient, Err: errors.New("boom")}
		}
		return nil, err
	}
	var out []series.Candle
	for ts := window.Start; ts < window.End; ts += window.Period {
		out = append(out, series.Candle{Timestamp: ts, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1})
		if d, ok := f.duplicates[ts]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, BackoffBase: time.Millisecond}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	src := newFakeSource(10)
	src.failures[0] = 2
	fetcher := NewRangeFetcher(src, "BTC-USD", fastRetry(3), testLogger())

	candles, err := fetcher.Fetch(context.Background(), series.FetchWindow{Start: 0, End: 600, Period: 60})
	require.NoError(t, err)
	assert.Len(t, candles, 10)
	assert.Equal(t, 3, src.calls[0])
}

func TestFetchExhaustedRetriesReturnsTypedFailure(t *testing.T) {
	src := newFakeSource(10)
	src.failures[0] = 100
	fetcher := NewRangeFetcher(src, "BTC-USD", fastRetry(2), testLogger())

	_, err := fetcher.Fetch(context.Background(), series.FetchWindow{Start: 0, End: 600, Period: 60})
	var failure *ChunkFetchFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 3, failure.Attempts)
	assert.Equal(t, "fake", failure.Source)
	assert.Equal(t, int64(0), failure.Window.Start)
	assert.Equal(t, 3, src.calls[0])
}

func TestFetchDoesNotRetryFatalErrors(t *testing.T) {
	src := newFakeSource(10)
	src.failures[0] = 100
	src.failWith = &interfaces.SourceError{Source: "fake", Kind: interfaces.KindFatal, Err: errors.New("bad symbol")}
	fetcher := NewRangeFetcher(src, "BTC-USD", fastRetry(5), testLogger())

	_, err := fetcher.Fetch(context.Background(), series.FetchWindow{Start: 0, End: 600, Period: 60})
	var failure *ChunkFetchFailure
	require.ErrorAs(t, err, &failure)
	// Only the one attempt actually made is reported, not the budget.
	assert.Equal(t, 1, failure.Attempts)
	assert.Equal(t, 1, src.calls[0])
}

func TestPaginateZeroPeriodIsSinglePage(t *testing.T) {
	pages := paginate(series.FetchWindow{Start: 0, End: 600}, 5)
	require.Len(t, pages, 1)
	assert.Equal(t, int64(0), pages[0].Start)
	assert.Equal(t, int64(600), pages[0].End)
}

func TestFetchPaginatesPastPageLimit(t *testing.T) {
	src := newFakeSource(5)
	fetcher := NewRangeFetcher(src, "BTC-USD", fastRetry(0), testLogger())

	candles, err := fetcher.Fetch(context.Background(), series.FetchWindow{Start: 0, End: 720, Period: 60})
	require.NoError(t, err)
	assert.Len(t, candles, 12)
	// 12 candles at 5 per page means three requests.
	assert.Equal(t, 1, src.calls[0])
	assert.Equal(t, 1, src.calls[300])
	assert.Equal(t, 1, src.calls[600])
}

func TestFetchIsAllOrNothingPerWindow(t *testing.T) {
	src := newFakeSource(5)
	src.failures[300] = 100
	fetcher := NewRangeFetcher(src, "BTC-USD", fastRetry(1), testLogger())

	candles, err := fetcher.Fetch(context.Background(), series.FetchWindow{Start: 0, End: 600, Period: 60})
	assert.Error(t, err)
	assert.Nil(t, candles)
}

func TestFetchHonorsCancellation(t *testing.T) {
	src := newFakeSource(10)
	src.failures[0] = 100
	fetcher := NewRangeFetcher(src, "BTC-USD", RetryConfig{MaxRetries: 5, BackoffBase: time.Hour}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetcher.Fetch(ctx, series.FetchWindow{Start: 0, End: 600, Period: 60})
	assert.ErrorIs(t, err, context.Canceled)
}
