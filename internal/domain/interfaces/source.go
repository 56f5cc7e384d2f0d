package interfaces

import (
	"context"
	"errors"
	"fmt"

	"candlearchive/internal/domain/entity/series"
)

// SourceErrorKind classifies provider failures for the retry policy.
type SourceErrorKind int

const (
	// KindTransient covers network failures and 5xx responses.
	KindTransient SourceErrorKind = iota
	// KindRateLimit covers 429 responses; always retried with backoff.
	KindRateLimit
	// KindFatal covers everything that retrying cannot fix.
	KindFatal
)

func (k SourceErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "fatal"
	}
}

// SourceError wraps a provider failure with its retry classification.
type SourceError struct {
	Source     string
	Kind       SourceErrorKind
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Source, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Retryable reports whether err is a source failure the retry loop should
// absorb.
func Retryable(err error) bool {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Kind == KindTransient || srcErr.Kind == KindRateLimit
	}
	return false
}

// CandleSource is implemented once per provider. Fetch returns candles in
// ascending timestamp order for the half-open window [Start, End); window
// boundary semantics of the underlying provider are normalized inside the
// adapter, never leaked to callers.
type CandleSource interface {
	Name() string
	PageLimit() int
	Fetch(ctx context.Context, symbol string, window series.FetchWindow) ([]series.Candle, error)
}
