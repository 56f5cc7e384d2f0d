package interfaces

import (
	"context"
	"errors"

	"candlearchive/internal/domain/entity/series"
)

// ErrUnitNotFound is returned by SeriesSink.LoadSeries when no data exists
// for the requested unit.
var ErrUnitNotFound = errors.New("unit not found")

// SeriesSink accepts a complete, validated series as a single bulk write.
// Partial series are never written.
type SeriesSink interface {
	WriteSeries(ctx context.Context, symbol, unit string, s *series.CandleSeries) error
	LoadSeries(ctx context.Context, symbol, unit string, start, end, period int64) (*series.CandleSeries, error)
}

// RunRecorder persists run outcomes for audit. Sinks that cannot record
// runs simply do not implement it.
type RunRecorder interface {
	RecordRun(ctx context.Context, outcome *series.RunOutcome) error
}

// CheckpointStore tracks the watermark per unit: the timestamp through
// which the unit is known complete and validated.
type CheckpointStore interface {
	Watermark(ctx context.Context, symbol, unit string) (int64, error)
	SetWatermark(ctx context.Context, symbol, unit string, ts int64) error
}

// OutcomePublisher delivers run outcomes to interested consumers.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome *series.RunOutcome) error
}
