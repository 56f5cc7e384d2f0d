package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"candlearchive/internal/application/service/acquisition"
	"candlearchive/internal/application/service/repair"
	"candlearchive/internal/application/service/validation"
	"candlearchive/internal/domain/entity/series"
	"candlearchive/internal/domain/interfaces"
)

// Unit is one independently processed slice of history, usually a calendar
// year. Its span is inclusive on both ends.
type Unit struct {
	Label string
	Span  acquisition.Span
}

// Orchestrator drives a unit through fetch, validate, repair and persist.
// The checkpoint store, run recorder and outcome publisher are optional;
// nil disables the corresponding step.
type Orchestrator struct {
	symbol      string
	scheduler   *acquisition.ParallelScheduler
	backfiller  *repair.Backfiller
	validator   *validation.Validator
	precedence  []string
	sink        interfaces.SeriesSink
	recorder    interfaces.RunRecorder
	checkpoints interfaces.CheckpointStore
	publisher   interfaces.OutcomePublisher
	logger      *logrus.Entry
}

// Options carries the optional collaborators of an orchestrator.
type Options struct {
	Sink        interfaces.SeriesSink
	Recorder    interfaces.RunRecorder
	Checkpoints interfaces.CheckpointStore
	Publisher   interfaces.OutcomePublisher
}

func NewOrchestrator(
	symbol string,
	scheduler *acquisition.ParallelScheduler,
	backfiller *repair.Backfiller,
	validator *validation.Validator,
	precedence []string,
	opts Options,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		symbol:      symbol,
		scheduler:   scheduler,
		backfiller:  backfiller,
		validator:   validator,
		precedence:  precedence,
		sink:        opts.Sink,
		recorder:    opts.Recorder,
		checkpoints: opts.Checkpoints,
		publisher:   opts.Publisher,
		logger:      logger.WithField("component", "pipeline"),
	}
}

// Run processes one unit end to end and returns its outcome. The returned
// error is non-nil only for infrastructure failures (cancellation, sink
// write errors); a unit that ends with unrepaired violations finishes in
// the failed state without an error.
func (o *Orchestrator) Run(ctx context.Context, unit Unit) (*series.RunOutcome, error) {
	outcome := &series.RunOutcome{
		RunID:         uuid.New(),
		UnitID:        UnitID(o.symbol, unit.Label),
		Unit:          unit.Label,
		Symbol:        o.symbol,
		PeriodSeconds: unit.Span.Period,
		State:         series.StateNotStarted,
		StartedAt:     time.Now().UTC(),
	}
	log := o.logger.WithFields(logrus.Fields{
		"run_id": outcome.RunID,
		"symbol": o.symbol,
		"unit":   unit.Label,
	})

	if done, err := o.tryCheckpoint(ctx, unit, outcome, log); err != nil {
		return o.finish(ctx, outcome, series.StateFailed, log), err
	} else if done {
		return o.finish(ctx, outcome, series.StateComplete, log), nil
	}

	outcome.State = series.StateFetching
	log.WithFields(logrus.Fields{
		"start": unit.Span.Start,
		"end":   unit.Span.End,
	}).Info("fetching unit")

	raw, failures, err := o.scheduler.FetchAll(ctx, unit.Span)
	if err != nil {
		return o.finish(ctx, outcome, series.StateFailed, log), fmt.Errorf("fetch unit %s: %w", unit.Label, err)
	}
	outcome.FailedWindows = len(failures)
	for _, f := range failures {
		log.WithError(f).Warn("window permanently failed, leaving gap for repair")
	}

	// Duplicates in the raw batch are flagged before assembly and resolved
	// by the merger under the precedence rules, never by silent replacement.
	for ts, n := range repair.FindDuplicates(raw) {
		log.WithFields(logrus.Fields{
			"timestamp": ts,
			"count":     n,
		}).Warn("source delivered conflicting candles for one timestamp")
	}
	primary, dropped := repair.Merge([]repair.SourcedCandles{
		{Source: o.scheduler.Source(), Candles: raw},
	}, o.precedence, unit.Span.Period)
	outcome.Fetched = primary.Len()
	outcome.DuplicatesDropped = dropped

	outcome.State = series.StateValidating
	report := o.validator.Validate(primary, unit.Span.Start, unit.Span.End, unit.Span.Period)
	if report.OK {
		if err := o.persist(ctx, unit, primary, outcome); err != nil {
			return o.finish(ctx, outcome, series.StateFailed, log), err
		}
		return o.finish(ctx, outcome, series.StateComplete, log), nil
	}
	log.WithField("violations", len(report.Violations)).Info("validation found violations, repairing")

	outcome.State = series.StateRepairing
	merged, err := o.repairUnit(ctx, unit, primary, outcome, log)
	if err != nil {
		return o.finish(ctx, outcome, series.StateFailed, log), err
	}

	outcome.State = series.StateReValidating
	report = o.validator.Validate(merged, unit.Span.Start, unit.Span.End, unit.Span.Period)
	if !report.OK {
		outcome.RemainingViolations = report.Violations
		log.WithField("violations", len(report.Violations)).Error("unit still invalid after repair")
		return o.finish(ctx, outcome, series.StateFailed, log), nil
	}

	if err := o.persist(ctx, unit, merged, outcome); err != nil {
		return o.finish(ctx, outcome, series.StateFailed, log), err
	}
	return o.finish(ctx, outcome, series.StateComplete, log), nil
}

// tryCheckpoint short-circuits units the store already holds complete and
// valid. The watermark, when available, rules out incomplete units without
// touching the sink; without one the stored series is loaded and
// revalidated directly. Any miss falls back to a full fetch.
func (o *Orchestrator) tryCheckpoint(ctx context.Context, unit Unit, outcome *series.RunOutcome, log *logrus.Entry) (bool, error) {
	if o.sink == nil {
		return false, nil
	}
	if o.checkpoints != nil {
		mark, err := o.checkpoints.Watermark(ctx, o.symbol, unit.Label)
		if err != nil {
			log.WithError(err).Warn("watermark lookup failed, checking the sink directly")
		} else if mark < unit.Span.End {
			return false, nil
		}
	}
	stored, err := o.sink.LoadSeries(ctx, o.symbol, unit.Label, unit.Span.Start, unit.Span.End, unit.Span.Period)
	if err != nil {
		if !errors.Is(err, interfaces.ErrUnitNotFound) {
			log.WithError(err).Warn("stored series unreadable, fetching anyway")
		}
		return false, nil
	}
	report := o.validator.Validate(stored, unit.Span.Start, unit.Span.End, unit.Span.Period)
	if !report.OK {
		log.WithField("violations", len(report.Violations)).Warn("stored series no longer valid, refetching")
		return false, nil
	}
	outcome.SkippedFetch = true
	outcome.Fetched = stored.Len()
	log.Info("unit already complete, skipping fetch")
	return true, nil
}

// repairUnit fills every missing range, preferring the secondary source and
// synthesizing flat candles where it cannot help. The repaired candles are
// merged with the primary batch under the configured source precedence.
func (o *Orchestrator) repairUnit(ctx context.Context, unit Unit, primary *series.CandleSeries, outcome *series.RunOutcome, log *logrus.Entry) (*series.CandleSeries, error) {
	gaps := repair.FindGaps(primary, unit.Span.Start, unit.Span.End, unit.Span.Period)
	// Snapshot before repairs are fed back, so the merge sees what each
	// source actually delivered.
	fetched := primary.Candles()
	repaired := make([]series.Candle, 0)
	for _, rng := range gaps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("repair unit %s: %w", unit.Label, err)
		}
		var lastKnown *series.Candle
		if prev, ok := primary.LastBefore(rng.Start); ok {
			lastKnown = &prev
		}
		candles, record, indeterminate := o.backfiller.Repair(ctx, rng, unit.Span.Period, lastKnown)
		if indeterminate {
			outcome.IndeterminateStart = true
		}
		outcome.Repairs = append(outcome.Repairs, record)
		outcome.RangesRepaired++
		outcome.PointsSynthesized += record.Synthesized
		repaired = append(repaired, candles...)
		// Feed repairs back so later gaps carry forward from them.
		if err := primary.PutAll(candles); err != nil {
			return nil, fmt.Errorf("repair unit %s: %w", unit.Label, err)
		}
		log.WithFields(logrus.Fields{
			"start":  rng.Start,
			"end":    rng.End,
			"method": record.Method,
			"points": record.PointsAdded,
		}).Info("repaired missing range")
	}

	merged, dropped := repair.Merge([]repair.SourcedCandles{
		{Source: o.scheduler.Source(), Candles: fetched},
		{Source: o.backfiller.Source(), Candles: repaired},
	}, o.precedence, unit.Span.Period)
	outcome.DuplicatesDropped += dropped
	if outcome.IndeterminateStart {
		merged.MarkIndeterminateStart()
	}
	return merged, nil
}

// persist writes the validated series and advances the watermark. Writes
// happen only here, so a unit reaches the store complete or not at all.
func (o *Orchestrator) persist(ctx context.Context, unit Unit, s *series.CandleSeries, outcome *series.RunOutcome) error {
	s.Freeze()
	if o.sink == nil {
		return nil
	}
	if err := o.sink.WriteSeries(ctx, o.symbol, unit.Label, s); err != nil {
		return fmt.Errorf("write unit %s: %w", unit.Label, err)
	}
	if o.checkpoints != nil {
		if err := o.checkpoints.SetWatermark(ctx, o.symbol, unit.Label, unit.Span.End); err != nil {
			o.logger.WithError(err).Warn("failed to advance watermark")
		}
	}
	return nil
}

// finish stamps the terminal state and delivers the outcome to the recorder
// and publisher. Delivery failures are logged, never fatal.
func (o *Orchestrator) finish(ctx context.Context, outcome *series.RunOutcome, state series.RunState, log *logrus.Entry) *series.RunOutcome {
	outcome.State = state
	outcome.FinishedAt = time.Now().UTC()
	if o.recorder != nil {
		if err := o.recorder.RecordRun(ctx, outcome); err != nil {
			log.WithError(err).Warn("failed to record run")
		}
	}
	if o.publisher != nil {
		if err := o.publisher.PublishOutcome(ctx, outcome); err != nil {
			log.WithError(err).Warn("failed to publish run outcome")
		}
	}
	log.WithFields(logrus.Fields{
		"state":    state,
		"fetched":  outcome.Fetched,
		"repaired": outcome.RangesRepaired,
	}).Info("run finished")
	return outcome
}
