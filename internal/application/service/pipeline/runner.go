package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"candlearchive/internal/domain/entity/series"
)

// ErrRunNotFound is returned when a run id is unknown to the runner.
var ErrRunNotFound = errors.New("run not found")

// Runner executes units asynchronously and keeps every outcome addressable
// by run id. It serializes runs so two requests never fetch the same unit
// concurrently.
type Runner struct {
	orchestrator *Orchestrator
	logger       *logrus.Entry

	// baseCtx bounds background runs to the process lifetime, not to the
	// request that started them.
	baseCtx context.Context

	mu       sync.Mutex
	running  bool
	outcomes map[uuid.UUID]*series.RunOutcome
}

// ErrRunInProgress is returned by Start while a previous run is still active.
var ErrRunInProgress = errors.New("a run is already in progress")

func NewRunner(ctx context.Context, orchestrator *Orchestrator, logger *logrus.Logger) *Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Runner{
		orchestrator: orchestrator,
		logger:       logger.WithField("component", "runner"),
		baseCtx:      ctx,
		outcomes:     make(map[uuid.UUID]*series.RunOutcome),
	}
}

// Start launches the units in the background and returns one run id per
// unit, each already registered and queryable.
func (r *Runner) Start(units []Unit) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil, ErrRunInProgress
	}
	r.running = true

	ids := make([]uuid.UUID, 0, len(units))
	placeholders := make(map[uuid.UUID]Unit, len(units))
	for _, unit := range units {
		id := uuid.New()
		r.outcomes[id] = &series.RunOutcome{
			RunID:         id,
			UnitID:        UnitID(r.orchestrator.symbol, unit.Label),
			Unit:          unit.Label,
			Symbol:        r.orchestrator.symbol,
			PeriodSeconds: unit.Span.Period,
			State:         series.StateNotStarted,
		}
		placeholders[id] = unit
		ids = append(ids, id)
	}

	go r.runAll(r.baseCtx, ids, placeholders)
	return ids, nil
}

func (r *Runner) runAll(ctx context.Context, ids []uuid.UUID, units map[uuid.UUID]Unit) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()
	for _, id := range ids {
		unit := units[id]
		outcome, err := r.orchestrator.Run(ctx, unit)
		if err != nil {
			r.logger.WithError(err).WithField("unit", unit.Label).Error("run aborted")
		}
		if outcome == nil {
			continue
		}
		outcome.RunID = id
		r.mu.Lock()
		r.outcomes[id] = outcome
		r.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
	}
}

// Outcome returns the current view of one run.
func (r *Runner) Outcome(id uuid.UUID) (*series.RunOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome, ok := r.outcomes[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return outcome, nil
}

// Outcomes lists all known runs, oldest unit first.
func (r *Runner) Outcomes() []*series.RunOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*series.RunOutcome, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out
}
