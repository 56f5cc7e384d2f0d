package series

import (
	"time"

	"github.com/google/uuid"
)

// Violation kinds reported by validation.
const (
	ViolationMissing   = "missing"
	ViolationDuplicate = "duplicate"
	ViolationOHLC      = "ohlc"
	ViolationBoundary  = "boundary"
)

// Violation locates one validation failure.
type Violation struct {
	Timestamp int64  `json:"timestamp"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
}

// Report is the outcome of validating a series. It never mutates the
// series it describes.
type Report struct {
	OK         bool        `json:"ok"`
	Expected   int64       `json:"expected"`
	Present    int64       `json:"present"`
	Violations []Violation `json:"violations,omitempty"`
}

// Add appends a violation and clears OK.
func (r *Report) Add(v Violation) {
	r.OK = false
	r.Violations = append(r.Violations, v)
}

// RunState is one step of the pipeline state machine.
type RunState string

const (
	StateNotStarted   RunState = "not_started"
	StateFetching     RunState = "fetching"
	StateValidating   RunState = "validating"
	StateRepairing    RunState = "repairing"
	StateReValidating RunState = "revalidating"
	StateComplete     RunState = "complete"
	StateFailed       RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// RunOutcome is the structured, user-visible result of driving one unit of
// work through the pipeline.
type RunOutcome struct {
	RunID               uuid.UUID      `json:"run_id"`
	UnitID              uuid.UUID      `json:"unit_id"`
	Unit                string         `json:"unit"`
	Symbol              string         `json:"symbol"`
	PeriodSeconds       int64          `json:"period_seconds"`
	State               RunState       `json:"state"`
	Fetched             int            `json:"fetched"`
	FailedWindows       int            `json:"failed_windows"`
	RangesRepaired      int            `json:"ranges_repaired"`
	PointsSynthesized   int            `json:"points_synthesized"`
	DuplicatesDropped   int            `json:"duplicates_dropped"`
	RemainingViolations []Violation    `json:"remaining_violations,omitempty"`
	Repairs             []RepairRecord `json:"repairs,omitempty"`
	IndeterminateStart  bool           `json:"indeterminate_start"`
	SkippedFetch        bool           `json:"skipped_fetch"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
}
