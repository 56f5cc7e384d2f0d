package series

import (
	"errors"
	"sort"
)

var ErrFrozen = errors.New("series is frozen")

// CandleSeries is the canonical in-memory collection for one period
// granularity: unique-keyed by timestamp, read back in ascending order.
// It is populated and repaired single-threaded; Freeze marks the point
// after which no further mutation is allowed.
type CandleSeries struct {
	period             int64
	byTS               map[int64]Candle
	order              []int64
	sorted             bool
	frozen             bool
	indeterminateStart bool
}

// NewSeries creates an empty series for the given period in seconds.
func NewSeries(period int64) *CandleSeries {
	return &CandleSeries{
		period: period,
		byTS:   make(map[int64]Candle),
	}
}

// Period returns the series granularity in seconds.
func (s *CandleSeries) Period() int64 { return s.period }

// Len returns the number of distinct timestamps held.
func (s *CandleSeries) Len() int { return len(s.byTS) }

// Put inserts a candle, replacing any existing entry at the same timestamp.
func (s *CandleSeries) Put(c Candle) error {
	if s.frozen {
		return ErrFrozen
	}
	if _, ok := s.byTS[c.Timestamp]; !ok {
		s.order = append(s.order, c.Timestamp)
		s.sorted = false
	}
	s.byTS[c.Timestamp] = c
	return nil
}

// PutAll inserts a batch of candles.
func (s *CandleSeries) PutAll(candles []Candle) error {
	for _, c := range candles {
		if err := s.Put(c); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether a candle exists at ts.
func (s *CandleSeries) Has(ts int64) bool {
	_, ok := s.byTS[ts]
	return ok
}

// At returns the candle at ts, if present.
func (s *CandleSeries) At(ts int64) (Candle, bool) {
	c, ok := s.byTS[ts]
	return c, ok
}

// Candles returns all candles in ascending timestamp order.
func (s *CandleSeries) Candles() []Candle {
	s.ensureSorted()
	out := make([]Candle, 0, len(s.order))
	for _, ts := range s.order {
		out = append(out, s.byTS[ts])
	}
	return out
}

// First returns the earliest candle.
func (s *CandleSeries) First() (Candle, bool) {
	if len(s.order) == 0 {
		return Candle{}, false
	}
	s.ensureSorted()
	return s.byTS[s.order[0]], true
}

// Last returns the latest candle.
func (s *CandleSeries) Last() (Candle, bool) {
	if len(s.order) == 0 {
		return Candle{}, false
	}
	s.ensureSorted()
	return s.byTS[s.order[len(s.order)-1]], true
}

// LastBefore returns the latest candle strictly before ts.
func (s *CandleSeries) LastBefore(ts int64) (Candle, bool) {
	s.ensureSorted()
	idx := sort.Search(len(s.order), func(i int) bool { return s.order[i] >= ts })
	if idx == 0 {
		return Candle{}, false
	}
	return s.byTS[s.order[idx-1]], true
}

// Freeze forbids further mutation. Called once validation passes.
func (s *CandleSeries) Freeze() {
	s.ensureSorted()
	s.frozen = true
}

// Frozen reports whether the series has been frozen.
func (s *CandleSeries) Frozen() bool { return s.frozen }

// MarkIndeterminateStart records that the leading edge of the series had to
// be synthesized without a known prior price.
func (s *CandleSeries) MarkIndeterminateStart() { s.indeterminateStart = true }

// IndeterminateStart reports whether the series starts on an all-zero
// sentinel rather than a real price.
func (s *CandleSeries) IndeterminateStart() bool { return s.indeterminateStart }

func (s *CandleSeries) ensureSorted() {
	if s.sorted {
		return
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })
	s.sorted = true
}
