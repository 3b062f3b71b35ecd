package core

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"quarterload/api"
)

// Accumulator owns the running state of one open accounting window. It is the
// single writer of that state; reads return consistent snapshots.
//
// A window is opened at construction so that a quiet start still closes with
// a zero-average snapshot once samples resume. Rollover happens on sample
// arrival only. Windows that never saw a sample are skipped without snapshot.
type Accumulator struct {
	mu    sync.RWMutex
	clock clock.Clock
	loc   *time.Location

	window     Window
	count      int
	sum        api.Phases // W
	lastSample time.Time

	completed *api.CompletedWindow
}

// NewAccumulator creates an accumulator with a window opened at the current
// time. Windows align to the wall clock of loc; nil defaults to local time.
func NewAccumulator(clk clock.Clock, loc *time.Location) *Accumulator {
	if loc == nil {
		loc = time.Local
	}

	return &Accumulator{
		clock:  clk,
		loc:    loc,
		window: windowOf(clk.Now(), loc),
	}
}

// Ingest adds a sample to the open window. If the sample belongs to a later
// window the open window is frozen first and its snapshot returned. Samples
// with non-finite readings or timestamps before the open window start are
// dropped with api.ErrInvalidSample and leave all state untouched.
func (a *Accumulator) Ingest(s api.Sample) (*api.CompletedWindow, error) {
	if !s.Valid() {
		return nil, api.ErrInvalidSample
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if s.Timestamp.Before(a.window.Start) {
		return nil, api.ErrInvalidSample
	}

	var rollover *api.CompletedWindow
	if !a.window.Contains(s.Timestamp) {
		snap := a.freeze()
		a.completed = &snap
		rollover = &snap

		a.window = windowOf(s.Timestamp, a.loc)
		a.count = 0
		a.sum = api.Phases{}
		a.lastSample = time.Time{}
	}

	power, _ := s.Power()
	for i := range a.sum {
		a.sum[i] += power[i]
	}
	a.count++
	a.lastSample = s.Timestamp

	return rollover, nil
}

// freeze converts the open window state into an immutable snapshot. A window
// without samples freezes to zero averages. Caller must hold the lock.
func (a *Accumulator) freeze() api.CompletedWindow {
	snap := api.CompletedWindow{
		WindowStart: a.window.Start,
		WindowEnd:   a.window.End,
		SampleCount: a.count,
	}

	if a.count > 0 {
		for i := range snap.PhaseAverage {
			snap.PhaseAverage[i] = a.sum[i] / float64(a.count)
		}
		snap.TotalAverage = snap.PhaseAverage.Sum()
	}

	return snap
}

// Current returns a read-only view of the open window. The running averages
// are the arithmetic mean of all samples taken so far, unweighted by their
// spacing. Elapsed time keeps growing past the window end while no sample
// forces a rollover.
func (a *Accumulator) Current() api.WindowStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	res := api.WindowStatus{
		WindowStart: a.window.Start,
		WindowEnd:   a.window.End,
		SampleCount: a.count,
		LastSample:  a.lastSample,
	}

	if elapsed := a.clock.Since(a.window.Start); elapsed > 0 {
		res.ElapsedSeconds = elapsed.Seconds()
	}

	if a.count > 0 {
		for i := range res.PhaseAverage {
			res.PhaseAverage[i] = a.sum[i] / float64(a.count)
		}
		res.TotalAverage = res.PhaseAverage.Sum()
	}

	return res
}

// Completed returns the most recently frozen snapshot. The bool is false
// until the first rollover.
func (a *Accumulator) Completed() (api.CompletedWindow, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.completed == nil {
		return api.CompletedWindow{}, false
	}
	return *a.completed, true
}
