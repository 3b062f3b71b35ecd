package api

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// sentinel errors shared across packages
var (
	// ErrInvalidSample indicates a sample carrying non-finite readings.
	// The sample is dropped without touching accumulator state.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrNotAvailable indicates a source has not produced a value yet
	ErrNotAvailable = errors.New("not available")

	// ErrTimeout indicates a source stopped updating
	ErrTimeout = errors.New("timeout")
)

// Phases holds one value per phase, index 0 = L1
type Phases [3]float64

// Sum returns the sum over all three phases
func (p Phases) Sum() float64 {
	return p[0] + p[1] + p[2]
}

// Sample is a single synchronous reading of all six source values.
// Current is signed: negative values indicate export to the grid and are
// clamped to zero before power computation. Voltage is never clamped.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Current   Phases    `json:"current"` // A
	Voltage   Phases    `json:"voltage"` // V
}

// Valid reports whether all six readings are finite numbers
func (s Sample) Valid() bool {
	for i := range s.Current {
		if math.IsNaN(s.Current[i]) || math.IsInf(s.Current[i], 0) {
			return false
		}
		if math.IsNaN(s.Voltage[i]) || math.IsInf(s.Voltage[i], 0) {
			return false
		}
	}
	return true
}

// Power returns the per-phase instantaneous power of the sample with
// negative currents clamped to zero, and whether any phase was clamped.
func (s Sample) Power() (Phases, bool) {
	var p Phases
	var clamped bool
	for i := range p {
		cur := s.Current[i]
		if cur < 0 {
			cur = 0
			clamped = true
		}
		p[i] = cur * s.Voltage[i]
	}
	return p, clamped
}

// WindowStatus is a read-only view of the currently accumulating
// quarter-hour window
type WindowStatus struct {
	WindowStart    time.Time `json:"windowStart"`
	WindowEnd      time.Time `json:"windowEnd"`
	SampleCount    int       `json:"sampleCount"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
	PhaseAverage   Phases    `json:"phaseAverage"` // W
	TotalAverage   float64   `json:"totalAverage"` // W
	LastSample     time.Time `json:"lastSample,omitempty"`
}

// CompletedWindow is the immutable snapshot frozen at window rollover.
// A window closed without samples carries zero averages.
type CompletedWindow struct {
	WindowStart  time.Time `json:"windowStart"`
	WindowEnd    time.Time `json:"windowEnd"`
	SampleCount  int       `json:"sampleCount"`
	PhaseAverage Phases    `json:"phaseAverage"` // W
	TotalAverage float64   `json:"totalAverage"` // W
}

func (w CompletedWindow) String() string {
	return fmt.Sprintf("%s..%s %.0fW (%d samples)",
		w.WindowStart.Format("15:04"), w.WindowEnd.Format("15:04"), w.TotalAverage, w.SampleCount)
}

// Estimate projects the final window average under the assumption that an
// additional load of Target watts runs for the remainder of the window.
// It is a linear blend over the fixed 900s window, not a guarantee.
type Estimate struct {
	Target             float64 `json:"target"`             // W, may be negative
	CurrentAverage     float64 `json:"currentAverage"`     // W at call time
	ElapsedSeconds     float64 `json:"elapsedSeconds"`     // [0..900]
	RemainingSeconds   float64 `json:"remainingSeconds"`   // 900 - elapsed
	TargetForRemainder float64 `json:"targetForRemainder"` // W
	EstimatedFinal     float64 `json:"estimatedFinal"`     // W
}

// Notifier is implemented by sample sources that receive pushed updates.
// The registered callback must be non-blocking; it is used to trigger an
// immediate sampling cycle when a source value changes.
type Notifier interface {
	Notify(func())
}
