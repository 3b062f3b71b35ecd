package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/avast/retry-go"
	"github.com/benbjohnson/clock"

	"quarterload/api"
	"quarterload/provider"
	"quarterload/push"
	"quarterload/util"
)

// meter events, used as bus topics and push message keys
const (
	evWindowComplete = "complete" // window frozen into a snapshot
	evLimitExceed    = "limit"    // running average crossed the configured limit
)

const pollInterval = 10 * time.Second

// Meter observes one three-phase supply point. It polls the configured
// current and voltage sources, feeds the window accumulator and publishes
// window state, snapshots and estimations.
type Meter struct {
	sync.Mutex // guards targets, limit, alerted
	log        *util.Logger
	clock      clock.Clock
	bus        evbus.Bus

	Name     string
	Interval time.Duration

	targets []float64
	limit   float64
	alerted bool
	updated time.Time // last completed update cycle

	currents [3]func() (float64, error)
	voltages [3]func() (float64, error)

	acc *Accumulator

	uiChan   chan<- util.Param
	pushChan chan<- push.Event
	pokeC    chan struct{}
}

// NewMeter creates a meter with the default sampling interval. Window
// boundaries follow the wall clock of loc; nil defaults to local time.
func NewMeter(name string, loc *time.Location) *Meter {
	clk := clock.New()

	return &Meter{
		log:      util.NewLogger(name),
		clock:    clk,
		bus:      evbus.New(),
		Name:     name,
		Interval: pollInterval,
		acc:      NewAccumulator(clk, loc),
		pokeC:    make(chan struct{}, 1),
	}
}

// NewMeterFromConfig creates a meter from configuration
func NewMeterFromConfig(other map[string]interface{}) (*Meter, error) {
	cc := struct {
		Name     string
		Interval time.Duration
		Timezone string
		Limit    float64 // W, alert when the running average exceeds this
		Targets  []float64
		Currents []provider.Config
		Voltages []provider.Config
	}{
		Interval: pollInterval,
		Timezone: "Local",
	}

	if err := util.DecodeOther(other, &cc); err != nil {
		return nil, err
	}

	if cc.Name == "" {
		return nil, errors.New("missing meter name")
	}

	if len(cc.Currents) != 3 {
		return nil, fmt.Errorf("%s: need 3 current sources, got %d", cc.Name, len(cc.Currents))
	}

	if len(cc.Voltages) != 0 && len(cc.Voltages) != 3 {
		return nil, fmt.Errorf("%s: need 0 or 3 voltage sources, got %d", cc.Name, len(cc.Voltages))
	}

	loc, err := time.LoadLocation(cc.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid timezone: %w", cc.Name, err)
	}

	m := NewMeter(cc.Name, loc)
	m.targets = cc.Targets
	m.limit = cc.Limit

	if cc.Interval > 0 {
		m.Interval = cc.Interval
	}

	for i, conf := range cc.Currents {
		if m.currents[i], err = m.source(conf); err != nil {
			return nil, fmt.Errorf("%s: current L%d: %w", cc.Name, i+1, err)
		}
	}

	for i := range m.voltages {
		if len(cc.Voltages) == 0 {
			// assume nominal grid voltage
			m.voltages[i] = func() (float64, error) { return Voltage, nil }
			continue
		}

		if m.voltages[i], err = m.source(cc.Voltages[i]); err != nil {
			return nil, fmt.Errorf("%s: voltage L%d: %w", cc.Name, i+1, err)
		}
	}

	// runtime adjustments win over static configuration
	if targets, ok := settings.Targets(m.Name); ok {
		m.targets = targets
	}
	if limit, ok := settings.Limit(m.Name); ok {
		m.limit = limit
	}

	return m, nil
}

// source builds a reading getter and hooks push-capable plugins up to the
// sampling loop
func (m *Meter) source(conf provider.Config) (func() (float64, error), error) {
	prov, err := provider.NewFloatProviderFromConfig(conf)
	if err != nil {
		return nil, err
	}

	if notifier, ok := prov.(api.Notifier); ok {
		notifier.Notify(m.poke)
	}

	return prov.FloatGetter(), nil
}

// Prepare attaches the meter to the ui parameter channel and the push hub
func (m *Meter) Prepare(uiChan chan<- util.Param, pushChan chan<- push.Event) {
	m.uiChan = uiChan
	m.pushChan = pushChan

	m.bus.Subscribe(evWindowComplete, m.evWindowCompleteHandler)
	m.bus.Subscribe(evLimitExceed, m.evLimitExceedHandler)

	m.publish("targets", m.GetTargets())
	m.publish("limit", m.GetLimit())
}

// Run polls the sources every interval until ctx is cancelled. Push-capable
// sources trigger additional immediate polls.
func (m *Meter) Run(ctx context.Context) {
	ticker := m.clock.Ticker(m.Interval)
	defer ticker.Stop()

	for {
		m.update()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.pokeC:
		}
	}
}

// poke requests an immediate sampling cycle
func (m *Meter) poke() {
	select {
	case m.pokeC <- struct{}{}:
	default:
	}
}

// sample reads all six sources into a timestamped sample. Reads are retried
// on transient errors; a source without a value yet aborts the cycle.
func (m *Meter) sample() (api.Sample, error) {
	s := api.Sample{Timestamp: m.clock.Now()}

	read := func(getter func() (float64, error)) (float64, error) {
		var val float64
		err := retry.Do(func() error {
			var err error
			if val, err = getter(); errors.Is(err, api.ErrNotAvailable) || errors.Is(err, api.ErrTimeout) {
				// retrying does not produce a value any sooner
				return retry.Unrecoverable(err)
			}
			return err
		}, RetryOptions...)
		return val, err
	}

	var err error
	for i := 0; i < 3; i++ {
		if s.Current[i], err = read(m.currents[i]); err != nil {
			return s, fmt.Errorf("current L%d: %w", i+1, err)
		}
		if s.Voltage[i], err = read(m.voltages[i]); err != nil {
			return s, fmt.Errorf("voltage L%d: %w", i+1, err)
		}
	}

	return s, nil
}

// update runs a single sampling cycle
func (m *Meter) update() {
	defer func() {
		m.Lock()
		m.updated = m.clock.Now()
		m.Unlock()
	}()

	s, err := m.sample()
	if err != nil {
		m.log.DEBUG.Printf("no sample: %v", err)
		return
	}

	if _, clamped := s.Power(); clamped {
		m.log.TRACE.Printf("negative current clamped: %v", s.Current)
	}

	completed, err := m.acc.Ingest(s)
	if err != nil {
		m.log.WARN.Printf("sample dropped: %v", err)
		return
	}

	if completed != nil {
		m.bus.Publish(evWindowComplete, *completed)
	}

	m.publishStatus()
}

// publishStatus pushes the running window state and estimations to the ui
// channel and raises the limit alert
func (m *Meter) publishStatus() {
	status := m.acc.Current()

	m.publish("windowStart", status.WindowStart)
	m.publish("windowEnd", status.WindowEnd)
	m.publish("sampleCount", status.SampleCount)
	m.publish("elapsed", status.ElapsedSeconds)
	m.publish("phasePower", status.PhaseAverage)
	m.publish("runningPower", status.TotalAverage)

	if !status.LastSample.IsZero() {
		m.publish("lastSample", status.LastSample)
	}

	m.Lock()
	alert := m.limit > 0 && !m.alerted && status.TotalAverage > m.limit
	if alert {
		m.alerted = true
	}
	targets := m.targets
	m.Unlock()

	if alert {
		m.bus.Publish(evLimitExceed, status)
	}

	if len(targets) > 0 {
		estimates := make([]api.Estimate, 0, len(targets))
		for _, target := range targets {
			estimates = append(estimates, Estimate(status, target))
		}
		m.publish("estimates", estimates)
	}
}

// evWindowCompleteHandler publishes the frozen snapshot and rearms the alert
func (m *Meter) evWindowCompleteHandler(snap api.CompletedWindow) {
	if snap.SampleCount == 0 {
		m.log.DEBUG.Printf("window closed empty: %v", snap)
	} else {
		m.log.INFO.Printf("window completed: %v", snap)
	}

	m.Lock()
	m.alerted = false
	m.Unlock()

	m.publish("completed", snap)
	m.publish("limitExceeded", false)
	m.notify(evWindowComplete)
}

// evLimitExceedHandler raises the once-per-window limit alert
func (m *Meter) evLimitExceedHandler(status api.WindowStatus) {
	m.log.WARN.Printf("running average %.0fW exceeds limit %.0fW", status.TotalAverage, m.GetLimit())

	m.publish("limitExceeded", true)
	m.notify(evLimitExceed)
}

// Healthy reports whether the sampling loop is alive
func (m *Meter) Healthy() bool {
	m.Lock()
	defer m.Unlock()
	return !m.updated.IsZero() && m.clock.Since(m.updated) < 3*m.Interval
}

// CurrentWindow returns the running window state
func (m *Meter) CurrentWindow() api.WindowStatus {
	return m.acc.Current()
}

// CompletedWindow returns the most recent frozen snapshot
func (m *Meter) CompletedWindow() (api.CompletedWindow, bool) {
	return m.acc.Completed()
}

// Estimates returns the estimation results for all configured targets
func (m *Meter) Estimates() []api.Estimate {
	status := m.acc.Current()
	targets := m.GetTargets()

	res := make([]api.Estimate, 0, len(targets))
	for _, target := range targets {
		res = append(res, Estimate(status, target))
	}
	return res
}

// EstimateTarget returns the estimation result for an ad-hoc target
func (m *Meter) EstimateTarget(target float64) api.Estimate {
	return Estimate(m.acc.Current(), target)
}

// GetTargets returns the active estimation targets
func (m *Meter) GetTargets() []float64 {
	m.Lock()
	defer m.Unlock()
	return append([]float64(nil), m.targets...)
}

// SetTargets replaces the estimation targets at runtime and persists them
func (m *Meter) SetTargets(targets []float64) {
	m.log.INFO.Printf("set targets: %v", targets)

	m.Lock()
	m.targets = targets
	m.Unlock()

	settings.SetTargets(m.Name, targets)
	m.publish("targets", targets)
	m.poke()
}

// GetLimit returns the active alert limit
func (m *Meter) GetLimit() float64 {
	m.Lock()
	defer m.Unlock()
	return m.limit
}

// SetLimit replaces the alert limit at runtime and persists it
func (m *Meter) SetLimit(limit float64) {
	m.log.INFO.Printf("set limit: %.0fW", limit)

	m.Lock()
	m.limit = limit
	m.alerted = false
	m.Unlock()

	settings.SetLimit(m.Name, limit)
	m.publish("limit", limit)
	m.poke()
}

// publish sends a parameter to the ui channel
func (m *Meter) publish(key string, val interface{}) {
	if m.uiChan != nil {
		m.uiChan <- util.Param{Meter: m.Name, Key: key, Val: val}
	}
}

// notify sends a push event
func (m *Meter) notify(event string) {
	if m.pushChan != nil {
		m.pushChan <- push.Event{Meter: m.Name, Event: event}
	}
}
