package core

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterload/api"
	"quarterload/push"
	"quarterload/util"
)

func fixedSource(val float64) func() (float64, error) {
	return func() (float64, error) { return val, nil }
}

func testMeter(mock *clock.Mock) (*Meter, chan util.Param, chan push.Event) {
	m := NewMeter("test", time.UTC)
	m.clock = mock
	m.acc = NewAccumulator(mock, time.UTC)

	for i := range m.currents {
		m.currents[i] = fixedSource(10)
		m.voltages[i] = fixedSource(230)
	}

	uiChan := make(chan util.Param, 128)
	pushChan := make(chan push.Event, 16)
	m.Prepare(uiChan, pushChan)

	return m, uiChan, pushChan
}

func drainParams(ch chan util.Param) map[string]interface{} {
	res := make(map[string]interface{})
	for {
		select {
		case p := <-ch:
			res[p.Key] = p.Val
		default:
			return res
		}
	}
}

func drainEvents(ch chan push.Event) []push.Event {
	var res []push.Event
	for {
		select {
		case ev := <-ch:
			res = append(res, ev)
		default:
			return res
		}
	}
}

func TestMeterUpdate(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	m, uiChan, _ := testMeter(mock)
	m.update()

	params := drainParams(uiChan)
	assert.Equal(t, time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC), params["windowStart"])
	assert.Equal(t, 1, params["sampleCount"])
	assert.Equal(t, 6900.0, params["runningPower"])
	assert.Equal(t, api.Phases{2300, 2300, 2300}, params["phasePower"])
	assert.Equal(t, mock.Now(), params["lastSample"])
}

func TestMeterRollover(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	m, uiChan, pushChan := testMeter(mock)
	m.update()
	drainParams(uiChan)
	drainEvents(pushChan)

	mock.Set(time.Date(2021, 5, 4, 10, 16, 0, 0, time.UTC))
	m.update()

	params := drainParams(uiChan)
	completed, ok := params["completed"].(api.CompletedWindow)
	require.True(t, ok, "rollover must publish the frozen window")

	assert.Equal(t, time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC), completed.WindowStart)
	assert.Equal(t, 1, completed.SampleCount)
	assert.Equal(t, 6900.0, completed.TotalAverage)

	assert.Equal(t, []push.Event{{Meter: "test", Event: evWindowComplete}}, drainEvents(pushChan))

	snap, ok := m.CompletedWindow()
	require.True(t, ok)
	assert.Equal(t, completed, snap)
}

func TestMeterLimitAlert(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	m, uiChan, pushChan := testMeter(mock)
	m.limit = 5000

	m.update()
	assert.Equal(t, true, drainParams(uiChan)["limitExceeded"])
	assert.Equal(t, []push.Event{{Meter: "test", Event: evLimitExceed}}, drainEvents(pushChan))

	// alert stays latched within the window
	mock.Add(10 * time.Second)
	m.update()
	drainParams(uiChan)
	assert.Empty(t, drainEvents(pushChan))

	// rollover rearms the alert
	mock.Set(time.Date(2021, 5, 4, 10, 16, 0, 0, time.UTC))
	m.update()
	drainParams(uiChan)

	events := drainEvents(pushChan)
	require.Len(t, events, 2)
	assert.Equal(t, evWindowComplete, events[0].Event)
	assert.Equal(t, evLimitExceed, events[1].Event)
}

func TestMeterEstimates(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC))

	m, uiChan, _ := testMeter(mock)
	m.targets = []float64{3000}

	// 2000W average after 300s
	for i := range m.currents {
		m.currents[i] = fixedSource(2000.0 / 3 / 230)
	}

	m.update()
	mock.Add(300 * time.Second)

	estimates := m.Estimates()
	require.Len(t, estimates, 1)

	assert.InDelta(t, 5000, estimates[0].TargetForRemainder, 1e-9)
	assert.InDelta(t, 600, estimates[0].RemainingSeconds, 1e-9)
	assert.InDelta(t, 4000, estimates[0].EstimatedFinal, 1e-9)

	drainParams(uiChan)
}

func TestMeterSourceRetry(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	m, _, _ := testMeter(mock)

	var calls int
	m.currents[0] = func() (float64, error) {
		calls++
		return 0, errors.New("read failed")
	}

	m.update()
	assert.Equal(t, 3, calls, "transient errors must be retried")
	assert.Equal(t, 0, m.CurrentWindow().SampleCount, "failed cycle must not produce a sample")

	// sources without a value yet are not worth retrying
	calls = 0
	m.currents[0] = func() (float64, error) {
		calls++
		return 0, api.ErrNotAvailable
	}

	m.update()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, m.CurrentWindow().SampleCount)
}

func TestMeterFromConfig(t *testing.T) {
	m, err := NewMeterFromConfig(map[string]interface{}{
		"name":     "garage",
		"interval": "15s",
		"timezone": "UTC",
		"limit":    10000,
		"targets":  []interface{}{3000, -2000},
		"currents": []map[string]interface{}{
			{"source": "const", "value": 10},
			{"source": "const", "value": 10},
			{"source": "const", "value": 10},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "garage", m.Name)
	assert.Equal(t, 15*time.Second, m.Interval)
	assert.Equal(t, []float64{3000, -2000}, m.GetTargets())
	assert.Equal(t, 10000.0, m.GetLimit())

	// voltages default to nominal grid voltage
	s, err := m.sample()
	require.NoError(t, err)
	assert.Equal(t, api.Phases{10, 10, 10}, s.Current)
	assert.Equal(t, api.Phases{230, 230, 230}, s.Voltage)
}

func TestMeterFromConfigValidation(t *testing.T) {
	_, err := NewMeterFromConfig(map[string]interface{}{
		"currents": []map[string]interface{}{{"source": "const", "value": 1}},
	})
	assert.Error(t, err, "missing name must be rejected")

	_, err = NewMeterFromConfig(map[string]interface{}{
		"name": "garage",
		"currents": []map[string]interface{}{
			{"source": "const", "value": 1},
		},
	})
	assert.Error(t, err, "three current sources are required")
}
