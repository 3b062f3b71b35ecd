package core

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterload/api"
)

func sample(ts time.Time, currents, voltages api.Phases) api.Sample {
	return api.Sample{Timestamp: ts, Current: currents, Voltage: voltages}
}

// symmetric three-phase load at 230V
func load(ts time.Time, current float64) api.Sample {
	return sample(ts, api.Phases{current, current, current}, api.Phases{230, 230, 230})
}

func TestFirstSample(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	rollover, err := acc.Ingest(load(mock.Now(), 10))
	require.NoError(t, err)
	assert.Nil(t, rollover)

	status := acc.Current()
	assert.Equal(t, time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC), status.WindowStart)
	assert.Equal(t, 1, status.SampleCount)
	assert.Equal(t, api.Phases{2300, 2300, 2300}, status.PhaseAverage)
	assert.Equal(t, 6900.0, status.TotalAverage)
}

func TestCurrentBeforeFirstSample(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 7, 30, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	status := acc.Current()
	assert.Equal(t, time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC), status.WindowStart)
	assert.Equal(t, 0, status.SampleCount)
	assert.Equal(t, 0.0, status.TotalAverage)
	assert.Equal(t, 450.0, status.ElapsedSeconds)
	assert.True(t, status.LastSample.IsZero())

	_, ok := acc.Completed()
	assert.False(t, ok, "no snapshot expected before first rollover")
}

func TestRolloverFreezesAverage(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	// two samples of 6000W and 8000W total
	_, err := acc.Ingest(sample(mock.Now(), api.Phases{10, 10, 10}, api.Phases{200, 200, 200}))
	require.NoError(t, err)

	mock.Add(5 * time.Minute)
	_, err = acc.Ingest(sample(mock.Now(), api.Phases{10, 15, 15}, api.Phases{200, 200, 200}))
	require.NoError(t, err)

	assert.Equal(t, 7000.0, acc.Current().TotalAverage)

	// first sample of the next window freezes the previous one
	mock.Set(time.Date(2021, 5, 4, 10, 16, 0, 0, time.UTC))
	rollover, err := acc.Ingest(load(mock.Now(), 10))
	require.NoError(t, err)
	require.NotNil(t, rollover)

	assert.Equal(t, time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC), rollover.WindowStart)
	assert.Equal(t, time.Date(2021, 5, 4, 10, 15, 0, 0, time.UTC), rollover.WindowEnd)
	assert.Equal(t, 2, rollover.SampleCount)
	assert.Equal(t, api.Phases{2000, 2500, 2500}, rollover.PhaseAverage)
	assert.Equal(t, 7000.0, rollover.TotalAverage)

	completed, ok := acc.Completed()
	require.True(t, ok)
	assert.Equal(t, *rollover, completed)

	// new window carries only the triggering sample
	status := acc.Current()
	assert.Equal(t, time.Date(2021, 5, 4, 10, 15, 0, 0, time.UTC), status.WindowStart)
	assert.Equal(t, 1, status.SampleCount)
	assert.Equal(t, 6900.0, status.TotalAverage)
}

func TestClampNegativeCurrent(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	// exporting phase contributes zero, not -1150W
	_, err := acc.Ingest(sample(mock.Now(), api.Phases{-5, 0, 10}, api.Phases{230, 230, 230}))
	require.NoError(t, err)

	status := acc.Current()
	assert.Equal(t, api.Phases{0, 0, 2300}, status.PhaseAverage)
	assert.Equal(t, 2300.0, status.TotalAverage)
}

func TestVoltageNotClamped(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	_, err := acc.Ingest(sample(mock.Now(), api.Phases{10, 0, 0}, api.Phases{-230, 230, 230}))
	require.NoError(t, err)

	assert.Equal(t, -2300.0, acc.Current().PhaseAverage[0])
}

func TestInvalidSampleNoMutation(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	nan := math.NaN()
	for _, s := range []api.Sample{
		sample(mock.Now(), api.Phases{nan, 0, 0}, api.Phases{230, 230, 230}),
		sample(mock.Now(), api.Phases{10, 10, 10}, api.Phases{230, math.Inf(1), 230}),
		load(mock.Now().Add(-10*time.Minute), 10), // before the open window
	} {
		rollover, err := acc.Ingest(s)
		assert.ErrorIs(t, err, api.ErrInvalidSample)
		assert.Nil(t, rollover)
	}

	status := acc.Current()
	assert.Equal(t, 0, status.SampleCount)
	assert.True(t, status.LastSample.IsZero())
}

func TestEmptyWindowClose(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	// first sample ever arrives in the next window
	mock.Set(time.Date(2021, 5, 4, 10, 20, 0, 0, time.UTC))
	rollover, err := acc.Ingest(load(mock.Now(), 10))
	require.NoError(t, err)
	require.NotNil(t, rollover)

	assert.Equal(t, time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC), rollover.WindowStart)
	assert.Equal(t, 0, rollover.SampleCount)
	assert.Equal(t, api.Phases{}, rollover.PhaseAverage)
	assert.Equal(t, 0.0, rollover.TotalAverage)
}

func TestGapSkipsWindows(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	_, err := acc.Ingest(load(mock.Now(), 10))
	require.NoError(t, err)

	// nothing for 48 minutes, skipping the 10:15 and 10:30 windows
	mock.Set(time.Date(2021, 5, 4, 10, 50, 0, 0, time.UTC))
	rollover, err := acc.Ingest(load(mock.Now(), 20))
	require.NoError(t, err)
	require.NotNil(t, rollover)

	// only the window that held samples is frozen
	assert.Equal(t, time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC), rollover.WindowStart)
	assert.Equal(t, 1, rollover.SampleCount)
	assert.Equal(t, 6900.0, rollover.TotalAverage)

	completed, ok := acc.Completed()
	require.True(t, ok)
	assert.Equal(t, *rollover, completed, "skipped windows must not leave snapshots")

	status := acc.Current()
	assert.Equal(t, time.Date(2021, 5, 4, 10, 45, 0, 0, time.UTC), status.WindowStart)
	assert.Equal(t, 1, status.SampleCount)
}

func TestRunningAverageIgnoresSpacing(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	// bursty then quiet, the mean stays unweighted
	for _, step := range []struct {
		offset  time.Duration
		current float64
	}{
		{1 * time.Second, 1},
		{2 * time.Second, 2},
		{200 * time.Second, 3},
		{840 * time.Second, 4},
	} {
		ts := time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC).Add(step.offset)
		mock.Set(ts)
		_, err := acc.Ingest(load(ts, step.current))
		require.NoError(t, err)
	}

	// mean of 690, 1380, 2070, 2760
	assert.InDelta(t, 1725.0, acc.Current().TotalAverage, 1e-9)
	assert.Equal(t, 4, acc.Current().SampleCount)
}

func TestConcurrentAccess(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 5, 4, 10, 2, 0, 0, time.UTC))

	acc := NewAccumulator(mock, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				_, err := acc.Ingest(load(mock.Now(), 10))
				assert.NoError(t, err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 1000; j++ {
			_ = acc.Current()
			_, _ = acc.Completed()
		}
	}()

	wg.Wait()

	status := acc.Current()
	assert.Equal(t, 1000, status.SampleCount)
	assert.Equal(t, 6900.0, status.TotalAverage)
}
