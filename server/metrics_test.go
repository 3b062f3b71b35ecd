package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"quarterload/api"
	"quarterload/util"
)

func TestPrometheusRun(t *testing.T) {
	in := make(chan util.Param)
	done := make(chan struct{})

	go func() {
		new(Prometheus).Run(in)
		close(done)
	}()

	in <- util.Param{Meter: "m1", Key: "runningPower", Val: 6900.0}
	in <- util.Param{Meter: "m1", Key: "sampleCount", Val: 42}
	in <- util.Param{Meter: "m1", Key: "phasePower", Val: api.Phases{2300, 2300, 2300}}
	in <- util.Param{Meter: "m1", Key: "completed", Val: api.CompletedWindow{
		WindowEnd:    time.Now(),
		TotalAverage: 7000,
		SampleCount:  90,
	}}

	// non-meter and unknown keys are ignored
	in <- util.Param{Key: "version", Val: "dev"}
	in <- util.Param{Meter: "m1", Key: "lastSample", Val: time.Now()}

	close(in)
	<-done

	assert.Equal(t, 6900.0, testutil.ToFloat64(runningPowerGauge.WithLabelValues("m1")))
	assert.Equal(t, 42.0, testutil.ToFloat64(sampleCountGauge.WithLabelValues("m1")))
	assert.Equal(t, 2300.0, testutil.ToFloat64(phasePowerGauge.WithLabelValues("m1", "l2")))
	assert.Equal(t, 7000.0, testutil.ToFloat64(completedPowerGauge.WithLabelValues("m1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(windowsCounter.WithLabelValues("m1")))
}
