package server

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"quarterload/api"
	"quarterload/util"
)

var (
	runningPowerGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quarterload_running_power_watts",
			Help: "Running average power of the current window",
		},
		[]string{"meter"},
	)

	phasePowerGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quarterload_phase_power_watts",
			Help: "Running average power of the current window per phase",
		},
		[]string{"meter", "phase"},
	)

	sampleCountGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quarterload_window_samples",
			Help: "Samples accumulated in the current window",
		},
		[]string{"meter"},
	)

	completedPowerGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quarterload_completed_power_watts",
			Help: "Average power of the last completed window",
		},
		[]string{"meter"},
	)

	windowsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarterload_windows_total",
			Help: "Total number of completed windows",
		},
		[]string{"meter"},
	)
)

// Prometheus feeds the parameter stream into the default prometheus
// registry, exposed by the httpd on /metrics
type Prometheus struct{}

// Run updates the metrics from the parameter stream
func (p *Prometheus) Run(in <-chan util.Param) {
	for param := range in {
		if param.Meter == "" {
			continue
		}

		switch param.Key {
		case "runningPower":
			if v, ok := param.Val.(float64); ok {
				runningPowerGauge.WithLabelValues(param.Meter).Set(v)
			}
		case "phasePower":
			if phases, ok := param.Val.(api.Phases); ok {
				for i, v := range phases {
					phasePowerGauge.WithLabelValues(param.Meter, fmt.Sprintf("l%d", i+1)).Set(v)
				}
			}
		case "sampleCount":
			if v, ok := param.Val.(int); ok {
				sampleCountGauge.WithLabelValues(param.Meter).Set(float64(v))
			}
		case "completed":
			if snap, ok := param.Val.(api.CompletedWindow); ok {
				completedPowerGauge.WithLabelValues(param.Meter).Set(snap.TotalAverage)
				windowsCounter.WithLabelValues(param.Meter).Inc()
			}
		}
	}
}
