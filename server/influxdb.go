package server

import (
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"quarterload/api"
	"quarterload/util"
)

// Influx writes the parameter stream to an InfluxDB
type Influx struct {
	log      *util.Logger
	client   influxdb2.Client
	org      string
	database string
}

// NewInfluxClient creates an Influx publisher
func NewInfluxClient(url, token, org, user, password, database string) *Influx {
	log := util.NewLogger("influx")

	// InfluxDB v1 compatibility
	if token == "" && user != "" {
		token = fmt.Sprintf("%s:%s", user, password)
	}

	options := influxdb2.DefaultOptions().SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(url, token, options)

	return &Influx{
		log:      log,
		client:   client,
		org:      org,
		database: database,
	}
}

// Run batches the parameter stream into async writes
func (m *Influx) Run(in <-chan util.Param) {
	writer := m.client.WriteAPI(m.org, m.database)

	// log async write errors
	go func() {
		for err := range writer.Errors() {
			m.log.ERROR.Println(err)
		}
	}()

	for param := range in {
		if param.Meter == "" {
			continue
		}

		tags := map[string]string{"meter": param.Meter}

		switch val := param.Val.(type) {
		case float64:
			fields := map[string]interface{}{"value": val}
			writer.WritePoint(influxdb2.NewPoint(param.Key, tags, fields, time.Now()))

		case int:
			fields := map[string]interface{}{"value": float64(val)}
			writer.WritePoint(influxdb2.NewPoint(param.Key, tags, fields, time.Now()))

		case api.Phases:
			fields := map[string]interface{}{
				"l1": val[0],
				"l2": val[1],
				"l3": val[2],
			}
			writer.WritePoint(influxdb2.NewPoint(param.Key, tags, fields, time.Now()))

		case api.CompletedWindow:
			fields := map[string]interface{}{
				"totalAverage": val.TotalAverage,
				"l1":           val.PhaseAverage[0],
				"l2":           val.PhaseAverage[1],
				"l3":           val.PhaseAverage[2],
				"sampleCount":  val.SampleCount,
			}
			// place the point at the window boundary, not at write time
			writer.WritePoint(influxdb2.NewPoint(param.Key, tags, fields, val.WindowEnd))
		}
	}

	m.client.Close()
}
