package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"quarterload/api"
	"quarterload/provider"
	"quarterload/util"
)

// MQTT publishes the parameter stream below a root topic. It shares the mqtt
// client with the providers.
type MQTT struct {
	log     *util.Logger
	Handler *provider.MqttClient
	root    string
}

// NewMQTT creates an mqtt publisher
func NewMQTT(root string) *MQTT {
	return &MQTT{
		log:     util.NewLogger("mqtt"),
		Handler: provider.MQTT,
		root:    root,
	}
}

func (m *MQTT) encode(v interface{}) string {
	var s string
	switch val := v.(type) {
	case time.Time:
		s = strconv.FormatInt(val.Unix(), 10)
	case time.Duration:
		s = fmt.Sprintf("%d", int64(val.Seconds()))
	case float64:
		s = fmt.Sprintf("%.5g", val)
	default:
		s = fmt.Sprintf("%v", val)
	}
	return s
}

func (m *MQTT) publishSingleValue(topic string, retained bool, payload interface{}) {
	token := m.Handler.Client.Publish(topic, m.Handler.Qos, retained, m.encode(payload))
	go m.Handler.WaitForToken(token)
}

// publish posts the payload, splitting phase values into per-phase subtopics
// and passing structured values as JSON
func (m *MQTT) publish(topic string, retained bool, payload interface{}) {
	switch val := payload.(type) {
	case api.Phases:
		for i, v := range val {
			m.publishSingleValue(fmt.Sprintf("%s/l%d", topic, i+1), retained, v)
		}
	case api.CompletedWindow, []api.Estimate, []float64:
		b, err := json.Marshal(val)
		if err != nil {
			m.log.ERROR.Printf("encoding %s failed: %v", topic, err)
			return
		}
		m.publishSingleValue(topic, retained, string(b))
	default:
		m.publishSingleValue(topic, retained, payload)
	}
}

// Run publishes the parameter stream
func (m *MQTT) Run(in <-chan util.Param) {
	for p := range in {
		topic := fmt.Sprintf("%s/site", m.root)
		if p.Meter != "" {
			topic = fmt.Sprintf("%s/meters/%s", m.root, p.Meter)
		}
		topic += "/" + p.Key

		m.publish(topic, true, p.Val)
	}
}
