package provider

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"quarterload/api"
	"quarterload/util"
)

// Mqtt provides a float value source fed from an mqtt topic. Received values
// are pushed to the sampling loop via the api.Notifier callback.
type Mqtt struct {
	log     *util.Logger
	mux     *util.Waiter
	topic   string
	scale   float64
	jq      *gojq.Query
	payload string
	notify  func()
}

func init() {
	registry.Add("mqtt", NewMqttFromConfig)
}

// NewMqttFromConfig creates an mqtt provider. Requires the shared client to
// be configured.
func NewMqttFromConfig(other map[string]interface{}) (FloatProvider, error) {
	cc := struct {
		Topic   string
		Scale   float64
		Timeout time.Duration
		Jq      string
	}{
		Scale:   1,
		Timeout: 30 * time.Second,
	}

	if err := util.DecodeOther(other, &cc); err != nil {
		return nil, err
	}

	if MQTT == nil {
		return nil, errors.New("mqtt not configured")
	}

	if cc.Topic == "" {
		return nil, errors.New("missing topic")
	}

	log := util.NewLogger("mqtt")

	m := &Mqtt{
		log:   log,
		mux:   util.NewWaiter(cc.Timeout, func() { log.TRACE.Printf("%s wait for initial value", cc.Topic) }),
		topic: cc.Topic,
		scale: cc.Scale,
	}

	if cc.Jq != "" {
		query, err := gojq.Parse(cc.Jq)
		if err != nil {
			return nil, fmt.Errorf("invalid jq query: %w", err)
		}
		m.jq = query
	}

	MQTT.Listen(cc.Topic, m.receive)

	return m, nil
}

// receive stores a payload and wakes the sampling loop
func (m *Mqtt) receive(payload string) {
	m.mux.Lock()
	m.payload = payload
	m.mux.Update()
	notify := m.notify
	m.mux.Unlock()

	if notify != nil {
		notify()
	}
}

// Notify implements the api.Notifier interface
func (m *Mqtt) Notify(cb func()) {
	m.mux.Lock()
	m.notify = cb
	m.mux.Unlock()
}

// hasValue returns the last payload or a timeout error if it went stale
func (m *Mqtt) hasValue() (string, error) {
	elapsed := m.mux.LockWithTimeout()
	defer m.mux.Unlock()

	if elapsed > 0 {
		return "", fmt.Errorf("%s: %w, outdated by %v", m.topic, api.ErrTimeout, elapsed.Truncate(time.Second))
	}

	return m.payload, nil
}

// FloatGetter returns the scaled value of the last payload
func (m *Mqtt) FloatGetter() func() (float64, error) {
	return m.floatGetter
}

func (m *Mqtt) floatGetter() (float64, error) {
	payload, err := m.hasValue()
	if err != nil {
		return 0, err
	}

	if m.jq != nil {
		v, err := util.Jq(m.jq, []byte(payload))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", m.topic, err)
		}

		switch typed := v.(type) {
		case float64:
			return typed * m.scale, nil
		case int:
			return float64(typed) * m.scale, nil
		default:
			return 0, fmt.Errorf("%s: unexpected jq result: %v", m.topic, v)
		}
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid payload '%s'", m.topic, payload)
	}

	return f * m.scale, nil
}
