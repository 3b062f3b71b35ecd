package core

import (
	"encoding/json"
	"os"
	"sync"
)

const settingsFile = "runtime.json"

// settingsService persists runtime adjustments across restarts
type settingsService struct {
	mu   sync.Mutex
	data settingsData
}

type settingsData struct {
	Meters map[string]meterSettings `json:"meters,omitempty"`
}

type meterSettings struct {
	Targets []float64 `json:"targets,omitempty"`
	Limit   *float64  `json:"limit,omitempty"`
}

var settings *settingsService

func init() {
	settings = &settingsService{
		data: settingsData{
			Meters: map[string]meterSettings{},
		},
	}

	settings.load()
}

func (s *settingsService) load() {
	b, err := os.ReadFile(settingsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		panic(err)
	}

	if err := json.Unmarshal(b, &s.data); err != nil {
		panic(err)
	}

	if s.data.Meters == nil {
		s.data.Meters = map[string]meterSettings{}
	}
}

func (s *settingsService) save() {
	b, err := json.Marshal(s.data)
	if err != nil {
		panic(err)
	}

	if err := os.WriteFile(settingsFile, b, 0644); err != nil {
		panic(err)
	}
}

// Targets returns the persisted estimation targets for a meter
func (s *settingsService) Targets(meter string) ([]float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.data.Meters[meter]
	return m.Targets, ok && m.Targets != nil
}

// SetTargets persists the estimation targets for a meter
func (s *settingsService) SetTargets(meter string, targets []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.data.Meters[meter]
	m.Targets = targets
	s.data.Meters[meter] = m
	s.save()
}

// Limit returns the persisted alert limit for a meter
func (s *settingsService) Limit(meter string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.data.Meters[meter]
	if !ok || m.Limit == nil {
		return 0, false
	}
	return *m.Limit, true
}

// SetLimit persists the alert limit for a meter
func (s *settingsService) SetLimit(meter string, limit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.data.Meters[meter]
	m.Limit = &limit
	s.data.Meters[meter] = m
	s.save()
}
