package core

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"quarterload/push"
	"quarterload/util"
)

// Site is the collection of configured meters. Meters are fully independent,
// the site only fans channels out and runs the sampling loops.
type Site struct {
	log    *util.Logger
	meters []*Meter
}

// NewSite creates a site from configured meters
func NewSite(meters []*Meter) (*Site, error) {
	if len(meters) == 0 {
		return nil, errors.New("no meters configured")
	}

	names := make(map[string]bool, len(meters))
	for _, m := range meters {
		if names[m.Name] {
			return nil, fmt.Errorf("duplicate meter name: %s", m.Name)
		}
		names[m.Name] = true
	}

	return &Site{
		log:    util.NewLogger("site"),
		meters: meters,
	}, nil
}

// Meters returns the site's meters
func (s *Site) Meters() []*Meter {
	return s.meters
}

// Healthy reports whether all sampling loops are alive
func (s *Site) Healthy() bool {
	for _, m := range s.meters {
		if !m.Healthy() {
			return false
		}
	}
	return true
}

// MeterByName returns the meter with the given name
func (s *Site) MeterByName(name string) (*Meter, error) {
	for _, m := range s.meters {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown meter: %s", name)
}

// Prepare attaches all meters to the ui and push channels
func (s *Site) Prepare(uiChan chan<- util.Param, pushChan chan<- push.Event) {
	for _, m := range s.meters {
		m.Prepare(uiChan, pushChan)
	}
}

// DumpConfig logs the site configuration
func (s *Site) DumpConfig() {
	for _, m := range s.meters {
		s.log.INFO.Printf("  %-12s interval %v limit %s targets %d",
			m.Name+":", m.Interval, Presence[m.GetLimit() > 0], len(m.GetTargets()),
		)
	}
}

// Run starts all meter loops and blocks until ctx is cancelled
func (s *Site) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, m := range s.meters {
		m := m
		g.Go(func() error {
			m.Run(ctx)
			return nil
		})
	}

	return g.Wait()
}
