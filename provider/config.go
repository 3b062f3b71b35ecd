package provider

import (
	"fmt"
	"strings"
)

// FloatProvider is a configurable float value source
type FloatProvider interface {
	FloatGetter() func() (float64, error)
}

type providerRegistry map[string]func(map[string]interface{}) (FloatProvider, error)

func (r providerRegistry) Add(name string, factory func(map[string]interface{}) (FloatProvider, error)) {
	if _, exists := r[name]; exists {
		panic(fmt.Sprintf("cannot register duplicate plugin type: %s", name))
	}
	r[name] = factory
}

func (r providerRegistry) Get(name string) (func(map[string]interface{}) (FloatProvider, error), error) {
	factory, exists := r[name]
	if !exists {
		return nil, fmt.Errorf("invalid plugin type: %s", name)
	}
	return factory, nil
}

var registry = make(providerRegistry)

// Config is the general provider config
type Config struct {
	Source string
	Other  map[string]interface{} `mapstructure:",remain"`
}

// PluginType returns the normalized plugin type
func (c Config) PluginType() string {
	return strings.ToLower(c.Source)
}

// NewFloatProviderFromConfig creates a FloatProvider from config
func NewFloatProviderFromConfig(config Config) (FloatProvider, error) {
	factory, err := registry.Get(config.PluginType())
	if err != nil {
		return nil, err
	}

	return factory(config.Other)
}

// NewFloatGetterFromConfig creates a FloatGetter from config
func NewFloatGetterFromConfig(config Config) (res func() (float64, error), err error) {
	provider, err := NewFloatProviderFromConfig(config)
	if err == nil {
		res = provider.FloatGetter()
	}

	if err == nil && res == nil {
		err = fmt.Errorf("invalid plugin type: %s", config.PluginType())
	}

	return
}
