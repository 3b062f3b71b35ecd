package provider

import (
	"fmt"

	"quarterload/util"
)

type calcProvider struct {
	add []func() (float64, error)
}

func init() {
	registry.Add("calc", NewCalcFromConfig)
}

// NewCalcFromConfig creates a calc provider summing up its child sources
func NewCalcFromConfig(other map[string]interface{}) (FloatProvider, error) {
	var cc struct {
		Add []Config
	}

	if err := util.DecodeOther(other, &cc); err != nil {
		return nil, err
	}

	if len(cc.Add) == 0 {
		return nil, fmt.Errorf("missing add sources")
	}

	o := &calcProvider{}

	for idx, conf := range cc.Add {
		f, err := NewFloatGetterFromConfig(conf)
		if err != nil {
			return nil, fmt.Errorf("add[%d]: %w", idx, err)
		}
		o.add = append(o.add, f)
	}

	return o, nil
}

// FloatGetter returns the sum of all child sources
func (o *calcProvider) FloatGetter() func() (float64, error) {
	return o.floatGetter
}

func (o *calcProvider) floatGetter() (float64, error) {
	var sum float64
	for idx, p := range o.add {
		v, err := p()
		if err != nil {
			return 0, fmt.Errorf("add[%d]: %w", idx, err)
		}
		sum += v
	}

	return sum, nil
}
