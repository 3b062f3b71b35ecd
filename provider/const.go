package provider

import (
	"quarterload/util"
)

// Const is a fixed value source
type Const struct {
	value float64
}

func init() {
	registry.Add("const", NewConstFromConfig)
}

// NewConstFromConfig creates a const provider
func NewConstFromConfig(other map[string]interface{}) (FloatProvider, error) {
	var cc struct {
		Value float64
	}

	if err := util.DecodeOther(other, &cc); err != nil {
		return nil, err
	}

	return &Const{value: cc.Value}, nil
}

// FloatGetter returns the fixed value
func (p *Const) FloatGetter() func() (float64, error) {
	return func() (float64, error) {
		return p.value, nil
	}
}
