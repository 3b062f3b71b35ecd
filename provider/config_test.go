package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFloatGetterFromConfig(t *testing.T) {
	g, err := NewFloatGetterFromConfig(Config{
		Source: "const",
		Other:  map[string]interface{}{"value": 42.5},
	})
	require.NoError(t, err)

	v, err := g()
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)
}

func TestUnknownPluginType(t *testing.T) {
	_, err := NewFloatGetterFromConfig(Config{Source: "bogus"})
	assert.Error(t, err)
}

func TestCalcProvider(t *testing.T) {
	g, err := NewFloatGetterFromConfig(Config{
		Source: "calc",
		Other: map[string]interface{}{
			"add": []map[string]interface{}{
				{"source": "const", "value": 1.5},
				{"source": "const", "value": 2.5},
			},
		},
	})
	require.NoError(t, err)

	v, err := g()
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	_, err := NewFloatGetterFromConfig(Config{
		Source: "const",
		Other:  map[string]interface{}{"value": 1, "typo": true},
	})
	assert.Error(t, err)
}
