package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceFormatted(t *testing.T) {
	kv := map[string]interface{}{
		"meter":        "garage",
		"runningPower": 6900.123,
		"sampleCount":  42,
	}

	s, err := ReplaceFormatted("${meter}: ${runningPower:%.0f}W after ${sampleCount} samples", kv)
	require.NoError(t, err)
	assert.Equal(t, "garage: 6900W after 42 samples", s)
}

func TestReplaceFormattedUnknownAttribute(t *testing.T) {
	_, err := ReplaceFormatted("${missing}", map[string]interface{}{})
	assert.Error(t, err)
}

func TestReplaceFormattedNoPlaceholder(t *testing.T) {
	s, err := ReplaceFormatted("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", s)
}
