package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tc := []struct {
		encoding string
		bytes    []byte
		expected float64
	}{
		{"uint16", []byte{0x12, 0x34}, 4660},
		{"int16", []byte{0xff, 0xfe}, -2},
		{"uint32", []byte{0x00, 0x01, 0x00, 0x00}, 65536},
		{"uint32s", []byte{0x00, 0x00, 0x00, 0x01}, 65536},
		{"int32", []byte{0xff, 0xff, 0xff, 0xff}, -1},
		{"float32", []byte{0x41, 0x20, 0x00, 0x00}, 10},
		{"float32s", []byte{0x00, 0x00, 0x41, 0x20}, 10},
		{"float64", []byte{0x40, 0x24, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, 10},
	}

	for _, tc := range tc {
		f, err := decode(tc.encoding, tc.bytes)
		require.NoError(t, err, tc.encoding)
		assert.Equal(t, tc.expected, f, tc.encoding)
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := decode("uint16", []byte{0x00})
	assert.Error(t, err, "short buffer must be rejected")

	_, err = decode("fancy", []byte{0x00, 0x00})
	assert.Error(t, err, "unknown encoding must be rejected")
}

func TestRegisterCount(t *testing.T) {
	for encoding, expected := range map[string]uint16{
		"uint16":  1,
		"int16":   1,
		"uint32":  2,
		"int32":   2,
		"float32": 2,
		"float64": 4,
	} {
		qty, err := registerCount(encoding)
		require.NoError(t, err)
		assert.Equal(t, expected, qty, encoding)
	}
}
