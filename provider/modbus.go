package provider

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/grid-x/modbus"

	"quarterload/util"
)

// Modbus provides a float value source from a modbus tcp register
type Modbus struct {
	log      *util.Logger
	mu       sync.Mutex // grid-x handlers must not be used concurrently
	client   modbus.Client
	register RegisterConfig
	qty      uint16
	scale    float64
}

// RegisterConfig describes a single register read
type RegisterConfig struct {
	Address uint16
	Type    string // holding or input
	Decode  string // uint16, int16, uint32, uint32s, int32, float32, float32s, float64
}

func init() {
	registry.Add("modbus", NewModbusFromConfig)
}

// NewModbusFromConfig creates a modbus tcp provider
func NewModbusFromConfig(other map[string]interface{}) (FloatProvider, error) {
	cc := struct {
		URI      string
		ID       uint8
		Timeout  time.Duration
		Register RegisterConfig
		Scale    float64
	}{
		ID:      1,
		Timeout: 10 * time.Second,
		Scale:   1,
	}

	if err := util.DecodeOther(other, &cc); err != nil {
		return nil, err
	}

	if cc.URI == "" {
		return nil, errors.New("missing uri")
	}

	switch strings.ToLower(cc.Register.Type) {
	case "holding", "input":
	default:
		return nil, fmt.Errorf("invalid register type: %s", cc.Register.Type)
	}

	qty, err := registerCount(cc.Register.Decode)
	if err != nil {
		return nil, err
	}

	log := util.NewLogger("modbus")

	handler := modbus.NewTCPClientHandler(cc.URI)
	handler.Timeout = cc.Timeout
	handler.SlaveID = cc.ID

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cc.URI, err)
	}

	return &Modbus{
		log:      log,
		client:   modbus.NewClient(handler),
		register: cc.Register,
		qty:      qty,
		scale:    cc.Scale,
	}, nil
}

// FloatGetter reads and decodes the configured register
func (m *Modbus) FloatGetter() func() (float64, error) {
	return m.floatGetter
}

func (m *Modbus) floatGetter() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b []byte
	var err error

	switch strings.ToLower(m.register.Type) {
	case "holding":
		b, err = m.client.ReadHoldingRegisters(m.register.Address, m.qty)
	case "input":
		b, err = m.client.ReadInputRegisters(m.register.Address, m.qty)
	}

	if err != nil {
		return 0, fmt.Errorf("read register %d: %w", m.register.Address, err)
	}

	f, err := decode(m.register.Decode, b)
	if err != nil {
		return 0, err
	}

	return f * m.scale, nil
}

// registerCount returns the number of registers the encoding occupies
func registerCount(encoding string) (uint16, error) {
	switch strings.ToLower(encoding) {
	case "uint16", "int16":
		return 1, nil
	case "uint32", "uint32s", "int32", "float32", "float32s":
		return 2, nil
	case "float64":
		return 4, nil
	}

	return 0, fmt.Errorf("invalid decode encoding: %s", encoding)
}

// decode converts raw big-endian register bytes into a float64. The *s
// variants expect the low word first, as used by several energy meters.
func decode(encoding string, b []byte) (float64, error) {
	qty, err := registerCount(encoding)
	if err != nil {
		return 0, err
	}

	if len(b) != int(qty)*2 {
		return 0, fmt.Errorf("%s: unexpected length %d", encoding, len(b))
	}

	switch strings.ToLower(encoding) {
	case "uint16":
		return float64(binary.BigEndian.Uint16(b)), nil
	case "int16":
		return float64(int16(binary.BigEndian.Uint16(b))), nil
	case "uint32":
		return float64(binary.BigEndian.Uint32(b)), nil
	case "uint32s":
		return float64(swapped32(b)), nil
	case "int32":
		return float64(int32(binary.BigEndian.Uint32(b))), nil
	case "float32":
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case "float32s":
		return float64(math.Float32frombits(swapped32(b))), nil
	case "float64":
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	}

	return 0, fmt.Errorf("invalid decode encoding: %s", encoding)
}

// swapped32 assembles a 32 bit value from word-swapped registers
func swapped32(b []byte) uint32 {
	return uint32(binary.BigEndian.Uint16(b[0:2])) | uint32(binary.BigEndian.Uint16(b[2:4]))<<16
}
