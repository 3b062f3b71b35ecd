package core

import (
	"github.com/avast/retry-go"
)

var (

	// Voltage global value
	Voltage float64 = 230

	// RetryOptions is the default options set for retryable operations
	RetryOptions = []retry.Option{retry.Attempts(3), retry.LastErrorOnly(true)}

	Presence = map[bool]string{false: "—", true: "✓"}
)
