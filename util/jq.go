package util

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// Jq executes a compiled jq query against given json
func Jq(query *gojq.Query, input []byte) (interface{}, error) {
	var j interface{}
	if err := json.Unmarshal(input, &j); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	iter := query.Run(j)

	v, ok := iter.Next()
	if !ok {
		return nil, errors.New("jq: empty result")
	}

	if err, ok := v.(error); ok {
		return nil, fmt.Errorf("jq: query failed: %v", err)
	}

	return v, nil
}
