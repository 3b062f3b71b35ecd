package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var re = regexp.MustCompile(`\${(\w+)(:([a-zA-Z0-9%.]+))?}`)

// FormatValue formats a value with the given sprintf format
func FormatValue(format string, val interface{}) string {
	if format == "" {
		format = "%v"
	}
	return fmt.Sprintf(format, val)
}

// ReplaceFormatted replaces all occurrences of ${key} or ${key:format} with
// the formatted value from the attributes map
func ReplaceFormatted(s string, kv map[string]interface{}) (string, error) {
	for m := re.FindStringSubmatch(s); m != nil; m = re.FindStringSubmatch(s) {
		format := "%v"
		if len(m) == 4 && m[3] != "" {
			format = m[3]
		}

		val, ok := kv[m[1]]
		if !ok {
			return "", errors.New("unknown attribute: " + m[1])
		}

		s = strings.ReplaceAll(s, m[0], FormatValue(format, val))
	}

	return s, nil
}
