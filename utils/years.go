// utils/years.go
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseYear parses a 4-digit publication year such as "2019".
func ParseYear(value string) (int, error) {
	value = strings.TrimSpace(value)
	if len(value) != 4 {
		return 0, fmt.Errorf("year %q is not 4 digits", value)
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("year %q is not numeric", value)
		}
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse year %q: %w", value, err)
	}
	return year, nil
}

// IsNullValue reports whether value is one of the configured null markers.
func IsNullValue(value string, nullValues []string) bool {
	for _, n := range nullValues {
		if value == n {
			return true
		}
	}
	return false
}
