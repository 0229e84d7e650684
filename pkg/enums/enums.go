package enums

import (
	"fmt"
	"slices"
	"strings"
)

func parse[T ~string](value string, valid []T, label string) (T, error) {
	normalized := T(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(valid, normalized) {
		return normalized, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", label, value)
}
