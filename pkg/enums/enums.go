// Package enums holds the string enums persisted in the database and
// exchanged with the model.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

func isKnown[T ~string](known []T, value T) bool {
	return slices.Contains(known, value)
}

// parse matches raw case-insensitively after trimming.
func parse[T ~string](kind string, known []T, raw string) (T, error) {
	value := T(strings.ToLower(strings.TrimSpace(raw)))
	if isKnown(known, value) {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
