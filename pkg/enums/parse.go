package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](value string, known []T, kind string) (T, error) {
	if v := T(value); slices.Contains(known, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
