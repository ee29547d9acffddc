// Package convert provides type conversion utilities.
package convert

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToFloat64 converts various numeric types to float64.
// Returns 0 for unsupported types or parse failures.
func ToFloat64(v any) float64 {
	f, _ := ToNullableFloat(v)
	return f
}

// ToNullableFloat converts v to a finite float64. The second return value is
// false when v is nil, non-numeric, or not finite, so callers can tell a
// missing metric apart from a genuine zero.
func ToNullableFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToInt truncates the numeric value of v. Returns 0 when v is not numeric.
func ToInt(v any) int {
	f, ok := ToNullableFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}
