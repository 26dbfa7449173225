// Package convert provides loose-typed conversion for externally produced JSON.
package convert

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToFloat64 converts various numeric encodings to float64.
// Returns 0 for unsupported types or parse failures.
func ToFloat64(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

// ToInt converts numeric encodings to int, truncating fractions.
func ToInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, _ := t.Float64()
			return int(f)
		}
		return int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return int(ToFloat64(v))
		}
		return i
	default:
		return 0
	}
}

// ToString renders scalar values as strings; non-scalars become "".
func ToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
