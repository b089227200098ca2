// Package units normalizes length parameters to canonical meters.
//
// The reasoning engine is instructed to answer in meters, but spoken
// commands carry units ("5cm radius", "10 millimetres") and models sometimes
// echo them back. Normalization happens exactly once, before a value is
// stored or dispatched; an already-canonical value passes through unchanged,
// so normalization is idempotent.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// factors maps a unit suffix to its length in meters.
var factors = map[string]float64{
	"m":           1,
	"meter":       1,
	"meters":      1,
	"metre":       1,
	"metres":      1,
	"dm":          0.1,
	"cm":          0.01,
	"centimeter":  0.01,
	"centimeters": 0.01,
	"centimetre":  0.01,
	"centimetres": 0.01,
	"mm":          0.001,
	"millimeter":  0.001,
	"millimeters": 0.001,
	"millimetre":  0.001,
	"millimetres": 0.001,
	"um":          0.000001,
	"micron":      0.000001,
	"microns":     0.000001,
	"in":          0.0254,
	"inch":        0.0254,
	"inches":      0.0254,
	"ft":          0.3048,
	"foot":        0.3048,
	"feet":        0.3048,
}

// ParseLength converts a length expression to meters. Accepted forms:
// a bare number (already canonical), or a number followed by a unit suffix
// with optional whitespace ("5cm", "10 mm", "0.5 inches").
func ParseLength(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty length")
	}

	// Split the trailing unit word off the numeric prefix.
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if c >= '0' && c <= '9' || c == '.' {
			break
		}
		i--
	}
	num := strings.TrimSpace(s[:i])
	unit := strings.TrimSpace(s[i:])

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse length %q: %w", s, err)
	}
	if unit == "" {
		return v, nil
	}
	factor, ok := factors[unit]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q in %q", unit, s)
	}
	return v * factor, nil
}

// Canonical converts one parameter value to meters. Numeric values are
// assumed canonical already; strings are parsed as length expressions.
func Canonical(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return ParseLength(t)
	default:
		return 0, fmt.Errorf("unsupported length value %T", v)
	}
}

// NormalizeParameters rewrites every length-carrying parameter in params to
// canonical meters, using isLength to decide which names carry a length.
// Non-length values pass through unchanged. The input map is not mutated.
func NormalizeParameters(params map[string]any, isLength map[string]bool) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if !isLength[k] {
			out[k] = v
			continue
		}
		meters, err := Canonical(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = meters
	}
	return out, nil
}
