package pricing

import (
	"math"
	"strconv"
	"strings"
)

// Params is a bag of scope parameters detected from evidence or captured in a quote.
// Values arrive from JSON, so numbers are usually float64.
type Params map[string]any

// Merge returns detected overlaid on fallback. Keys the evidence omits keep
// the value the original quote was computed from.
func Merge(detected, fallback Params) Params {
	merged := make(Params, len(detected)+len(fallback))
	for k, v := range fallback {
		merged[k] = v
	}
	for k, v := range detected {
		if v != nil {
			merged[k] = v
		}
	}
	return merged
}

// Float returns the numeric value of key, or def when missing, not numeric
// or not finite.
func (p Params) Float(key string, def float64) float64 {
	var f float64
	switch v := p[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Int returns the value of key truncated to an int. Values beyond the int32
// range return def.
func (p Params) Int(key string, def int) int {
	f := p.Float(key, float64(def))
	if f > math.MaxInt32 || f < math.MinInt32 {
		return def
	}
	return int(f)
}

// String returns the value of key as a lower-cased trimmed string.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return def
}

// Bool returns the value of key as a bool.
func (p Params) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
