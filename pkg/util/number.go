package util

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Finite coerces an upstream value into a finite float64. Anything that is not a
// decimal numeral, or that parses to NaN or an infinity, becomes 0.
func Finite(raw any) float64 {
	var f float64
	switch v := raw.(type) {
	case nil:
		return 0
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		return parseFinite(string(v))
	case string:
		return parseFinite(v)
	case *string:
		if v == nil {
			return 0
		}
		return parseFinite(*v)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// NonNegative is Finite clamped at zero, for prices, caps and volumes.
func NonNegative(raw any) float64 {
	f := Finite(raw)
	if f < 0 {
		return 0
	}
	return f
}

func parseFinite(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || isHex(s) {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// isHex reports a 0x-prefixed numeral, which ParseFloat would otherwise accept.
func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
