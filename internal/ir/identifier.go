package ir

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// AsInt64 interprets v as an integer identifier. Integral floats (as decoded
// from JSON) and decimal strings are accepted.
func AsInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float32:
		return integralFloat(float64(val))
	case float64:
		return integralFloat(val)
	case json.Number:
		n, err := val.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func integralFloat(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
