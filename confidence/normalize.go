package confidence

import (
	"strconv"
	"strings"
)

// NormalizeValue maps v onto [0,1].
//
// Values already in [0,1] are returned unchanged, values in (1,100] are
// treated as percentages. Strings are parsed after stripping a trailing "%".
// The boolean is false when v is not numeric or falls outside both ranges.
func NormalizeValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return normalizeFloat(n)
	case float32:
		return normalizeFloat(float64(n))
	case int:
		return normalizeFloat(float64(n))
	case int32:
		return normalizeFloat(float64(n))
	case int64:
		return normalizeFloat(float64(n))
	case uint:
		return normalizeFloat(float64(n))
	case uint64:
		return normalizeFloat(float64(n))
	case string:
		s := strings.TrimSpace(n)
		pct := strings.HasSuffix(s, "%")
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}

		if pct {
			if f < 0 || f > 100 {
				return 0, false
			}

			return f / 100, true
		}

		return normalizeFloat(f)
	default:
		return 0, false
	}
}

func normalizeFloat(f float64) (float64, bool) {
	switch {
	case f != f:
		return 0, false
	case f >= 0 && f <= 1:
		return f, true
	case f > 1 && f <= 100:
		return f / 100, true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v != v {
		return lo
	}

	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
