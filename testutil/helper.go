// Package testutil holds helpers shared by the codec tests.
package testutil

import (
	"encoding/hex"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Hex decodes a fixture written as space separated hex bytes, e.g. "03 01 6b".
// Text after '#' on a line is a comment.
func Hex(t testing.TB, s string) []byte {
	t.Helper()
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		b.WriteString(strings.Join(strings.Fields(line), ""))
	}
	out, err := hex.DecodeString(b.String())
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return out
}

// ConvertToInt64 converts various numeric types to int64 for comparison.
// Returns the int64 value and a boolean indicating success.
func ConvertToInt64(i any) (int64, bool) {
	switch v := i.(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v), true
		}
		return 0, false
	case float32:
		if v == float32(math.Trunc(float64(v))) {
			return int64(v), true
		}
		return 0, false
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// NumericComparer compares numbers by value regardless of their Go type, so a
// map decoded from JSON (float64) can be compared with typed literals.
var NumericComparer = cmp.FilterValues(func(x, y any) bool {
	_, xOk := toFloat(x)
	_, yOk := toFloat(y)
	return xOk && yOk
}, cmp.Comparer(func(x, y any) bool {
	xInt, xOk := ConvertToInt64(x)
	yInt, yOk := ConvertToInt64(y)
	if xOk && yOk {
		return xInt == yInt
	}
	xf, _ := toFloat(x)
	yf, _ := toFloat(y)
	return math.Abs(xf-yf) < 1e-6
}))

// FloatApprox treats float32 and float64 values within a small relative margin as equal.
var FloatApprox = cmpopts.EquateApprox(1e-6, 0)

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := ConvertToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// FilterMapKeys recursively creates a new map from 'source' containing only keys present in 'reference'.
func FilterMapKeys(source map[string]any, reference map[string]any) map[string]any {
	result := make(map[string]any)
	for key, refVal := range reference {
		if srcVal, ok := source[key]; ok {
			if refSubMap, refIsMap := refVal.(map[string]any); refIsMap {
				if srcSubMap, srcIsMap := srcVal.(map[string]any); srcIsMap {
					result[key] = FilterMapKeys(srcSubMap, refSubMap)
				} else {
					result[key] = srcVal // Type mismatch, will be caught by cmp.Diff
				}
			} else {
				result[key] = srcVal
			}
		}
	}
	return result
}
