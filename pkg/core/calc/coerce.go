package calc

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// itemer is implemented by scalar wrapper types that expose their underlying value.
type itemer interface {
	Item() any
}

// nestedValueKeys are tried, in order, when an extracted value is itself an object.
var nestedValueKeys = []string{"amount", "value", "total"}

// ToFloat converts an extracted value to float64. It never panics: nil,
// unparseable input and non-finite results yield def.
//
// Strings may carry currency symbols and thousands separators, and accounting
// negatives written as "(1,234.50)" are honoured.
func ToFloat(value any, def float64) float64 {
	f, ok := toFloat(value, 0)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func toFloat(value any, depth int) (float64, bool) {
	if depth > 4 {
		return 0, false
	}
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case decimal.Decimal:
		f, _ := v.Float64()
		return f, true
	case string:
		return parseAccounting(v)
	case itemer:
		return toFloat(v.Item(), depth+1)
	case map[string]any:
		for _, key := range nestedValueKeys {
			if inner, ok := v[key]; ok && inner != nil {
				return toFloat(inner, depth+1)
			}
		}
		return 0, false
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return parseAccounting(rv.String())
	case reflect.Pointer:
		if rv.IsNil() {
			return 0, false
		}
		return toFloat(rv.Elem().Interface(), depth+1)
	}
	return 0, false
}

// parseAccounting parses currency-formatted text such as "$1,234.56" or "(1,234.50)".
func parseAccounting(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	negative := len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')'
	if negative {
		s = s[1 : len(s)-1]
	}
	clean := keepChars(s, "0123456789.-")
	if clean == "" || clean == "." {
		return 0, false
	}
	num, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		num = -num
	}
	return num, true
}

// ToInt converts an extracted value to int with the same fallback rules as
// ToFloat. Strings keep only digits and minus signs before parsing.
func ToInt(value any, def int) int {
	switch v := value.(type) {
	case nil:
		return def
	case string:
		clean := keepChars(strings.TrimSpace(v), "0123456789-")
		if clean == "" {
			return def
		}
		n, err := strconv.Atoi(clean)
		if err != nil {
			return def
		}
		return n
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case decimal.Decimal:
		return int(v.IntPart())
	}

	f, ok := toFloat(value, 0)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return def
	}
	return int(f)
}

// ToString converts an identifier-like value to a trimmed string.
func ToString(value any, def string) string {
	switch v := value.(type) {
	case nil:
		return def
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func keepChars(s, allowed string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(allowed, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
