// Package format renders analysis fields as human-readable strings. The unit
// is inferred from the field name, so new fields that follow the naming
// convention format correctly without being listed anywhere.
package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Placeholder is shown for missing or non-finite values
const Placeholder = "—"

// rule renders a numeric value for every field whose name contains marker
type rule struct {
	marker string
	render func(v float64) string
}

// rules are checked in order; the first marker found in the key wins.
// "_mm3" must come before "_mm".
var rules = []rule{
	{"_mm3", func(v float64) string { return fixed(v, 1) + " mm³ (" + fixed(v/1000, 3) + " cm³)" }},
	{"_mm", func(v float64) string { return fixed(v, 2) + " mm" }},
	{"_norm", func(v float64) string { return fixed(v, 3) }},
	{"percent", func(v float64) string { return fixed(v, 2) + "%" }},
}

// Format renders value for the field named key
func Format(key string, value any) string {
	if value == nil {
		return Placeholder
	}

	v, numeric := toFloat(value)
	if !numeric {
		return fmt.Sprint(value)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}

	for _, r := range rules {
		if strings.Contains(key, r.marker) {
			return r.render(v)
		}
	}
	return fixed(v, 3)
}

// fixed rounds half away from zero at the given number of decimals, so
// 2.345 renders as 2.35 even though its binary value is slightly below.
func fixed(v float64, decimals int) string {
	p := math.Pow10(decimals)
	if scaled := v * p; !math.IsInf(scaled, 0) {
		v = math.Round(scaled) / p
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// Row is one key/value line of a result table
type Row struct {
	Key   string
	Value string
}

// Rows formats fields in the order given by keys. Keys missing from fields
// render as the placeholder.
func Rows(fields map[string]any, keys []string) []Row {
	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, Row{Key: k, Value: Format(k, fields[k])})
	}
	return rows
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
