package portfolio

import (
	"math"
	"strconv"
	"strings"
)

// notAvailable lists the placeholder strings spreadsheets use for missing data.
var notAvailable = map[string]bool{
	"#N/A":      true,
	"#N/A N.A.": true,
	"N/A":       true,
	"n/a":       true,
	"NA":        true,
	"#NA":       true,
	"—":         true,
	"-":         true,
	"":          true,
	"NaN":       true,
}

// CleanCell normalizes a raw cell: placeholders and non-finite numbers become
// nil, numeric strings (thousands separators allowed) become float64, other
// strings are trimmed.
func CleanCell(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(x)
		if notAvailable[s] {
			return nil
		}
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil
			}
			return f
		}
		return s
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return CleanCell(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return v
	}
}

// CleanRow applies CleanCell to every value of r.
func CleanRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = CleanCell(v)
	}
	return out
}

func number(v any) *float64 {
	f, ok := CleanCell(v).(float64)
	if !ok {
		return nil
	}
	return &f
}

func text(v any) *string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return &x
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		return &s
	default:
		return nil
	}
}

func blank(v any) bool {
	s, ok := v.(string)
	return v == nil || (ok && s == "")
}

// lookup returns the first non-nil value among keys.
func (r Row) lookup(keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
