package engine

import (
	"math"
)

// Finite returns &f, or nil for NaN and infinities.
func Finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// YearOf returns the row year as a plain integer, or nil.
func YearOf(row Row) *int {
	if y, ok := row[colYear].(int); ok {
		return &y
	}
	return nil
}

// CountryOf returns the row country, or "" when absent.
func CountryOf(row Row) string {
	if s := Text(row, colCountry); s != nil {
		return *s
	}
	return ""
}

// cleanValue makes a cell safe for JSON: non-finite floats become nil.
func cleanValue(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return cleanValue(float64(x))
	default:
		return v
	}
}

// cleanRow copies row with every cell passed through cleanValue.
func cleanRow(row Row, columns []string) map[string]any {
	out := make(map[string]any, len(columns))
	for _, c := range columns {
		out[c] = cleanValue(row[c])
	}
	return out
}
