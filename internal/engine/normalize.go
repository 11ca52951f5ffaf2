package engine

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Field is a canonical field name, independent of source-schema naming.
type Field string

const (
	GeneratedKt        Field = "e_waste_generated_kt"
	GeneratedPerCapita Field = "e_waste_generated_per_capita"
	CollectionRate     Field = "e_waste_collection_rate"
	FormallyCollected  Field = "e_waste_formally_collected_kt"
	ExportedKt         Field = "e_waste_exported_kt"
	ImportedKt         Field = "e_waste_imported_kt"
	PlacedOnMarket     Field = "eee_placed_on_market_kg_inh"
	GDPPerCapita       Field = "gdp_per_capita"
	Population         Field = "population"
)

// Aliases lists, per canonical field, the source columns that may carry it in
// priority order. Category fields are added in init.
var Aliases = map[Field][]string{
	GeneratedKt:        {"e_waste_generated_kt", "E_waste_generated_kt", "e_waste_generated_kt_x", "e_waste_generated_kt_y"},
	GeneratedPerCapita: {"ewaste_generated_kg_inh", "E_waste_generated_per_capita", "e_waste_generated_per_capita"},
	CollectionRate:     {"e_waste_collection_rate", "E_waste_collection_rate", "ewaste_management_collection_rate"},
	FormallyCollected:  {"e_waste_formally_collected_kt", "E_waste_formally_collected_kt", "ewaste_formally_collected_kg_inh"},
	ExportedKt:         {"e_waste_exported_kt", "E_waste_exported_kt"},
	ImportedKt:         {"e_waste_imported_kt", "E_waste_imported_kt"},
	PlacedOnMarket:     {"eee_placed_on_market_kg_inh", "EEE_placed_on_market_kg_inh"},
	GDPPerCapita:       {"gdp_per_capita", "GDP_per_capita"},
	Population:         {"population"},
}

func init() {
	for _, c := range Categories {
		Aliases[c.Field()] = []string{c.Column()}
	}
}

// Number resolves a canonical field on row: the first alias holding a finite
// number wins. Missing and malformed values yield nil.
func Number(row Row, f Field) *float64 {
	aliases, ok := Aliases[f]
	if !ok {
		aliases = []string{string(f)}
	}
	for _, col := range aliases {
		if v, ok := ToFloat(row[col]); ok {
			return &v
		}
	}
	return nil
}

// NumberOr is Number with missing values replaced by def.
func NumberOr(row Row, f Field, def float64) float64 {
	if v := Number(row, f); v != nil {
		return *v
	}
	return def
}

// ToFloat coerces a cell to a finite float64. Booleans, text that is not a
// number, NaN and infinities are rejected.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		v = strings.TrimSpace(x)
		if v == "" {
			return 0, false
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Text returns a non-empty string cell, or nil.
func Text(row Row, column string) *string {
	switch x := row[column].(type) {
	case string:
		if x == "" {
			return nil
		}
		return &x
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		s := cast.ToString(x)
		return &s
	default:
		s := cast.ToString(x)
		if s == "" {
			return nil
		}
		return &s
	}
}
