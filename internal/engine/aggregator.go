package engine

import (
	"strings"
)

// Category is one of the six fixed e-waste categories.
type Category string

const (
	TemperatureExchange Category = "temperature_exchange_equipment"
	Screens             Category = "screens"
	Lamps               Category = "lamps"
	LargeEquipment      Category = "large_equipment"
	SmallEquipment      Category = "small_equipment"
	SmallIT             Category = "small_it"
)

// Categories in output order.
var Categories = []Category{TemperatureExchange, Screens, Lamps, LargeEquipment, SmallEquipment, SmallIT}

// Column is the wide-table column carrying the category weight in kt.
func (c Category) Column() string { return string(c) + "_kt" }

// Field is the canonical field for the category weight.
func (c Category) Field() Field { return Field(c.Column()) }

// ParseCategory accepts a label with or without the _kt suffix, in any case.
func ParseCategory(v any) (Category, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "_kt")
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type groupKey struct {
	country string
	year    int
}

// groupByCountryYear folds rows sharing (country, year) into one output row,
// groups in first-appearance order. Rows without a country or year are
// dropped. merge copies src into the group row dst.
func groupByCountryYear(t *Table, merge func(dst, src Row)) []Row {
	ids := make(map[groupKey]int)
	groups := make([]Row, 0)

	for _, r := range t.Rows {
		country, ok := r[colCountry].(string)
		if !ok || country == "" {
			continue
		}
		year, ok := r[colYear].(int)
		if !ok {
			continue
		}

		key := groupKey{country: country, year: year}
		id, exists := ids[key]
		if !exists {
			id = len(groups)
			ids[key] = id
			groups = append(groups, make(Row, len(r)))
		}
		merge(groups[id], r)
	}
	return groups
}

// firstNonNull copies every src value into dst unless dst already holds one.
func firstNonNull(dst, src Row) {
	for k, v := range src {
		if cur, set := dst[k]; !set || cur == nil {
			dst[k] = v
		}
	}
}

// pivotCategories turns a long (country, year, category, kt) table into one
// wide row per (country, year) with a <category>_kt column per category.
// Unknown categories are ignored, the first numeric kt per category wins and
// the remaining columns keep their first non-null value. Tables that are not
// long are returned unchanged.
func pivotCategories(t *Table) *Table {
	if t.Empty() || !t.isLong() {
		return t
	}

	rows := groupByCountryYear(t, func(dst, src Row) {
		for k, v := range src {
			switch k {
			case colCategory, colKt, colShare:
				continue
			}
			if cur, set := dst[k]; !set || cur == nil {
				dst[k] = v
			}
		}
		cat, ok := ParseCategory(src[colCategory])
		if !ok {
			return
		}
		if _, done := dst[cat.Column()].(float64); done {
			return
		}
		if kt, ok := ToFloat(src[colKt]); ok {
			dst[cat.Column()] = kt
		}
	})

	cols := make([]string, 0, len(t.Columns)+len(Categories))
	for _, c := range t.Columns {
		switch c {
		case colCategory, colKt, colShare:
			continue
		}
		cols = append(cols, c)
	}
	for _, c := range Categories {
		if !t.Has(c.Column()) {
			cols = append(cols, c.Column())
		}
	}
	for _, r := range rows {
		for _, c := range cols {
			if _, ok := r[c]; !ok {
				r[c] = nil
			}
		}
	}

	return &Table{Name: t.Name, Columns: cols, Rows: rows, Fingerprint: t.Fingerprint}
}

// collapseMacro reduces a long-format table to one row per (country, year)
// holding the first non-null value of every column, so macro queries see one
// row per country-year whatever the source shape.
func collapseMacro(t *Table) *Table {
	if t.Empty() || !t.Has(colCategory) {
		return t
	}
	rows := groupByCountryYear(t, firstNonNull)
	for _, r := range rows {
		for _, c := range t.Columns {
			if _, ok := r[c]; !ok {
				r[c] = nil
			}
		}
	}
	return &Table{Name: t.Name, Columns: t.Columns, Rows: rows, Fingerprint: t.Fingerprint}
}
