package engine

import (
	"sort"

	"golang.org/x/text/cases"
)

func yearMatches(row Row, year *int) bool {
	if year == nil {
		return true
	}
	y, ok := row[colYear].(int)
	return ok && y == *year
}

// Select returns rows for country, optionally restricted to one year, in
// source order. Country names match in full, ignoring case. Rows with a null
// year never match a year filter.
func Select(t *Table, country string, year *int) []Row {
	if t == nil {
		return nil
	}
	// A Caser keeps state, so each call gets its own.
	folder := cases.Fold()
	want := folder.String(country)
	var out []Row
	for _, r := range t.Rows {
		s, ok := r[colCountry].(string)
		if !ok || folder.String(s) != want {
			continue
		}
		if yearMatches(r, year) {
			out = append(out, r)
		}
	}
	return out
}

// FilterYear returns every row of t for year, or all rows when year is nil.
func FilterYear(t *Table, year *int) []Row {
	if t == nil {
		return nil
	}
	if year == nil {
		return t.Rows
	}
	out := make([]Row, 0)
	for _, r := range t.Rows {
		if yearMatches(r, year) {
			out = append(out, r)
		}
	}
	return out
}

// Filter applies an optional country and year filter to t.
func Filter(t *Table, country string, year *int) []Row {
	if country == "" {
		return FilterYear(t, year)
	}
	return Select(t, country, year)
}

// Series orders rows by ascending year on a copy; null years sort last and
// equal years keep source order.
func Series(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		yi, iok := out[i][colYear].(int)
		yj, jok := out[j][colYear].(int)
		switch {
		case iok && jok:
			return yi < yj
		default:
			return iok && !jok
		}
	})
	return out
}

// First returns the first matching row in source order. Duplicate
// (country, year) rows are not expected upstream; if present the earliest wins.
func First(t *Table, country string, year *int) (Row, error) {
	rows := Select(t, country, year)
	if len(rows) == 0 {
		var name DatasetName
		if t != nil {
			name = t.Name
		}
		return nil, &NotFoundError{Country: country, Year: year, Dataset: name}
	}
	return rows[0], nil
}
