package engine

import (
	"strings"
)

// DatasetName is the logical name of one source table.
type DatasetName string

const (
	CountryYear         DatasetName = "country_year"
	CategoryLong        DatasetName = "category_long"
	CategoryPairs       DatasetName = "category_pairs"
	MasterNormalized    DatasetName = "master_normalized"
	MasterFinalFallback DatasetName = "master_final_fallback"
)

// AllDatasets lists every dataset the registry knows how to load.
var AllDatasets = []DatasetName{CountryYear, CategoryLong, CategoryPairs, MasterNormalized, MasterFinalFallback}

// datasetFiles maps each dataset to its file stem under the data directory.
var datasetFiles = map[DatasetName]string{
	CountryYear:         "df_country_year",
	CategoryLong:        "df_category_long",
	CategoryPairs:       "df_category_pairs",
	MasterNormalized:    "master_dataset_normalized",
	MasterFinalFallback: "master_final_dataset",
}

const (
	colCountry      = "country"
	colCountryClean = "country_clean"
	colISO3         = "iso3"
	colYear         = "year"
	colCategory     = "category"
	colKt           = "kt"
	colShare        = "share"
)

// Row maps a column name to nil, float64, int (year only), string or bool.
type Row map[string]any

// Table is an immutable, named dataset. Callers must not modify Rows.
type Table struct {
	Name        DatasetName
	Columns     []string
	Rows        []Row
	Fingerprint uint64
}

// NewTable builds a table with the same invariants the loader enforces:
// trimmed column names and a nullable integer year column.
func NewTable(name DatasetName, rows []Row) *Table {
	t := &Table{Name: name, Rows: make([]Row, 0, len(rows))}
	seen := make(map[string]bool)
	for _, r := range rows {
		clean := make(Row, len(r))
		for k, v := range r {
			k = strings.TrimSpace(k)
			clean[k] = v
			if !seen[k] {
				seen[k] = true
				t.Columns = append(t.Columns, k)
			}
		}
		t.Rows = append(t.Rows, clean)
	}
	orderColumns(t.Columns)
	coerceYears(t)
	return t
}

func emptyTable(name DatasetName) *Table {
	return &Table{Name: name}
}

// Empty reports whether the table has no rows. A nil table is empty.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Len returns the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Has reports whether column is part of the table schema.
func (t *Table) Has(column string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// isLong reports whether the table is in (country, year, category, kt) form.
func (t *Table) isLong() bool {
	return t.Has(colCategory) && t.Has(colKt)
}
