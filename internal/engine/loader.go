package engine

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
)

// Extensions tried, in order, for each dataset file stem.
var datasetExtensions = []string{".json", ".csv"}

// Cell text that loads as null, matching the usual CSV missing markers.
var missingMarkers = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true, "-nan": true, "#n/a": true,
}

// leadingColumns come first when the source has no column order of its own.
var leadingColumns = []string{colCountry, colCountryClean, colISO3, colYear}

// LoadTable reads one dataset file (.json array of records or .csv with a
// header row). Column names are trimmed and the year column is coerced to a
// nullable integer.
func LoadTable(path string, name DatasetName) (*Table, error) {
	// A. Read File
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// B. Decode by format
	var t *Table
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		t, err = decodeRecords(content)
	case ".csv":
		t, err = decodeCSV(content)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// C. Normalize
	t.Name = name
	t.Fingerprint = xxh3.Hash(content)
	coerceYears(t)
	return t, nil
}

func decodeRecords(content []byte) (*Table, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return &Table{}, nil
	}

	var records []map[string]any
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, err
	}

	t := &Table{Rows: make([]Row, 0, len(records))}
	seen := make(map[string]bool)
	for _, rec := range records {
		row := make(Row, len(rec))
		for k, v := range rec {
			k = strings.TrimSpace(k)
			row[k] = v
			if !seen[k] {
				seen[k] = true
				t.Columns = append(t.Columns, k)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	orderColumns(t.Columns)
	return t, nil
}

func decodeCSV(content []byte) (*Table, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(h)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(Row, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = parseCell(rec[i])
			} else {
				row[col] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// parseCell infers a CSV cell type: missing marker, number, or text.
func parseCell(s string) any {
	if missingMarkers[strings.ToLower(strings.TrimSpace(s))] {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}

// coerceYears rewrites the year column in place to int or nil.
func coerceYears(t *Table) {
	if !t.Has(colYear) {
		return
	}
	for _, row := range t.Rows {
		if v, ok := row[colYear]; ok {
			row[colYear] = toYear(v)
		}
	}
}

// toYear returns an int for integral numeric values and nil otherwise.
func toYear(v any) any {
	if y, ok := v.(int); ok {
		return y
	}
	f, ok := ToFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	return int(f)
}

func orderColumns(cols []string) {
	rank := func(c string) int {
		for i, l := range leadingColumns {
			if c == l {
				return i
			}
		}
		return len(leadingColumns)
	}
	sort.SliceStable(cols, func(i, j int) bool {
		ri, rj := rank(cols[i]), rank(cols[j])
		if ri != rj {
			return ri < rj
		}
		return cols[i] < cols[j]
	})
}
