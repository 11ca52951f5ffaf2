package engine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ewaste/internal/logging"
	"ewaste/internal/metrics"
)

// View selects how a dataset is presented to a query.
type View int

const (
	// Raw is the table as loaded.
	Raw View = iota
	// Macro has one row per (country, year); long tables are collapsed.
	Macro
	// Wide has one <category>_kt column per category; long tables are pivoted.
	Wide
)

func (v View) String() string {
	switch v {
	case Macro:
		return "macro"
	case Wide:
		return "wide"
	default:
		return "raw"
	}
}

type viewKey struct {
	name DatasetName
	view View
}

// Registry owns every dataset. Each one is read from disk at most once per
// process and kept, together with its derived views, until exit. A missing
// or unreadable file yields an empty table so resolution moves on to the next
// source.
type Registry struct {
	dir string

	mu     sync.RWMutex
	tables map[viewKey]*Table
	group  singleflight.Group
}

// NewRegistry reads datasets lazily from dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, tables: make(map[viewKey]*Table)}
}

// NewStaticRegistry serves the given tables and treats every other dataset as
// empty. It never touches the filesystem.
func NewStaticRegistry(tables ...*Table) *Registry {
	r := &Registry{tables: make(map[viewKey]*Table)}
	for _, name := range AllDatasets {
		r.tables[viewKey{name, Raw}] = emptyTable(name)
	}
	for _, t := range tables {
		r.tables[viewKey{t.Name, Raw}] = t
	}
	return r
}

// Dir is the data directory, empty for a static registry.
func (r *Registry) Dir() string { return r.dir }

// Load returns the raw dataset.
func (r *Registry) Load(name DatasetName) *Table {
	return r.View(name, Raw)
}

// View returns the dataset in the requested shape, computing it once.
func (r *Registry) View(name DatasetName, view View) *Table {
	key := viewKey{name, view}

	r.mu.RLock()
	t, ok := r.tables[key]
	r.mu.RUnlock()
	if ok {
		return t
	}

	v, _, _ := r.group.Do(string(name)+"/"+view.String(), func() (any, error) {
		r.mu.RLock()
		t, ok := r.tables[key]
		r.mu.RUnlock()
		if ok {
			return t, nil
		}

		switch view {
		case Macro:
			t = collapseMacro(r.Load(name))
		case Wide:
			t = pivotCategories(r.Load(name))
		default:
			t = r.read(name)
		}

		r.mu.Lock()
		r.tables[key] = t
		r.mu.Unlock()
		return t, nil
	})
	return v.(*Table)
}

// Warm loads every dataset; used to move file reads off the request path.
func (r *Registry) Warm() {
	start := time.Now()
	rows := 0
	for _, name := range AllDatasets {
		rows += r.Load(name).Len()
	}
	logging.Info().Int("rows", rows).Dur("elapsed", time.Since(start)).Msg("datasets warmed")
}

func (r *Registry) read(name DatasetName) *Table {
	stem, ok := datasetFiles[name]
	if !ok || r.dir == "" {
		return emptyTable(name)
	}

	for _, ext := range datasetExtensions {
		path := filepath.Join(r.dir, stem+ext)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		start := time.Now()
		t, err := LoadTable(path, name)
		if err != nil {
			logging.Warn().Err(err).Str("dataset", string(name)).Str("path", path).Msg("dataset unreadable, treating as empty")
			metrics.DatasetLoads.WithLabelValues(string(name), "error").Inc()
			return emptyTable(name)
		}

		logging.Info().
			Str("dataset", string(name)).
			Str("path", path).
			Int("rows", t.Len()).
			Int("columns", len(t.Columns)).
			Str("fingerprint", strconv.FormatUint(t.Fingerprint, 16)).
			Dur("elapsed", time.Since(start)).
			Msg("dataset loaded")
		metrics.DatasetLoads.WithLabelValues(string(name), "loaded").Inc()
		metrics.DatasetRows.WithLabelValues(string(name)).Set(float64(t.Len()))
		return t
	}

	logging.Debug().Str("dataset", string(name)).Str("dir", r.dir).Msg("dataset file not found")
	metrics.DatasetLoads.WithLabelValues(string(name), "missing").Inc()
	return emptyTable(name)
}
