package engine

import (
	"ewaste/internal/logging"
	"ewaste/internal/metrics"
)

// Chain is an ordered list of candidate datasets for one family of queries.
// Adding or removing a fallback tier is an edit to Sources.
type Chain struct {
	Name    string
	View    View
	Sources []DatasetName
}

var (
	// MacroChain serves country-year metrics.
	MacroChain = Chain{Name: "macro", View: Macro, Sources: []DatasetName{CountryYear, MasterNormalized}}
	// CategoryChain serves per-category weights.
	CategoryChain = Chain{Name: "category", View: Wide, Sources: []DatasetName{CategoryLong, MasterNormalized, MasterFinalFallback}}
	// TableChain serves raw row browsing and export.
	TableChain = Chain{Name: "table", View: Raw, Sources: []DatasetName{MasterNormalized, MasterFinalFallback}}
)

// Resolver picks the dataset that answers a query.
type Resolver struct {
	reg *Registry
}

func NewResolver(reg *Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve returns the first non-empty dataset of the chain. All fields of a
// query come from that one dataset; sources are never merged.
func (r *Resolver) Resolve(chain Chain) (*Table, error) {
	for i, name := range chain.Sources {
		t := r.reg.View(name, chain.View)
		if t.Empty() {
			continue
		}
		if i > 0 {
			logging.Debug().Str("chain", chain.Name).Str("dataset", string(name)).Int("tier", i).Msg("resolved from fallback dataset")
		}
		metrics.SourceResolutions.WithLabelValues(chain.Name, string(name)).Inc()
		return t, nil
	}

	metrics.SourceResolutions.WithLabelValues(chain.Name, "none").Inc()
	return nil, &NoSourceError{Chain: chain.Name, Sources: chain.Sources}
}
