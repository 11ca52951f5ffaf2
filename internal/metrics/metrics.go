package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dataset and lookup instrumentation, exported at /metrics.
var (
	DatasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ewaste_dataset_loads_total",
			Help: "Dataset load attempts by outcome (loaded, missing, error)",
		},
		[]string{"dataset", "outcome"},
	)

	DatasetRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ewaste_dataset_rows",
			Help: "Rows held in memory per dataset",
		},
		[]string{"dataset"},
	)

	SourceResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ewaste_source_resolutions_total",
			Help: "Dataset picked by each resolution chain; dataset=none when every tier was empty",
		},
		[]string{"chain", "dataset"},
	)

	LookupMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ewaste_lookup_misses_total",
			Help: "Queries that matched no row (not_found) or had no dataset (no_source)",
		},
		[]string{"kind"},
	)
)
