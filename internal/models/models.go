package models

import (
	"github.com/goccy/go-json"
)

// Every numeric field is a pointer: null means unknown, never zero.

type KPIStats struct {
	Country                   string   `json:"country"`
	Year                      *int     `json:"year"`
	EWasteGeneratedKt         *float64 `json:"e_waste_generated_kt"`
	EWasteGeneratedPerCapita  *float64 `json:"e_waste_generated_per_capita"`
	EWasteCollectionRate      *float64 `json:"e_waste_collection_rate"`
	EWasteFormallyCollectedKt *float64 `json:"e_waste_formally_collected_kt"`
	ValueRecoverableUSD       *float64 `json:"value_recoverable_usd"`
}

// KPIStatsBulk answers a multi-country query; Missing lists the inputs with
// no matching row.
type KPIStatsBulk struct {
	Rows    []KPIStats `json:"rows"`
	Missing []string   `json:"missing"`
}

type ChoroplethEntry struct {
	Country                  *string  `json:"country"`
	CountryClean             *string  `json:"country_clean"`
	ISO3                     *string  `json:"iso3"`
	Year                     *int     `json:"year"`
	EWasteGeneratedPerCapita *float64 `json:"e_waste_generated_per_capita"`
	EWasteGeneratedKt        *float64 `json:"e_waste_generated_kt"`
	EWasteCollectionRate     *float64 `json:"e_waste_collection_rate"`
}

type TimeSeriesPoint struct {
	Year                   *int     `json:"year"`
	EWasteGeneratedKgInh   *float64 `json:"ewaste_generated_kg_inh"`
	EEEPlacedOnMarketKgInh *float64 `json:"eee_placed_on_market_kg_inh"`
}

type TimeSeriesFullPoint struct {
	Year                      *int     `json:"year"`
	EWasteGeneratedKt         *float64 `json:"e_waste_generated_kt"`
	EWasteGeneratedKgInh      *float64 `json:"ewaste_generated_kg_inh"`
	EEEPlacedOnMarketKgInh    *float64 `json:"eee_placed_on_market_kg_inh"`
	EWasteCollectionRate      *float64 `json:"e_waste_collection_rate"`
	EWasteFormallyCollectedKt *float64 `json:"e_waste_formally_collected_kt"`
	ValueRecoverableUSD       *float64 `json:"value_recoverable_usd"`
}

type Tonnage struct {
	Country           *string  `json:"country"`
	Year              *int     `json:"year"`
	EWasteGeneratedKt *float64 `json:"e_waste_generated_kt"`
}

type PerCapita struct {
	Country                  *string  `json:"country"`
	Year                     *int     `json:"year"`
	EWasteGeneratedPerCapita *float64 `json:"e_waste_generated_per_capita"`
	GDPPerCapita             *float64 `json:"gdp_per_capita"`
}

type FormalCollection struct {
	Country                   *string  `json:"country"`
	Year                      *int     `json:"year"`
	EWasteFormallyCollectedKt *float64 `json:"e_waste_formally_collected_kt"`
}

type PlacedMarket struct {
	Country                *string  `json:"country"`
	Year                   *int     `json:"year"`
	EEEPlacedOnMarketKgInh *float64 `json:"eee_placed_on_market_kg_inh"`
}

type CollectionRate struct {
	Country              *string  `json:"country"`
	Year                 *int     `json:"year"`
	EWasteCollectionRate *float64 `json:"e_waste_collection_rate"`
}

type CategoryBreakdown struct {
	Country                        string   `json:"country"`
	Year                           *int     `json:"year"`
	TemperatureExchangeEquipmentKt *float64 `json:"temperature_exchange_equipment_kt"`
	ScreensKt                      *float64 `json:"screens_kt"`
	LampsKt                        *float64 `json:"lamps_kt"`
	LargeEquipmentKt               *float64 `json:"large_equipment_kt"`
	SmallEquipmentKt               *float64 `json:"small_equipment_kt"`
	SmallITKt                      *float64 `json:"small_it_kt"`
}

// HeatmapEntry holds one country-year of category values. Values is keyed by
// <category>_kt for the kt metric or <category>_kt_share for the share metric
// and is flattened into the JSON object.
type HeatmapEntry struct {
	Country *string
	ISO3    *string
	Year    *int
	Values  map[string]*float64
}

func (h HeatmapEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.Values)+3)
	for k, v := range h.Values {
		out[k] = v
	}
	out["country"] = h.Country
	out["iso3"] = h.ISO3
	out["year"] = h.Year
	return json.Marshal(out)
}

// SankeyNodes is always complete: missing inputs are reported as zero.
type SankeyNodes struct {
	GeneratedKt         float64 `json:"generated_kt"`
	FormallyCollectedKt float64 `json:"formally_collected_kt"`
	ExportedKt          float64 `json:"exported_kt"`
	ImportedKt          float64 `json:"imported_kt"`
	InformalKt          float64 `json:"informal_kt"`
}

type ScatterPoint struct {
	Country                  *string  `json:"country"`
	ISO3                     *string  `json:"iso3"`
	GDPPerCapita             *float64 `json:"gdp_per_capita"`
	EWasteGeneratedPerCapita *float64 `json:"e_waste_generated_per_capita"`
	Population               *int64   `json:"population"`
	EWasteCollectionRate     *float64 `json:"e_waste_collection_rate"`
}

type ScenarioResult struct {
	Country                 string   `json:"country"`
	Year                    *int     `json:"year"`
	BaseFormallyCollectedKt *float64 `json:"base_formally_collected_kt"`
	NewFormallyCollectedKt  *float64 `json:"new_formally_collected_kt"`
	DeltaAbsoluteKt         *float64 `json:"delta_absolute_kt"`
	BaseValueRecoverableUSD *float64 `json:"base_value_recoverable_usd"`
	NewValueRecoverableUSD  *float64 `json:"new_value_recoverable_usd"`
}

// DataPage is one page of raw dataset rows; Total counts all matches.
type DataPage struct {
	Total int              `json:"total"`
	Rows  []map[string]any `json:"rows"`
}
