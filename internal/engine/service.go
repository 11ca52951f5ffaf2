package engine

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"

	"github.com/spf13/cast"

	"ewaste/internal/logging"
	"ewaste/internal/metrics"
	"ewaste/internal/models"
)

// Metric selects heatmap values: raw kt or share of total generation.
type Metric string

const (
	MetricKt    Metric = "kt"
	MetricShare Metric = "share"
)

// Service answers dashboard queries against the registry's datasets.
type Service struct {
	reg      *Registry
	resolver *Resolver
	params   Params
}

func NewService(reg *Registry, params Params) *Service {
	return &Service{reg: reg, resolver: NewResolver(reg), params: params}
}

// Registry exposes the dataset registry, e.g. for warm-up.
func (s *Service) Registry() *Registry { return s.reg }

// Params returns the recoverable-value model constants in use.
func (s *Service) Params() Params { return s.params }

// miss records a failed lookup. A no-source outcome is logged louder since it
// points at a deployment without data rather than a bad query.
func (s *Service) miss(err error, country string, year *int) error {
	ev := logging.Debug()
	kind := "not_found"
	if errors.Is(err, ErrNoSource) {
		ev = logging.Warn()
		kind = "no_source"
	}
	if year != nil {
		ev = ev.Int("year", *year)
	}
	ev.Err(err).Str("country", country).Msg("lookup miss")
	metrics.LookupMisses.WithLabelValues(kind).Inc()
	return err
}

func (s *Service) macroRow(country string, year *int) (Row, error) {
	t, err := s.resolver.Resolve(MacroChain)
	if err != nil {
		return nil, s.miss(err, country, year)
	}
	row, err := First(t, country, year)
	if err != nil {
		return nil, s.miss(err, country, year)
	}
	return row, nil
}

func (s *Service) macroSeries(country string) ([]Row, error) {
	t, err := s.resolver.Resolve(MacroChain)
	if err != nil {
		return nil, s.miss(err, country, nil)
	}
	rows := Select(t, country, nil)
	if len(rows) == 0 {
		return nil, s.miss(&NotFoundError{Country: country, Dataset: t.Name}, country, nil)
	}
	return Series(rows), nil
}

// macroList is the year-filtered macro table; no source yields no rows.
func (s *Service) macroList(year *int) []Row {
	t, err := s.resolver.Resolve(MacroChain)
	if err != nil {
		s.miss(err, "", year)
		return nil
	}
	return FilterYear(t, year)
}

func (s *Service) kpi(row Row) models.KPIStats {
	generated := Number(row, GeneratedKt)
	return models.KPIStats{
		Country:                   CountryOf(row),
		Year:                      YearOf(row),
		EWasteGeneratedKt:         generated,
		EWasteGeneratedPerCapita:  Number(row, GeneratedPerCapita),
		EWasteCollectionRate:      Number(row, CollectionRate),
		EWasteFormallyCollectedKt: Number(row, FormallyCollected),
		ValueRecoverableUSD:       s.params.RecoverableUSD(generated),
	}
}

// KPI returns headline statistics for one country, optionally for one year.
func (s *Service) KPI(country string, year *int) (*models.KPIStats, error) {
	row, err := s.macroRow(country, year)
	if err != nil {
		return nil, err
	}
	k := s.kpi(row)
	return &k, nil
}

// KPIBulk resolves several countries at once. Countries without a match are
// listed in Missing; they never fail the batch.
func (s *Service) KPIBulk(countries []string, year *int) *models.KPIStatsBulk {
	out := &models.KPIStatsBulk{Rows: make([]models.KPIStats, 0, len(countries)), Missing: make([]string, 0)}

	t, err := s.resolver.Resolve(MacroChain)
	if err != nil {
		s.miss(err, "", year)
		out.Missing = append(out.Missing, countries...)
		return out
	}

	for _, c := range countries {
		row, err := First(t, c, year)
		if err != nil {
			s.miss(err, c, year)
			out.Missing = append(out.Missing, c)
			continue
		}
		out.Rows = append(out.Rows, s.kpi(row))
	}
	return out
}

// Tonnage is the yearly generated kt series for a country.
func (s *Service) Tonnage(country string) ([]models.Tonnage, error) {
	rows, err := s.macroSeries(country)
	if err != nil {
		return nil, err
	}
	out := make([]models.Tonnage, len(rows))
	for i, r := range rows {
		out[i] = models.Tonnage{Country: Text(r, colCountry), Year: YearOf(r), EWasteGeneratedKt: Number(r, GeneratedKt)}
	}
	return out, nil
}

// PerCapita is the yearly per-inhabitant series with GDP for context.
func (s *Service) PerCapita(country string) ([]models.PerCapita, error) {
	rows, err := s.macroSeries(country)
	if err != nil {
		return nil, err
	}
	out := make([]models.PerCapita, len(rows))
	for i, r := range rows {
		out[i] = models.PerCapita{
			Country:                  Text(r, colCountry),
			Year:                     YearOf(r),
			EWasteGeneratedPerCapita: Number(r, GeneratedPerCapita),
			GDPPerCapita:             Number(r, GDPPerCapita),
		}
	}
	return out, nil
}

// FormalCollection is the yearly formally collected kt series.
func (s *Service) FormalCollection(country string) ([]models.FormalCollection, error) {
	rows, err := s.macroSeries(country)
	if err != nil {
		return nil, err
	}
	out := make([]models.FormalCollection, len(rows))
	for i, r := range rows {
		out[i] = models.FormalCollection{Country: Text(r, colCountry), Year: YearOf(r), EWasteFormallyCollectedKt: Number(r, FormallyCollected)}
	}
	return out, nil
}

// PlacedMarket is the yearly EEE placed-on-market series.
func (s *Service) PlacedMarket(country string) ([]models.PlacedMarket, error) {
	rows, err := s.macroSeries(country)
	if err != nil {
		return nil, err
	}
	out := make([]models.PlacedMarket, len(rows))
	for i, r := range rows {
		out[i] = models.PlacedMarket{Country: Text(r, colCountry), Year: YearOf(r), EEEPlacedOnMarketKgInh: Number(r, PlacedOnMarket)}
	}
	return out, nil
}

// CollectionRate is the yearly collection-rate series.
func (s *Service) CollectionRate(country string) ([]models.CollectionRate, error) {
	rows, err := s.macroSeries(country)
	if err != nil {
		return nil, err
	}
	out := make([]models.CollectionRate, len(rows))
	for i, r := range rows {
		out[i] = models.CollectionRate{Country: Text(r, colCountry), Year: YearOf(r), EWasteCollectionRate: Number(r, CollectionRate)}
	}
	return out, nil
}

// TimeSeries is the per-capita generation and placed-on-market series.
func (s *Service) TimeSeries(country string) ([]models.TimeSeriesPoint, error) {
	rows, err := s.macroSeries(country)
	if err != nil {
		return nil, err
	}
	out := make([]models.TimeSeriesPoint, len(rows))
	for i, r := range rows {
		out[i] = models.TimeSeriesPoint{
			Year:                   YearOf(r),
			EWasteGeneratedKgInh:   Number(r, GeneratedPerCapita),
			EEEPlacedOnMarketKgInh: Number(r, PlacedOnMarket),
		}
	}
	return out, nil
}

// TimeSeriesFull carries every macro metric per year plus recoverable value.
func (s *Service) TimeSeriesFull(country string) ([]models.TimeSeriesFullPoint, error) {
	rows, err := s.macroSeries(country)
	if err != nil {
		return nil, err
	}
	out := make([]models.TimeSeriesFullPoint, len(rows))
	for i, r := range rows {
		generated := Number(r, GeneratedKt)
		out[i] = models.TimeSeriesFullPoint{
			Year:                      YearOf(r),
			EWasteGeneratedKt:         generated,
			EWasteGeneratedKgInh:      Number(r, GeneratedPerCapita),
			EEEPlacedOnMarketKgInh:    Number(r, PlacedOnMarket),
			EWasteCollectionRate:      Number(r, CollectionRate),
			EWasteFormallyCollectedKt: Number(r, FormallyCollected),
			ValueRecoverableUSD:       s.params.RecoverableUSD(generated),
		}
	}
	return out, nil
}

// Choropleth lists map values for every country, optionally for one year.
func (s *Service) Choropleth(year *int) []models.ChoroplethEntry {
	rows := s.macroList(year)
	out := make([]models.ChoroplethEntry, len(rows))
	for i, r := range rows {
		out[i] = models.ChoroplethEntry{
			Country:                  Text(r, colCountry),
			CountryClean:             Text(r, colCountryClean),
			ISO3:                     Text(r, colISO3),
			Year:                     YearOf(r),
			EWasteGeneratedPerCapita: Number(r, GeneratedPerCapita),
			EWasteGeneratedKt:        Number(r, GeneratedKt),
			EWasteCollectionRate:     Number(r, CollectionRate),
		}
	}
	return out
}

// Scatter lists GDP against per-capita generation for every country.
func (s *Service) Scatter(year *int) []models.ScatterPoint {
	rows := s.macroList(year)
	out := make([]models.ScatterPoint, len(rows))
	for i, r := range rows {
		var population *int64
		if p := Number(r, Population); p != nil && math.Abs(*p) < math.MaxInt64 {
			v := int64(*p)
			population = &v
		}
		out[i] = models.ScatterPoint{
			Country:                  Text(r, colCountry),
			ISO3:                     Text(r, colISO3),
			GDPPerCapita:             Number(r, GDPPerCapita),
			EWasteGeneratedPerCapita: Number(r, GeneratedPerCapita),
			Population:               population,
			EWasteCollectionRate:     Number(r, CollectionRate),
		}
	}
	return out
}

// Categories returns the per-category kt breakdown for a country.
func (s *Service) Categories(country string, year *int) (*models.CategoryBreakdown, error) {
	t, err := s.resolver.Resolve(CategoryChain)
	if err != nil {
		return nil, s.miss(err, country, year)
	}
	row, err := First(t, country, year)
	if err != nil {
		return nil, s.miss(err, country, year)
	}
	return &models.CategoryBreakdown{
		Country:                        CountryOf(row),
		Year:                           YearOf(row),
		TemperatureExchangeEquipmentKt: Number(row, TemperatureExchange.Field()),
		ScreensKt:                      Number(row, Screens.Field()),
		LampsKt:                        Number(row, Lamps.Field()),
		LargeEquipmentKt:               Number(row, LargeEquipment.Field()),
		SmallEquipmentKt:               Number(row, SmallEquipment.Field()),
		SmallITKt:                      Number(row, SmallIT.Field()),
	}, nil
}

// Heatmap lists the category matrix per country-year, as kt or as the share
// of total generation.
func (s *Service) Heatmap(year *int, metric Metric) []models.HeatmapEntry {
	t, err := s.resolver.Resolve(CategoryChain)
	if err != nil {
		s.miss(err, "", year)
		return []models.HeatmapEntry{}
	}

	rows := FilterYear(t, year)
	out := make([]models.HeatmapEntry, len(rows))
	for i, r := range rows {
		total := Number(r, GeneratedKt)
		values := make(map[string]*float64, len(Categories))
		for _, c := range Categories {
			kt := Number(r, c.Field())
			if metric == MetricKt {
				values[c.Column()] = kt
			} else {
				values[c.Column()+"_share"] = Share(kt, total)
			}
		}
		out[i] = models.HeatmapEntry{Country: Text(r, colCountry), ISO3: Text(r, colISO3), Year: YearOf(r), Values: values}
	}
	return out
}

// Sankey decomposes generation into formal, exported, imported and informal
// flows. Unknown inputs are reported as zero so the diagram is always whole.
func (s *Service) Sankey(country string, year *int) (*models.SankeyNodes, error) {
	row, err := s.macroRow(country, year)
	if err != nil {
		return nil, err
	}
	f := InformalResidual(
		Number(row, GeneratedKt),
		Number(row, FormallyCollected),
		Number(row, ExportedKt),
		Number(row, ImportedKt),
	)
	return &models.SankeyNodes{
		GeneratedKt:         f.Generated,
		FormallyCollectedKt: f.FormallyCollected,
		ExportedKt:          f.Exported,
		ImportedKt:          f.Imported,
		InformalKt:          f.Informal,
	}, nil
}

// Scenario projects formal collection changed by deltaPercent.
func (s *Service) Scenario(country string, year *int, deltaPercent float64) (*models.ScenarioResult, error) {
	row, err := s.macroRow(country, year)
	if err != nil {
		return nil, err
	}
	p := s.params.Project(Number(row, FormallyCollected), Number(row, GeneratedKt), deltaPercent)
	return &models.ScenarioResult{
		Country:                 CountryOf(row),
		Year:                    YearOf(row),
		BaseFormallyCollectedKt: Finite(p.BaseFormal),
		NewFormallyCollectedKt:  Finite(p.NewFormal),
		DeltaAbsoluteKt:         Finite(p.DeltaAbsolute),
		BaseValueRecoverableUSD: p.BaseValueUSD,
		NewValueRecoverableUSD:  p.NewValueUSD,
	}, nil
}

// tableRows resolves the raw table chain and applies the optional filters.
func (s *Service) tableRows(country string, year *int) (*Table, []Row) {
	t, err := s.resolver.Resolve(TableChain)
	if err != nil {
		s.miss(err, country, year)
		return nil, nil
	}
	return t, Filter(t, country, year)
}

// DataTable pages through raw rows. Total counts every match.
func (s *Service) DataTable(country string, year *int, limit, offset int) *models.DataPage {
	t, rows := s.tableRows(country, year)
	page := &models.DataPage{Total: len(rows), Rows: make([]map[string]any, 0)}
	if t == nil || offset >= len(rows) {
		return page
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	for _, r := range rows[offset:end] {
		page.Rows = append(page.Rows, cleanRow(r, t.Columns))
	}
	return page
}

// Export writes the filtered raw rows as CSV with a header line and returns
// the fingerprint of the dataset they came from (0 when there is none).
func (s *Service) Export(w io.Writer, country string, year *int) (uint64, error) {
	t, rows := s.tableRows(country, year)
	if t == nil {
		return 0, nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return 0, err
	}
	rec := make([]string, len(t.Columns))
	for _, r := range rows {
		for i, c := range t.Columns {
			rec[i] = formatCell(r[c])
		}
		if err := cw.Write(rec); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return t.Fingerprint, cw.Error()
}

func formatCell(v any) string {
	switch x := cleanValue(v).(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return cast.ToString(x)
	}
}
