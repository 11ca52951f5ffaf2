package engine

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countryYearFixture() *Table {
	return NewTable(CountryYear, []Row{
		{"country": "Brazil", "iso3": "BRA", "year": 2020, "e_waste_generated_kt": 2200.0, "ewaste_generated_kg_inh": 10.4, "e_waste_collection_rate": 0.03, "e_waste_formally_collected_kt": 66.0, "eee_placed_on_market_kg_inh": 12.0, "gdp_per_capita": 6800.0, "population": 212600000.0},
		{"country": "Brazil", "iso3": "BRA", "year": 2019, "E_waste_generated_kt": 2143.5, "E_waste_generated_per_capita": 10.2, "ewaste_management_collection_rate": 0.02, "E_waste_formally_collected_kt": "n/a"},
		{"country": "Chile", "iso3": "CHL", "year": 2019, "e_waste_generated_kt": 186.0, "e_waste_formally_collected_kt": 10.0, "e_waste_exported_kt": 5.0, "e_waste_imported_kt": 1.0},
	})
}

func masterFixture() *Table {
	return NewTable(MasterNormalized, []Row{
		{"country": "Atlantis", "year": 2019, "e_waste_generated_kt": 50.0, "category": "screens", "kt": 5.0},
		{"country": "Atlantis", "year": 2019, "e_waste_generated_kt": nil, "category": "lamps", "kt": 1.0},
		{"country": "Brazil", "year": 2019, "e_waste_generated_kt": 999.0, "category": "screens", "kt": 100.0},
	})
}

func newTestService(tables ...*Table) *Service {
	return NewService(NewStaticRegistry(tables...), DefaultParams())
}

func intp(i int) *int { return &i }

func TestKPI(t *testing.T) {
	svc := newTestService(countryYearFixture())

	k, err := svc.KPI("brazil", intp(2019))
	require.NoError(t, err)

	assert.Equal(t, "Brazil", k.Country)
	require.NotNil(t, k.Year)
	assert.Equal(t, 2019, *k.Year)
	assert.Equal(t, 2143.5, *k.EWasteGeneratedKt)
	assert.Equal(t, 10.2, *k.EWasteGeneratedPerCapita)
	assert.Equal(t, 0.02, *k.EWasteCollectionRate)
	assert.Nil(t, k.EWasteFormallyCollectedKt, "malformed value is null, not zero")
	assert.InDelta(t, 2143.5*1000*0.02*2000, *k.ValueRecoverableUSD, 1e-3)
}

func TestKPIWithoutYearTakesFirstSourceRow(t *testing.T) {
	svc := newTestService(countryYearFixture())
	k, err := svc.KPI("Brazil", nil)
	require.NoError(t, err)
	assert.Equal(t, 2020, *k.Year)
}

func TestKPINotFound(t *testing.T) {
	svc := newTestService(countryYearFixture())

	_, err := svc.KPI("Brazil", intp(1990))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrNoSource))
}

func TestKPINoSource(t *testing.T) {
	svc := newTestService()

	_, err := svc.KPI("Brazil", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSource)
	assert.ErrorIs(t, err, ErrNotFound, "no source surfaces as not found")

	var ns *NoSourceError
	require.ErrorAs(t, err, &ns)
	assert.Equal(t, "macro", ns.Chain)
}

func TestMacroFallbackDoesNotMix(t *testing.T) {
	// country_year exists but is empty; Atlantis only lives in master_normalized.
	svc := newTestService(NewTable(CountryYear, nil), masterFixture())

	k, err := svc.KPI("Atlantis", intp(2019))
	require.NoError(t, err)
	assert.Equal(t, 50.0, *k.EWasteGeneratedKt)
	assert.Nil(t, k.EWasteGeneratedPerCapita)

	// Brazil values come from master_normalized alone, never from country_year.
	k, err = svc.KPI("Brazil", nil)
	require.NoError(t, err)
	assert.Equal(t, 999.0, *k.EWasteGeneratedKt)
}

func TestMacroChainPrefersCountryYear(t *testing.T) {
	svc := newTestService(countryYearFixture(), masterFixture())

	_, err := svc.KPI("Atlantis", nil)
	assert.ErrorIs(t, err, ErrNotFound, "no cross-source merge once country_year resolves")
}

func TestKPIBulk(t *testing.T) {
	svc := newTestService(countryYearFixture())

	for _, input := range [][]string{{"Brazil", "Atlantis"}, {"Atlantis", "Brazil"}} {
		out := svc.KPIBulk(input, intp(2019))
		assert.Equal(t, []string{"Atlantis"}, out.Missing)
		require.Len(t, out.Rows, 1)
		assert.Equal(t, "Brazil", out.Rows[0].Country)
	}
}

func TestKPIBulkNoSource(t *testing.T) {
	out := newTestService().KPIBulk([]string{"Brazil", "Chile"}, nil)
	assert.Empty(t, out.Rows)
	assert.NotNil(t, out.Rows)
	assert.Equal(t, []string{"Brazil", "Chile"}, out.Missing)
}

func TestSeriesEndpoints(t *testing.T) {
	svc := newTestService(countryYearFixture())

	ton, err := svc.Tonnage("BRAZIL")
	require.NoError(t, err)
	require.Len(t, ton, 2)
	assert.Equal(t, 2019, *ton[0].Year)
	assert.Equal(t, 2143.5, *ton[0].EWasteGeneratedKt)
	assert.Equal(t, 2020, *ton[1].Year)

	pc, err := svc.PerCapita("Brazil")
	require.NoError(t, err)
	assert.Equal(t, 10.2, *pc[0].EWasteGeneratedPerCapita)
	assert.Nil(t, pc[0].GDPPerCapita)
	assert.Equal(t, 6800.0, *pc[1].GDPPerCapita)

	fc, err := svc.FormalCollection("Brazil")
	require.NoError(t, err)
	assert.Nil(t, fc[0].EWasteFormallyCollectedKt)
	assert.Equal(t, 66.0, *fc[1].EWasteFormallyCollectedKt)

	pm, err := svc.PlacedMarket("Brazil")
	require.NoError(t, err)
	assert.Nil(t, pm[0].EEEPlacedOnMarketKgInh)
	assert.Equal(t, 12.0, *pm[1].EEEPlacedOnMarketKgInh)

	cr, err := svc.CollectionRate("Brazil")
	require.NoError(t, err)
	assert.Equal(t, 0.02, *cr[0].EWasteCollectionRate)

	ts, err := svc.TimeSeries("Brazil")
	require.NoError(t, err)
	assert.Equal(t, 10.2, *ts[0].EWasteGeneratedKgInh)

	full, err := svc.TimeSeriesFull("Brazil")
	require.NoError(t, err)
	require.Len(t, full, 2)
	assert.InDelta(t, 2200.0*40000, *full[1].ValueRecoverableUSD, 1e-3)

	_, err = svc.Tonnage("Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChoroplethAndScatter(t *testing.T) {
	svc := newTestService(countryYearFixture())

	all := svc.Choropleth(nil)
	assert.Len(t, all, 3)

	in2019 := svc.Choropleth(intp(2019))
	require.Len(t, in2019, 2)
	assert.Equal(t, "BRA", *in2019[0].ISO3)
	assert.Nil(t, in2019[0].CountryClean)

	scatter := svc.Scatter(intp(2020))
	require.Len(t, scatter, 1)
	require.NotNil(t, scatter[0].Population)
	assert.Equal(t, int64(212600000), *scatter[0].Population)

	assert.Empty(t, svc.Scatter(intp(1990)))
	assert.Empty(t, newTestService().Choropleth(nil))
}

func TestCategoriesFromLongTable(t *testing.T) {
	long := NewTable(CategoryLong, []Row{
		{"country": "Brazil", "year": 2019, "category": "screens", "kt": 100.0},
		{"country": "Brazil", "year": 2019, "category": "small_it", "kt": 50.0},
	})
	svc := newTestService(long, masterFixture())

	c, err := svc.Categories("brazil", intp(2019))
	require.NoError(t, err)
	assert.Equal(t, "Brazil", c.Country)
	assert.Equal(t, 100.0, *c.ScreensKt)
	assert.Equal(t, 50.0, *c.SmallITKt)
	assert.Nil(t, c.LampsKt)
}

func TestCategoriesFallbackChain(t *testing.T) {
	// category_long empty -> master_normalized (long, pivoted)
	svc := newTestService(masterFixture())
	c, err := svc.Categories("Atlantis", nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, *c.ScreensKt)
	assert.Equal(t, 1.0, *c.LampsKt)

	// both empty -> master_final_fallback (wide)
	fallback := NewTable(MasterFinalFallback, []Row{
		{"country": "Chile", "year": 2019, "screens_kt": 3.0, "lamps_kt": "bad"},
	})
	svc = newTestService(fallback)
	c, err = svc.Categories("chile", intp(2019))
	require.NoError(t, err)
	assert.Equal(t, 3.0, *c.ScreensKt)
	assert.Nil(t, c.LampsKt)

	_, err = newTestService().Categories("Chile", nil)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestHeatmap(t *testing.T) {
	long := NewTable(CategoryLong, []Row{
		{"country": "Brazil", "iso3": "BRA", "year": 2019, "category": "screens", "kt": 50.0, "e_waste_generated_kt": 500.0},
		{"country": "Brazil", "iso3": "BRA", "year": 2019, "category": "lamps", "kt": 10.0, "e_waste_generated_kt": 500.0},
		{"country": "Chile", "year": 2019, "category": "screens", "kt": 5.0},
		{"country": "Chile", "year": 2020, "category": "screens", "kt": 6.0},
	})
	svc := newTestService(long)

	kt := svc.Heatmap(intp(2019), MetricKt)
	require.Len(t, kt, 2)
	assert.Equal(t, 50.0, *kt[0].Values["screens_kt"])
	assert.Contains(t, kt[0].Values, "small_it_kt")
	assert.Nil(t, kt[0].Values["small_it_kt"])

	share := svc.Heatmap(intp(2019), MetricShare)
	require.Len(t, share, 2)
	assert.InDelta(t, 0.1, *share[0].Values["screens_kt_share"], 1e-12)
	assert.InDelta(t, 0.02, *share[0].Values["lamps_kt_share"], 1e-12)
	assert.Nil(t, share[1].Values["screens_kt_share"], "no total, no share")
	assert.Len(t, share[0].Values, len(Categories))

	assert.Len(t, svc.Heatmap(nil, MetricKt), 3)
	assert.Empty(t, newTestService().Heatmap(nil, MetricShare))
}

func TestSankey(t *testing.T) {
	svc := newTestService(countryYearFixture())

	s, err := svc.Sankey("Chile", intp(2019))
	require.NoError(t, err)
	assert.Equal(t, 186.0, s.GeneratedKt)
	assert.Equal(t, 10.0, s.FormallyCollectedKt)
	assert.Equal(t, 5.0, s.ExportedKt)
	assert.Equal(t, 1.0, s.ImportedKt)
	assert.Equal(t, 172.0, s.InformalKt)

	// Missing flows are zero, never null.
	s, err = svc.Sankey("Brazil", intp(2019))
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.FormallyCollectedKt)
	assert.Equal(t, 2143.5, s.InformalKt)

	_, err = svc.Sankey("Atlantis", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScenario(t *testing.T) {
	svc := newTestService(NewTable(CountryYear, []Row{
		{"country": "Testland", "year": 2019, "e_waste_formally_collected_kt": 100.0, "e_waste_generated_kt": 120.0},
	}))

	r, err := svc.Scenario("testland", intp(2019), 50)
	require.NoError(t, err)
	assert.Equal(t, "Testland", r.Country)
	assert.Equal(t, 100.0, *r.BaseFormallyCollectedKt)
	assert.Equal(t, 120.0, *r.NewFormallyCollectedKt)
	assert.Equal(t, 20.0, *r.DeltaAbsoluteKt)
	assert.InDelta(t, 4_000_000, *r.BaseValueRecoverableUSD, 1e-6)
	assert.InDelta(t, 4_800_000, *r.NewValueRecoverableUSD, 1e-6)

	_, err = svc.Scenario("Atlantis", nil, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDataTable(t *testing.T) {
	svc := newTestService(masterFixture())

	page := svc.DataTable("", nil, 2, 0)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "Atlantis", page.Rows[0]["country"])
	assert.Contains(t, page.Rows[1], "e_waste_generated_kt")
	assert.Nil(t, page.Rows[1]["e_waste_generated_kt"])

	page = svc.DataTable("brazil", intp(2019), 10, 0)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 2019, page.Rows[0]["year"])

	page = svc.DataTable("", nil, 10, 5)
	assert.Equal(t, 3, page.Total)
	assert.Empty(t, page.Rows)

	page = newTestService().DataTable("", nil, 10, 0)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Rows)
}

func TestExport(t *testing.T) {
	master := masterFixture()
	master.Fingerprint = 0xabc
	svc := newTestService(master)

	var buf bytes.Buffer
	fp, err := svc.Export(&buf, "Atlantis", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xabc), fp)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"country", "year", "category", "e_waste_generated_kt", "kt"}, records[0])
	assert.Equal(t, []string{"Atlantis", "2019", "screens", "50", "5"}, records[1])
	assert.Equal(t, []string{"Atlantis", "2019", "lamps", "", "1"}, records[2])

	buf.Reset()
	fp, err = newTestService().Export(&buf, "", nil)
	require.NoError(t, err)
	assert.Zero(t, fp)
	assert.Empty(t, buf.String())
}
