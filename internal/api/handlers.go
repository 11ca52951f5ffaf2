package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ewaste/internal/engine"
	"ewaste/internal/logging"
	"ewaste/internal/validation"
)

type Handler struct {
	svc *engine.Service
}

func NewHandler(svc *engine.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ew := e.Group("/ewaste")
	ew.GET("/stats", h.GetStats)
	ew.GET("/stats_multiple", h.GetStatsMultiple)
	ew.GET("/ton", h.GetTonnage)
	ew.GET("/percapita", h.GetPerCapita)
	ew.GET("/formal_recolect", h.GetFormalCollection)
	ew.GET("/placed_market", h.GetPlacedMarket)
	ew.GET("/colection_rate", h.GetCollectionRate)
	ew.GET("/time_series", h.GetTimeSeries)
	ew.GET("/time_series_full", h.GetTimeSeriesFull)
	ew.GET("/choropleth", h.GetChoropleth)
	ew.GET("/categories", h.GetCategories)
	ew.GET("/heatmap", h.GetHeatmap)
	ew.GET("/sankey", h.GetSankey)
	ew.GET("/scatter", h.GetScatter)
	ew.GET("/scenario", h.GetScenario)

	data := e.Group("/data")
	data.GET("/table", h.GetDataTable)
	data.GET("/export", h.GetExport)
}

// --- QUERIES ---

type countryQuery struct {
	Country string `query:"country" validate:"required"`
}

type pointQuery struct {
	Country string `query:"country" validate:"required"`
	Year    *int   `query:"-"`
}

type bulkQuery struct {
	Countries []string `query:"countries" validate:"required,min=1,dive,required"`
	Year      *int     `query:"-"`
}

type heatmapQuery struct {
	Year   *int   `query:"-"`
	Metric string `query:"metric" validate:"oneof=kt share"`
}

type scenarioQuery struct {
	Country      string  `query:"country" validate:"required"`
	Year         *int    `query:"-"`
	DeltaPercent float64 `query:"delta_percent" validate:"gte=-100,lte=1000"`
}

type tableQuery struct {
	Country string `query:"country"`
	Year    *int   `query:"-"`
	Limit   int    `query:"limit" validate:"min=1,max=1000"`
	Offset  int    `query:"offset" validate:"min=0"`
}

const (
	defaultTableLimit   = 100
	defaultDeltaPercent = 10.0
)

// --- HELPERS ---

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

// bind fills q from the query string, reads the optional year and validates.
// Any failure is answered with 422 before a handler runs.
func bind(c echo.Context, q any, year **int) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, q); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, detail("invalid query parameters"))
	}
	if year != nil {
		y, err := optionalYear(c)
		if err != nil {
			return err
		}
		*year = y
	}
	if verr := validation.ValidateStruct(q); verr != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, detail(verr.Error()))
	}
	return nil
}

func optionalYear(c echo.Context) (*int, error) {
	raw := c.QueryParam("year")
	if raw == "" {
		return nil, nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnprocessableEntity, detail("year must be an integer"))
	}
	return &y, nil
}

// fail maps engine errors onto HTTP. A missing source is a 404 for the client
// but is logged as a deployment problem.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrNoSource):
		logging.Warn().Err(err).Str("path", c.Path()).Msg("no dataset available")
		return c.JSON(http.StatusNotFound, detail("Country/year not found"))
	case errors.Is(err, engine.ErrNotFound):
		return c.JSON(http.StatusNotFound, detail("Country/year not found"))
	default:
		logging.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, detail("internal error"))
	}
}

// getPaginationParams reads limit/offset, falling back to defaults for
// missing or nonsensical values.
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// --- HANDLERS ---

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetStats(c echo.Context) error {
	var q pointQuery
	if err := bind(c, &q, &q.Year); err != nil {
		return err
	}
	out, err := h.svc.KPI(q.Country, q.Year)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetStatsMultiple(c echo.Context) error {
	var q bulkQuery
	if err := bind(c, &q, &q.Year); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.KPIBulk(q.Countries, q.Year))
}

// series adapts the per-country series lookups, which share one shape.
func series[T any](c echo.Context, lookup func(string) ([]T, error)) error {
	var q countryQuery
	if err := bind(c, &q, nil); err != nil {
		return err
	}
	out, err := lookup(q.Country)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetTonnage(c echo.Context) error {
	return series(c, h.svc.Tonnage)
}

func (h *Handler) GetPerCapita(c echo.Context) error {
	return series(c, h.svc.PerCapita)
}

func (h *Handler) GetFormalCollection(c echo.Context) error {
	return series(c, h.svc.FormalCollection)
}

func (h *Handler) GetPlacedMarket(c echo.Context) error {
	return series(c, h.svc.PlacedMarket)
}

func (h *Handler) GetCollectionRate(c echo.Context) error {
	return series(c, h.svc.CollectionRate)
}

func (h *Handler) GetTimeSeries(c echo.Context) error {
	return series(c, h.svc.TimeSeries)
}

func (h *Handler) GetTimeSeriesFull(c echo.Context) error {
	return series(c, h.svc.TimeSeriesFull)
}

func (h *Handler) GetChoropleth(c echo.Context) error {
	year, err := optionalYear(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.Choropleth(year))
}

func (h *Handler) GetScatter(c echo.Context) error {
	year, err := optionalYear(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.Scatter(year))
}

func (h *Handler) GetCategories(c echo.Context) error {
	var q pointQuery
	if err := bind(c, &q, &q.Year); err != nil {
		return err
	}
	out, err := h.svc.Categories(q.Country, q.Year)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetHeatmap(c echo.Context) error {
	q := heatmapQuery{Metric: string(engine.MetricShare)}
	if err := bind(c, &q, &q.Year); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.Heatmap(q.Year, engine.Metric(q.Metric)))
}

func (h *Handler) GetSankey(c echo.Context) error {
	var q pointQuery
	if err := bind(c, &q, &q.Year); err != nil {
		return err
	}
	out, err := h.svc.Sankey(q.Country, q.Year)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetScenario(c echo.Context) error {
	q := scenarioQuery{DeltaPercent: defaultDeltaPercent}
	if err := bind(c, &q, &q.Year); err != nil {
		return err
	}
	out, err := h.svc.Scenario(q.Country, q.Year, q.DeltaPercent)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetDataTable(c echo.Context) error {
	var q tableQuery
	q.Limit, q.Offset = getPaginationParams(c, defaultTableLimit)
	q.Country = c.QueryParam("country")
	year, err := optionalYear(c)
	if err != nil {
		return err
	}
	q.Year = year
	if verr := validation.ValidateStruct(&q); verr != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, detail(verr.Error()))
	}
	return c.JSON(http.StatusOK, h.svc.DataTable(q.Country, q.Year, q.Limit, q.Offset))
}

func (h *Handler) GetExport(c echo.Context) error {
	year, err := optionalYear(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fp, err := h.svc.Export(&buf, c.QueryParam("country"), year)
	if err != nil {
		return fail(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="export.csv"`)
	if fp != 0 {
		res.Header().Set("ETag", `"`+strconv.FormatUint(fp, 16)+`"`)
	}
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
