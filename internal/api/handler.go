// Package api exposes coverage, planning and rasterization over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/forest-guardian/geotile-dataset/internal/aoi"
	"github.com/forest-guardian/geotile-dataset/internal/cache"
	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/delivery"
	"github.com/forest-guardian/geotile-dataset/internal/geoerr"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/properties"
	"github.com/forest-guardian/geotile-dataset/internal/rasterize"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

type Handler struct {
	defaults properties.Config
	cache    cache.CacheService[coverage.Set]
}

// NewHandler serves requests with cfg filling in omitted parameters. c may be
// nil to disable the coverage cache.
func NewHandler(cfg properties.Config, c cache.CacheService[coverage.Set]) *Handler {
	return &Handler{defaults: cfg, cache: c}
}

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"*"}
	r.Use(cors.New(config))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	v1 := r.Group("/v1")
	{
		v1.POST("/coverage", h.PostCoverage)
		v1.POST("/plan", h.PostPlan)
		v1.POST("/rasterize", h.PostRasterize)
	}
	return r
}

type CoverageRequest struct {
	// AOI is a GeoJSON FeatureCollection, Feature or Polygon.
	AOI             json.RawMessage `json:"aoi" binding:"required"`
	Precision       int             `json:"precision"`
	CoarsePrecision int             `json:"coarse_precision"`
	Mode            string          `json:"mode"`
	Reclip          bool            `json:"reclip"`
}

type CoverageResponse struct {
	ID              string        `json:"id"`
	Precision       int           `json:"precision"`
	Mode            coverage.Mode `json:"mode"`
	Count           int           `json:"count"`
	Cells           []string      `json:"cells"`
	Cached          bool          `json:"cached"`
	IgnoredFeatures int           `json:"ignored_features"`
}

type PointOfInterest struct {
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
	Date string  `json:"date"`
}

type PlanRequest struct {
	CoverageRequest
	Start           string            `json:"start" binding:"required"`
	End             string            `json:"end" binding:"required"`
	IntervalDays    int               `json:"interval_days"`
	SamplingRate    *float64          `json:"sampling_rate"`
	Seed            *int64            `json:"seed"`
	POIs            []PointOfInterest `json:"pois"`
	ExpansionRings  int               `json:"expansion_rings"`
	SampleExpansion bool              `json:"sample_expansion"`
}

type PlanResponse struct {
	ID       string           `json:"id"`
	Coverage int              `json:"coverage"`
	Summary  planner.Summary  `json:"summary"`
	Requests []planner.Record `json:"requests"`
}

type RasterizeRequest struct {
	Points    [][2]float64 `json:"points" binding:"required"`
	Precision int          `json:"precision"`
}

type RasterizeResponse struct {
	Precision int      `json:"precision"`
	Cells     []string `json:"cells"`
}

// PostCoverage POST /v1/coverage
func (h *Handler) PostCoverage(c *gin.Context) {
	var req CoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON format: "+err.Error())
		return
	}
	set, cached, area, err := h.cover(req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CoverageResponse{
		ID:              uuid.NewString(),
		Precision:       set.Precision,
		Mode:            set.Mode,
		Count:           set.Len(),
		Cells:           set.Cells,
		Cached:          cached,
		IgnoredFeatures: area.IgnoredFeatures,
	})
}

// PostPlan POST /v1/plan
func (h *Handler) PostPlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON format: "+err.Error())
		return
	}
	params, err := h.planParams(req)
	if err != nil {
		fail(c, err)
		return
	}
	set, _, _, err := h.cover(req.CoverageRequest)
	if err != nil {
		fail(c, err)
		return
	}
	requests, err := planner.Plan(set, params)
	if err != nil {
		fail(c, err)
		return
	}

	records := make([]planner.Record, 0, len(requests))
	for _, r := range requests {
		records = append(records, r.Record())
	}
	c.JSON(http.StatusOK, PlanResponse{
		ID:       uuid.NewString(),
		Coverage: set.Len(),
		Summary:  planner.Summarize(requests),
		Requests: records,
	})
}

// PostRasterize POST /v1/rasterize
func (h *Handler) PostRasterize(c *gin.Context) {
	var req RasterizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON format: "+err.Error())
		return
	}
	precision := req.Precision
	if precision == 0 {
		precision = h.defaults.Grid.Precision
	}
	points := make([]orb.Point, 0, len(req.Points))
	for _, p := range req.Points {
		points = append(points, orb.Point{p[0], p[1]})
	}
	cells, err := rasterize.Path(points, rasterize.GeohashLattice{Precision: precision})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RasterizeResponse{Precision: precision, Cells: cells})
}

func (h *Handler) cover(req CoverageRequest) (coverage.Set, bool, aoi.AOI, error) {
	area, err := aoi.ParseAOI(req.AOI)
	if err != nil {
		return coverage.Set{}, false, area, err
	}
	opts := delivery.CoverOptions{
		Precision:       req.Precision,
		CoarsePrecision: req.CoarsePrecision,
		Mode:            coverage.Intersecting,
		Reclip:          req.Reclip,
	}
	if opts.Precision == 0 {
		opts.Precision = h.defaults.Grid.Precision
		if opts.CoarsePrecision == 0 {
			opts.CoarsePrecision = h.defaults.Grid.CoarsePrecision
		}
	}
	if req.Mode != "" {
		if opts.Mode, err = coverage.ParseMode(req.Mode); err != nil {
			return coverage.Set{}, false, area, err
		}
	}
	set, cached, err := delivery.Cover(area.Polygon, opts, h.cache)
	return set, cached, area, err
}

func (h *Handler) planParams(req PlanRequest) (planner.Params, error) {
	start, err := aoi.ParseDate(req.Start)
	if err != nil {
		return planner.Params{}, geoerr.Validation("start", "%v", err)
	}
	end, err := aoi.ParseDate(req.End)
	if err != nil {
		return planner.Params{}, geoerr.Validation("end", "%v", err)
	}
	params := planner.Params{
		Start:           start,
		End:             end,
		IntervalDays:    req.IntervalDays,
		SamplingRate:    h.defaults.Plan.SamplingRate,
		Seed:            h.defaults.Plan.Seed,
		ExpansionRings:  req.ExpansionRings,
		SampleExpansion: req.SampleExpansion,
	}
	if params.IntervalDays == 0 {
		params.IntervalDays = h.defaults.Plan.IntervalDays
	}
	if req.SamplingRate != nil {
		params.SamplingRate = *req.SamplingRate
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}
	for i, p := range req.POIs {
		date, err := aoi.ParseDate(p.Date)
		if err != nil {
			return planner.Params{}, geoerr.Validation("pois", "point %d: %v", i, err)
		}
		params.POIs = append(params.POIs, planner.POI{Position: orb.Point{p.Lon, p.Lat}, Date: date})
	}
	return params, nil
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": message,
	})
}

func fail(c *gin.Context, err error) {
	if errors.Is(err, geoerr.ErrValidation) || errors.Is(err, geoerr.ErrRange) {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": err.Error(),
	})
}
