package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forest-guardian/geotile-dataset/internal/cache"
	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/properties"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unitSquare = `{"type": "FeatureCollection", "features": [
	{"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 1], [0, 0]]]}},
	{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [0.5, 0.5]}}
]}`

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := properties.Config{
		Grid: properties.Grid{Precision: 1},
		Plan: properties.Plan{IntervalDays: 30, SamplingRate: 1},
	}
	return NewRouter(NewHandler(cfg, cache.NewFileCacheAt[coverage.Set](t.TempDir())))
}

func post(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := setupRouter(t)
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, w.Body.String())
}

func TestPostCoverage(t *testing.T) {
	router := setupRouter(t)

	w := post(t, router, "/v1/coverage", map[string]interface{}{"aoi": json.RawMessage(unitSquare)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp CoverageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 1, resp.Precision)
	assert.Equal(t, coverage.Intersecting, resp.Mode)
	assert.Equal(t, []string{"s"}, resp.Cells)
	assert.Equal(t, 1, resp.IgnoredFeatures)
	assert.False(t, resp.Cached)

	w = post(t, router, "/v1/coverage", map[string]interface{}{"aoi": json.RawMessage(unitSquare)})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)

	w = post(t, router, "/v1/coverage", map[string]interface{}{"aoi": json.RawMessage(unitSquare), "precision": 2, "coarse_precision": 1})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 32, resp.Count)

	w = post(t, router, "/v1/coverage", map[string]interface{}{"aoi": json.RawMessage(unitSquare), "mode": "contained"})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Cells)
}

func TestPostCoverageErrors(t *testing.T) {
	router := setupRouter(t)
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing aoi", map[string]interface{}{"precision": 3}},
		{"bad precision", map[string]interface{}{"aoi": json.RawMessage(unitSquare), "precision": 13}},
		{"bad mode", map[string]interface{}{"aoi": json.RawMessage(unitSquare), "mode": "outer"}},
		{"point aoi", map[string]interface{}{"aoi": json.RawMessage(`{"type": "Point", "coordinates": [0, 0]}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, router, "/v1/coverage", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestPostPlan(t *testing.T) {
	router := setupRouter(t)
	body := map[string]interface{}{
		"aoi":   json.RawMessage(unitSquare),
		"start": "2021-01-01",
		"end":   "2021-03-02",
		"seed":  42,
		"pois":  []map[string]interface{}{{"lon": 0.5, "lat": 0.5, "date": "2021-01-15"}},
	}
	w := post(t, router, "/v1/plan", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Coverage)
	assert.Equal(t, 2, resp.Summary.Background)
	assert.Equal(t, 1, resp.Summary.POI)
	require.Len(t, resp.Requests, 3)
	last := resp.Requests[2]
	assert.True(t, last.IsPOI)
	assert.Equal(t, "s", last.Geohash)
	assert.Equal(t, "2021-01-15", last.DateStart)
	assert.Equal(t, "2021-02-14", last.DateEnd)

	again := post(t, router, "/v1/plan", body)
	var second PlanResponse
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &second))
	assert.Equal(t, resp.Requests, second.Requests)
	assert.NotEqual(t, resp.ID, second.ID)
}

func TestPostPlanErrors(t *testing.T) {
	router := setupRouter(t)
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"bad start", map[string]interface{}{"aoi": json.RawMessage(unitSquare), "start": "yesterday", "end": "2021-03-02"}},
		{"bad rate", map[string]interface{}{"aoi": json.RawMessage(unitSquare), "start": "2021-01-01", "end": "2021-03-02", "sampling_rate": 1.5}},
		{"bad poi date", map[string]interface{}{"aoi": json.RawMessage(unitSquare), "start": "2021-01-01", "end": "2021-03-02", "pois": []map[string]interface{}{{"lon": 0.5, "lat": 0.5, "date": "soon"}}}},
		{"missing end", map[string]interface{}{"aoi": json.RawMessage(unitSquare), "start": "2021-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, router, "/v1/plan", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestPostRasterize(t *testing.T) {
	router := setupRouter(t)
	w := post(t, router, "/v1/rasterize", map[string]interface{}{"points": [][2]float64{{1, 1}, {1, 1}}, "precision": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp RasterizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"s0"}, resp.Cells)

	w = post(t, router, "/v1/rasterize", map[string]interface{}{"points": [][2]float64{{1, 1}, {200, 1}}, "precision": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
