package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, _ := time.Parse(planner.DateLayout, s)
	return d
}

func TestRenderPreview(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	img, err := RenderPreview([]Layer{
		{Name: "area", Cells: []string{"s00", "s01"}, Color: AreaColor},
		{Name: "poi", Cells: []string{"s01"}, Color: POIColor},
	}, square, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dy(), legendHeight)

	_, err = RenderPreview(nil, nil, 200)
	assert.Error(t, err)
	_, err = RenderPreview([]Layer{{Cells: []string{"s0a"}}}, nil, 200)
	assert.Error(t, err)
	_, err = RenderPreview([]Layer{{Cells: []string{"s0"}}}, nil, 5)
	assert.Error(t, err)
}

func TestCreatePreviewImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview", "cells.png")
	require.NoError(t, CreatePreviewImage([]Layer{{Name: "area", Cells: []string{"s0"}, Color: AreaColor}}, nil, path, 100))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestRequestsFeatureCollection(t *testing.T) {
	interval := func(start string) planner.Interval {
		return planner.Interval{Start: day(start), End: day(start).AddDate(0, 0, 30)}
	}
	fc, err := RequestsFeatureCollection([]planner.Request{
		{Geohash: "s01", Interval: interval("2021-02-01")},
		{Geohash: "s00", Interval: interval("2021-01-01")},
		{Geohash: "s01", Interval: interval("2021-01-01")},
		{Geohash: "s01", Interval: interval("2021-01-10"), IsPOI: true},
	})
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	assert.Equal(t, "s00", fc.Features[0].Properties["geohash"])
	assert.Equal(t, "s01", fc.Features[1].Properties["geohash"])
	assert.Equal(t, []string{"2021-01-01", "2021-02-01"}, fc.Features[1].Properties["dates"])
	assert.Equal(t, false, fc.Features[1].Properties["is_poi"])
	assert.Equal(t, true, fc.Features[2].Properties["is_poi"])

	polygon, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, polygon[0], 5)
}

func TestCreateGeoJSON(t *testing.T) {
	fc, err := CellsFeatureCollection([]string{"s0"}, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cells.geojson")
	require.NoError(t, CreateGeoJSON(fc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Features, 1)
	assert.Equal(t, "s0", decoded.Features[0].Properties["geohash"])
}
