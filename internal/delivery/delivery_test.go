package delivery

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/aoi"
	"github.com/forest-guardian/geotile-dataset/internal/cache"
	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/crops"
	"github.com/forest-guardian/geotile-dataset/internal/fetch"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/sentinel"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var square = orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

func day(s string) time.Time {
	d, _ := time.Parse(planner.DateLayout, s)
	return d
}

func TestCover(t *testing.T) {
	opts := CoverOptions{Precision: 1, Mode: coverage.Intersecting}
	set, hit, err := Cover(square, opts, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"s"}, set.Cells)

	fc := cache.NewFileCacheAt[coverage.Set](t.TempDir())
	_, hit, err = Cover(square, opts, fc)
	require.NoError(t, err)
	assert.False(t, hit)
	cached, hit, err := Cover(square, opts, fc)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, set.Cells, cached.Cells)
}

func TestCoverAndPlan(t *testing.T) {
	set, requests, err := CoverAndPlan(square, CoverOptions{Precision: 2, CoarsePrecision: 1, Mode: coverage.Intersecting}, planner.Params{
		Start:        day("2021-01-01"),
		End:          day("2021-03-02"),
		IntervalDays: 30,
		SamplingRate: 1,
	}, nil)
	require.NoError(t, err)
	assert.Len(t, set.Cells, 32)
	assert.Len(t, requests, 64)

	_, _, err = CoverAndPlan(square, CoverOptions{Precision: 1, Mode: coverage.Intersecting}, planner.Params{SamplingRate: 2, IntervalDays: 1}, nil)
	assert.Error(t, err)
}

type stubFetcher struct{}

func (stubFetcher) FetchTile(ctx context.Context, cell string, bound orb.Bound, interval planner.Interval) ([]byte, error) {
	if strings.HasSuffix(cell, "1") {
		return nil, sentinel.ErrImageNotFound
	}
	return []byte("II*\x00"), nil
}

func TestCreateDataset(t *testing.T) {
	out := t.TempDir()
	interval := planner.Interval{Start: day("2021-01-01"), End: day("2021-01-31")}
	requests := []planner.Request{
		{Geohash: "s0", Interval: interval},
		{Geohash: "s1", Interval: interval},
		{Geohash: "s0", Interval: interval, IsPOI: true},
	}

	meta, err := CreateDataset(context.Background(), stubFetcher{}, nil, requests, DatasetOptions{
		OutDir:     out,
		Collection: sentinel.Sentinel2L1C,
		Precision:  2,
		Workers:    2,
	})
	require.NoError(t, err)
	require.NotNil(t, meta.Summary)
	assert.Equal(t, 2, meta.Summary.Succeeded)
	assert.Equal(t, 1, meta.Summary.NotFound)

	stored, err := fetch.ReadMetadata(out)
	require.NoError(t, err)
	assert.Equal(t, meta.PlanID, stored.PlanID)
	assert.Equal(t, "sentinel-2-l1c", stored.Collection)
	require.NotNil(t, stored.Summary)
	assert.Equal(t, 3, stored.Summary.Total)
	assert.FileExists(t, filepath.Join(out, "poi", "s0_2021-01-01.tif"))
}

func TestPrecisionOf(t *testing.T) {
	p, err := PrecisionOf([]planner.Request{{Geohash: "9q8yy"}, {Geohash: "9q8yz"}})
	require.NoError(t, err)
	assert.Equal(t, 5, p)

	p, err = PrecisionOf(nil)
	require.NoError(t, err)
	assert.Zero(t, p)

	_, err = PrecisionOf([]planner.Request{{Geohash: "9q8yy"}, {Geohash: "9q8"}})
	assert.Error(t, err)
}

func TestExtractTrajectories(t *testing.T) {
	input := t.TempDir()
	f, err := os.Create(filepath.Join(input, "swarm_7.zip"))
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range map[string]string{
		"swarm_7_CONTROL.1.txt": "21 05 03 00 00\n1\n9.2 38.1 1000\n24\n",
		"swarm_7_day1.txt":      "11,38.10,9.20,1000\n12,38.30,9.20,1000\nEND\n",
	} {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	outFile := filepath.Join(t.TempDir(), "tables", "trajectories.csv")
	n, err := ExtractTrajectories(TrajectoryOptions{InputDir: input, OutputFile: outFile, Precision: 5})
	require.NoError(t, err)
	assert.Positive(t, n)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "swarm_id,altitude_id,track,date,geohash,bounds", lines[0])
	assert.Len(t, lines, n+1)
	assert.True(t, strings.HasPrefix(lines[1], "swarm_7,1000,1,2021-05-03,"))

	_, err = ExtractTrajectories(TrajectoryOptions{InputDir: t.TempDir(), OutputFile: outFile, Precision: 5})
	assert.Error(t, err)
}

func TestExtractCrops(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "spam.csv")
	require.NoError(t, os.WriteFile(input, []byte("iso3,x,y,whea_a\nETH,38.5,9.5,4\n"), 0644))

	n, err := ExtractCrops(CropOptions{
		InputFile:  input,
		OutputFile: filepath.Join(dir, "crops.csv"),
		Options:    crops.Options{Country: "ETH", Columns: []string{"whea_a"}, Precision: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(filepath.Join(dir, "crops.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "whea_a,geohash,bounds\n4,"))
}

func TestConvertPOIs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sightings.csv")
	require.NoError(t, os.WriteFile(input, []byte("x,y,date\n38.5,9.5,2021-05-03\n,,2021-05-04\n"), 0644))

	n, err := ConvertPOIs(input, filepath.Join(dir, "pois.geojson"), aoi.DefaultCSVColumns)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pois, err := aoi.LoadPOIs(filepath.Join(dir, "pois.geojson"))
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.Equal(t, orb.Point{38.5, 9.5}, pois[0].Position)
	assert.Equal(t, day("2021-05-03"), pois[0].Date)
}

func TestPreview(t *testing.T) {
	dir := t.TempDir()
	set := coverage.Set{Precision: 2, Mode: coverage.Intersecting, Cells: []string{"s0", "s1"}}
	requests := []planner.Request{{Geohash: "s1", Interval: planner.Interval{Start: day("2021-01-01"), End: day("2021-01-31")}, IsPOI: true}}

	require.NoError(t, Preview(square, set, requests, PreviewOptions{
		ImageFile:   filepath.Join(dir, "preview.png"),
		GeoJSONFile: filepath.Join(dir, "preview.geojson"),
		Width:       300,
	}))
	assert.FileExists(t, filepath.Join(dir, "preview.png"))
	assert.FileExists(t, filepath.Join(dir, "preview.geojson"))

	require.NoError(t, Preview(square, set, nil, PreviewOptions{GeoJSONFile: filepath.Join(dir, "cells.geojson")}))
	assert.FileExists(t, filepath.Join(dir, "cells.geojson"))
}
