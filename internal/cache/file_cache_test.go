package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var square = orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

func TestFileCache(t *testing.T) {
	fc := NewFileCache[[]string](t.TempDir(), "cells")
	key := fc.GenerateKey("a", 1)
	assert.Equal(t, key, fc.GenerateKey("a", 1))
	assert.NotEqual(t, key, fc.GenerateKey("a", 2))

	_, ok := fc.Get(key)
	assert.False(t, ok)

	require.NoError(t, fc.Set(key, []string{"s0", "s1"}))
	got, ok := fc.Get(key)
	require.True(t, ok)
	assert.Equal(t, []string{"s0", "s1"}, got)
	assert.NoFileExists(t, filepath.Join(fc.Dir(), key+".json.tmp"))
}

func TestFileCacheRejectsTamperedEntry(t *testing.T) {
	fc := NewFileCacheAt[[]string](t.TempDir())
	require.NoError(t, fc.Set("k", []string{"s0"}))
	tampered := `{"data": ["s1"], "created_at": "2024-01-01T00:00:00Z", "checksum": "0"}`
	require.NoError(t, os.WriteFile(filepath.Join(fc.Dir(), "k.json"), []byte(tampered), 0644))

	_, ok := fc.Get("k")
	assert.False(t, ok)
}

type countingGeometry struct {
	calls int
}

func (g *countingGeometry) Test(polygon orb.Polygon, cell orb.Bound, mode coverage.Mode) bool {
	g.calls++
	return coverage.PlanarGeometry{}.Test(polygon, cell, mode)
}

func TestCachedCover(t *testing.T) {
	fc := NewFileCacheAt[coverage.Set](t.TempDir())
	geometry := &countingGeometry{}
	g := coverage.Generator{Geometry: geometry}

	first, hit, err := CachedCover(fc, g, square, 2, 0, coverage.Intersecting)
	require.NoError(t, err)
	assert.False(t, hit)
	calls := geometry.calls
	assert.Positive(t, calls)

	second, hit, err := CachedCover(fc, g, square, 2, 0, coverage.Intersecting)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, geometry.calls)

	_, hit, err = CachedCover(fc, g, square, 2, 0, coverage.Contained)
	require.NoError(t, err)
	assert.False(t, hit)

	_, _, err = CachedCover(fc, g, square, 13, 0, coverage.Intersecting)
	assert.Error(t, err)
}
