// Package delivery wires the tiling core to its collaborators. The command
// line and the HTTP API both go through it.
package delivery

import (
	"github.com/forest-guardian/geotile-dataset/internal/cache"
	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/paulmach/orb"
)

type CoverOptions struct {
	Precision       int
	CoarsePrecision int
	Mode            coverage.Mode
	Reclip          bool
}

// Cover computes the coverage of polygon, going through c when it is not
// nil. The boolean reports a cache hit.
func Cover(polygon orb.Polygon, opts CoverOptions, c cache.CacheService[coverage.Set]) (coverage.Set, bool, error) {
	g := coverage.Generator{Reclip: opts.Reclip}
	if c == nil {
		set, err := g.Cover(polygon, opts.Precision, opts.CoarsePrecision, opts.Mode)
		return set, false, err
	}
	return cache.CachedCover(c, g, polygon, opts.Precision, opts.CoarsePrecision, opts.Mode)
}

// CoverAndPlan covers polygon and plans requests over the coverage.
func CoverAndPlan(polygon orb.Polygon, opts CoverOptions, params planner.Params, c cache.CacheService[coverage.Set]) (coverage.Set, []planner.Request, error) {
	set, _, err := Cover(polygon, opts, c)
	if err != nil {
		return coverage.Set{}, nil, err
	}
	requests, err := planner.Plan(set, params)
	if err != nil {
		return set, nil, err
	}
	return set, requests, nil
}
