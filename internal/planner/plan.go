// Package planner turns a coverage and a date range into fetch requests.
//
// Background requests are the product of every covered cell and every
// interval, shuffled with a seeded generator and cut down to the sampling
// rate. Points of interest add their own requests on top; these are never
// merged with the background list because the two feed different dataset
// partitions.
package planner

import (
	"math"
	"math/rand"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/geoerr"
	"github.com/forest-guardian/geotile-dataset/internal/utils"
	"github.com/paulmach/orb"
)

const DateLayout = "2006-01-02"

// Interval is the half open day range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) String() string {
	return "[" + i.Start.Format(DateLayout) + ", " + i.End.Format(DateLayout) + ")"
}

type Request struct {
	Geohash  string
	Interval Interval
	IsPOI    bool
}

type POI struct {
	Position orb.Point
	Date     time.Time
}

type Params struct {
	Start        time.Time
	End          time.Time
	IntervalDays int
	SamplingRate float64
	Seed         int64

	POIs           []POI
	ExpansionRings int
	// SampleExpansion applies SamplingRate to cells added by the expansion
	// rings. Cells holding a point of interest are always kept.
	SampleExpansion bool
}

func (p Params) validate() error {
	if math.IsNaN(p.SamplingRate) || p.SamplingRate < 0 || p.SamplingRate > 1 {
		return geoerr.Validation("sampling rate", "%v is outside [0, 1]", p.SamplingRate)
	}
	if p.IntervalDays < 1 {
		return geoerr.Validation("interval days", "%d is less than one day", p.IntervalDays)
	}
	if utils.Day(p.End).Before(utils.Day(p.Start)) {
		return geoerr.Validation("date range", "end %s is before start %s", p.End.Format(DateLayout), p.Start.Format(DateLayout))
	}
	if p.ExpansionRings < 0 {
		return geoerr.Validation("expansion rings", "%d is negative", p.ExpansionRings)
	}
	return nil
}

// Plan returns the background requests followed by the point of interest
// requests. Identical inputs and seed give an identical list.
func Plan(cov coverage.Set, p Params) ([]Request, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(p.Seed))

	requests := Background(cov, Intervals(p.Start, p.End, p.IntervalDays), p.SamplingRate, rng)
	if len(p.POIs) == 0 {
		return requests, nil
	}

	poiRequests, err := pointsOfInterest(cov, p, rng)
	if err != nil {
		return nil, err
	}
	return append(requests, poiRequests...), nil
}

// Intervals splits [start, end) into consecutive intervals of days length.
// A trailing partial interval is dropped.
func Intervals(start, end time.Time, days int) []Interval {
	start, end = utils.Day(start), utils.Day(end)
	if days < 1 || !end.After(start) {
		return nil
	}
	total := int(end.Sub(start).Hours() / 24)
	n := total / days

	intervals := make([]Interval, 0, n)
	for i := 0; i < n; i++ {
		s := start.AddDate(0, 0, i*days)
		intervals = append(intervals, Interval{Start: s, End: s.AddDate(0, 0, days)})
	}
	return intervals
}

// Background builds the interval major product of cells and intervals,
// shuffles it with rng and keeps floor(n*rate) requests.
func Background(cov coverage.Set, intervals []Interval, rate float64, rng *rand.Rand) []Request {
	requests := make([]Request, 0, len(cov.Cells)*len(intervals))
	for _, interval := range intervals {
		for _, cell := range cov.Cells {
			requests = append(requests, Request{Geohash: cell, Interval: interval})
		}
	}
	return sample(requests, rate, rng)
}

func sample[T any](items []T, rate float64, rng *rand.Rand) []T {
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	keep := int(math.Floor(float64(len(items)) * rate))
	return items[:keep]
}
