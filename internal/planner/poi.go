package planner

import (
	"math/rand"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/forest-guardian/geotile-dataset/internal/utils"
)

type cellDates map[string]map[time.Time]struct{}

func (c cellDates) add(cell string, date time.Time) {
	dates, ok := c[cell]
	if !ok {
		dates = make(map[time.Time]struct{})
		c[cell] = dates
	}
	dates[date] = struct{}{}
}

// GroupPOIs encodes points of interest at the coverage precision and groups
// their dates by cell. Points dated outside [start, end] or falling outside
// the coverage are dropped.
func GroupPOIs(cov coverage.Set, pois []POI, start, end time.Time) (map[string][]time.Time, error) {
	grouped, err := groupPOIs(cov, pois, utils.Day(start), utils.Day(end))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]time.Time, len(grouped))
	for cell, dates := range grouped {
		out[cell] = utils.GetSortedKeys(dates, true)
	}
	return out, nil
}

func groupPOIs(cov coverage.Set, pois []POI, start, end time.Time) (cellDates, error) {
	grouped := make(cellDates)
	if cov.Len() == 0 {
		return grouped, nil
	}
	for _, poi := range pois {
		date := utils.Day(poi.Date)
		if date.Before(start) || date.After(end) {
			continue
		}
		cell, err := grid.Encode(poi.Position, cov.Precision)
		if err != nil {
			return nil, err
		}
		if !cov.Contains(cell) {
			continue
		}
		grouped.add(cell, date)
	}
	return grouped, nil
}

// Expand grows the cell set by rings of neighbours, keeping only cells in the
// coverage. A cell reached by expansion takes the dates of the cells it grew
// from; cells already present keep their own dates.
func Expand(cov coverage.Set, exact map[string][]time.Time, rings int) (map[string][]time.Time, error) {
	seeds := make(cellDates, len(exact))
	for cell, dates := range exact {
		for _, d := range dates {
			seeds.add(cell, d)
		}
	}
	expanded, err := expand(cov, seeds, rings)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]time.Time, len(expanded))
	for cell, dates := range expanded {
		out[cell] = utils.GetSortedKeys(dates, true)
	}
	return out, nil
}

func expand(cov coverage.Set, exact cellDates, rings int) (cellDates, error) {
	current := make(cellDates, len(exact))
	for cell, dates := range exact {
		for d := range dates {
			current.add(cell, d)
		}
	}

	for ring := 0; ring < rings; ring++ {
		next := make(cellDates, len(current))
		for cell, dates := range current {
			for d := range dates {
				next.add(cell, d)
			}
		}
		for _, cell := range utils.SortedCells(current) {
			neighbors, err := grid.Neighbors(cell)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if _, ok := exact[n]; ok || !cov.Contains(n) {
					continue
				}
				for d := range current[cell] {
					next.add(n, d)
				}
			}
		}
		current = next
	}
	return current, nil
}

func pointsOfInterest(cov coverage.Set, p Params, rng *rand.Rand) ([]Request, error) {
	exact, err := groupPOIs(cov, p.POIs, utils.Day(p.Start), utils.Day(p.End))
	if err != nil {
		return nil, err
	}
	if len(exact) == 0 {
		return []Request{}, nil
	}

	all, err := expand(cov, exact, p.ExpansionRings)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]struct{}, len(all))
	var padding []string
	for _, cell := range utils.SortedCells(all) {
		if _, ok := exact[cell]; ok {
			keep[cell] = struct{}{}
			continue
		}
		padding = append(padding, cell)
	}
	if p.SampleExpansion {
		padding = sample(padding, p.SamplingRate, rng)
	}
	for _, cell := range padding {
		keep[cell] = struct{}{}
	}

	var requests []Request
	for _, cell := range utils.SortedCells(keep) {
		for _, date := range utils.GetSortedKeys(all[cell], true) {
			requests = append(requests, Request{
				Geohash:  cell,
				Interval: Interval{Start: date, End: date.AddDate(0, 0, p.IntervalDays)},
				IsPOI:    true,
			})
		}
	}
	return requests, nil
}
