package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/forest-guardian/geotile-dataset/internal/aoi"
	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/delivery"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/ui"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

type coverFlags struct {
	aoi       string
	precision int
	coarse    int
	mode      string
	reclip    bool
	noCache   bool
}

func (f *coverFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.aoi, "aoi", "", "GeoJSON file whose first feature is the area of interest polygon")
	cmd.Flags().IntVar(&f.precision, "precision", 0, "target geohash precision (default GEOTILE_PRECISION)")
	cmd.Flags().IntVar(&f.coarse, "coarse-precision", -1, "precision of the exact pass, 0 for the target precision (default GEOTILE_COARSE_PRECISION)")
	cmd.Flags().StringVar(&f.mode, "mode", string(coverage.Intersecting), "intersecting or contained")
	cmd.Flags().BoolVar(&f.reclip, "reclip", false, "re-test every refined cell against the polygon")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "always recompute the coverage")
}

func (f *coverFlags) options() (delivery.CoverOptions, error) {
	mode, err := coverage.ParseMode(f.mode)
	if err != nil {
		return delivery.CoverOptions{}, err
	}
	opts := delivery.CoverOptions{
		Precision:       f.precision,
		CoarsePrecision: f.coarse,
		Mode:            mode,
		Reclip:          f.reclip,
	}
	if opts.Precision == 0 {
		opts.Precision = cfg.Grid.Precision
	}
	if opts.CoarsePrecision < 0 {
		opts.CoarsePrecision = cfg.Grid.CoarsePrecision
	}
	return opts, nil
}

func (f *coverFlags) loadAOI() (orb.Polygon, error) {
	if f.aoi == "" {
		return nil, fmt.Errorf("--aoi is required")
	}
	area, err := aoi.LoadAOI(f.aoi)
	if err != nil {
		return nil, err
	}
	if area.IgnoredFeatures > 0 {
		ui.PrintWarning(fmt.Sprintf("%s: only the first feature is used, %d more ignored", f.aoi, area.IgnoredFeatures))
	}
	return area.Polygon, nil
}

func (f *coverFlags) cover() (orb.Polygon, coverage.Set, error) {
	polygon, err := f.loadAOI()
	if err != nil {
		return nil, coverage.Set{}, err
	}
	opts, err := f.options()
	if err != nil {
		return nil, coverage.Set{}, err
	}
	set, cached, err := delivery.Cover(polygon, opts, coverageCache(f.noCache))
	if err != nil {
		return nil, coverage.Set{}, err
	}
	source := "computed"
	if cached {
		source = "cached"
	}
	ui.PrintInfof("Coverage: %d cells at precision %d (%s, %s)", set.Len(), set.Precision, set.Mode, source)
	return polygon, set, nil
}

type planFlags struct {
	coverFlags
	pois            string
	start           string
	end             string
	intervalDays    int
	samplingRate    float64
	seed            int64
	expansionRings  int
	sampleExpansion bool
}

func (f *planFlags) register(cmd *cobra.Command) {
	f.coverFlags.register(cmd)
	cmd.Flags().StringVar(&f.pois, "pois", "", "GeoJSON file of dated Point features")
	cmd.Flags().StringVar(&f.start, "start", "", "first day of the date range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "day after the date range (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.intervalDays, "interval-days", 0, "length of each interval (default GEOTILE_INTERVAL_DAYS)")
	cmd.Flags().Float64Var(&f.samplingRate, "sampling-rate", -1, "fraction of background requests to keep (default GEOTILE_SAMPLING_RATE)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (default GEOTILE_SEED)")
	cmd.Flags().IntVar(&f.expansionRings, "expansion-rings", 0, "rings of neighbours added around each point of interest cell")
	cmd.Flags().BoolVar(&f.sampleExpansion, "sample-expansion", false, "apply the sampling rate to expansion cells")
}

func (f *planFlags) params(cmd *cobra.Command) (planner.Params, error) {
	if f.start == "" || f.end == "" {
		return planner.Params{}, fmt.Errorf("--start and --end are required")
	}
	start, err := aoi.ParseDate(f.start)
	if err != nil {
		return planner.Params{}, err
	}
	end, err := aoi.ParseDate(f.end)
	if err != nil {
		return planner.Params{}, err
	}
	params := planner.Params{
		Start:           start,
		End:             end,
		IntervalDays:    f.intervalDays,
		SamplingRate:    f.samplingRate,
		Seed:            f.seed,
		ExpansionRings:  f.expansionRings,
		SampleExpansion: f.sampleExpansion,
	}
	if params.IntervalDays == 0 {
		params.IntervalDays = cfg.Plan.IntervalDays
	}
	if params.SamplingRate < 0 {
		params.SamplingRate = cfg.Plan.SamplingRate
	}
	if !cmd.Flags().Changed("seed") {
		params.Seed = cfg.Plan.Seed
	}
	if f.pois != "" {
		if params.POIs, err = aoi.LoadPOIs(f.pois); err != nil {
			return planner.Params{}, err
		}
	}
	return params, nil
}

func (f *planFlags) plan(cmd *cobra.Command) (orb.Polygon, coverage.Set, []planner.Request, error) {
	params, err := f.params(cmd)
	if err != nil {
		return nil, coverage.Set{}, nil, err
	}
	polygon, set, err := f.cover()
	if err != nil {
		return nil, coverage.Set{}, nil, err
	}
	requests, err := planner.Plan(set, params)
	if err != nil {
		return nil, coverage.Set{}, nil, err
	}
	s := planner.Summarize(requests)
	ui.PrintInfof("Plan: %d background and %d point of interest requests over %d cells", s.Background, s.POI, s.Cells)
	return polygon, set, requests, nil
}

// isRequestList tells a saved request list apart from a GeoJSON document.
func isRequestList(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.TrimSpace(string(data)), "["), nil
}
