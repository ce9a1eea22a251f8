package delivery

import (
	"context"
	"fmt"

	"github.com/forest-guardian/geotile-dataset/internal/fetch"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/sentinel"
)

type DatasetOptions struct {
	OutDir     string
	Collection sentinel.Collection
	Precision  int
	Workers    int
	Seed       int64
	Progress   bool
}

// CreateDataset downloads every request into opts.OutDir. metadata.json is
// written before the first download and rewritten with the summary at the
// end.
func CreateDataset(ctx context.Context, fetcher fetch.Fetcher, notifier fetch.Notifier, requests []planner.Request, opts DatasetOptions) (fetch.Metadata, error) {
	meta := fetch.NewMetadata(opts.Collection, opts.Precision, requests)
	if err := fetch.WriteMetadata(opts.OutDir, meta); err != nil {
		return meta, fmt.Errorf("failed to write metadata: %w", err)
	}

	executor := &fetch.Executor{
		Fetcher:  fetcher,
		OutDir:   opts.OutDir,
		Workers:  opts.Workers,
		Seed:     opts.Seed,
		Notifier: notifier,
		Progress: opts.Progress,
	}
	summary, runErr := executor.Run(ctx, requests)
	meta.Summary = &summary
	if err := fetch.WriteMetadata(opts.OutDir, meta); err != nil {
		return meta, fmt.Errorf("failed to write metadata: %w", err)
	}
	return meta, runErr
}

// PrecisionOf returns the geohash length shared by the requests, or an error
// when they mix precisions.
func PrecisionOf(requests []planner.Request) (int, error) {
	precision := 0
	for _, r := range requests {
		if precision == 0 {
			precision = len(r.Geohash)
			continue
		}
		if len(r.Geohash) != precision {
			return 0, fmt.Errorf("requests mix precisions %d and %d", precision, len(r.Geohash))
		}
	}
	return precision, nil
}
