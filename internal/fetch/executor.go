// Package fetch downloads the tiles of a request plan into a dataset
// directory laid out as <out>/area and <out>/poi.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/sentinel"
	"github.com/forest-guardian/geotile-dataset/internal/ui"
	"github.com/gammazero/workerpool"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
)

const (
	AreaDir = "area"
	POIDir  = "poi"
)

type Fetcher interface {
	FetchTile(ctx context.Context, cell string, bound orb.Bound, interval planner.Interval) ([]byte, error)
}

type Notifier interface {
	Success(message string) error
	Error(message string) error
}

type Status string

const (
	Succeeded Status = "succeeded"
	Skipped   Status = "skipped"
	NotFound  Status = "not_found"
	Failed    Status = "failed"
)

type Result struct {
	Request planner.Request
	Path    string
	Status  Status
	Err     error
}

type Summary struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Skipped   int      `json:"skipped"`
	NotFound  int      `json:"not_found"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func (s *Summary) add(r Result) {
	s.Total++
	switch r.Status {
	case Succeeded:
		s.Succeeded++
	case Skipped:
		s.Skipped++
	case NotFound:
		s.NotFound++
	case Failed:
		s.Failed++
		s.Errors = append(s.Errors, fmt.Sprintf("%s %s: %v", r.Request.Geohash, r.Request.Interval, r.Err))
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("%d requests: %d succeeded, %d skipped, %d not found, %d failed",
		s.Total, s.Succeeded, s.Skipped, s.NotFound, s.Failed)
}

// Executor runs requests against a Fetcher on a bounded worker pool. Tiles
// that already exist on disk are skipped, so an interrupted run can be
// resumed with the same plan.
type Executor struct {
	Fetcher  Fetcher
	OutDir   string
	Workers  int
	Seed     int64
	Notifier Notifier
	// Progress draws a progress bar on stdout.
	Progress bool

	mu sync.Mutex
}

// TilePath is where the tile of a request is written.
func TilePath(outDir string, r planner.Request) string {
	dir := AreaDir
	if r.IsPOI {
		dir = POIDir
	}
	return filepath.Join(outDir, dir, fmt.Sprintf("%s_%s.tif", r.Geohash, r.Interval.Start.Format(planner.DateLayout)))
}

// Run fetches every request and returns the per status counts. Requests are
// submitted in a seeded shuffled order so that neighbouring cells do not
// hit the imagery service back to back.
func (e *Executor) Run(ctx context.Context, requests []planner.Request) (Summary, error) {
	if e.Fetcher == nil {
		return Summary{}, errors.New("fetch: no fetcher configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, dir := range []string{AreaDir, POIDir} {
		if err := os.MkdirAll(filepath.Join(e.OutDir, dir), 0755); err != nil {
			return Summary{}, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	order := append([]planner.Request(nil), requests...)
	rng := rand.New(rand.NewSource(e.Seed))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		summary Summary
		bar     *progressbar.ProgressBar
	)
	if e.Progress {
		bar = progressbar.Default(int64(len(order)), "Fetching tiles")
	} else {
		bar = progressbar.DefaultSilent(int64(len(order)), "Fetching tiles")
	}

	wp := workerpool.New(workers)
	for _, r := range order {
		r := r
		wp.Submit(func() {
			result := e.fetchOne(ctx, r)
			mu.Lock()
			summary.add(result)
			bar.Add(1)
			mu.Unlock()
		})
	}
	wp.StopWait()

	e.notify(summary)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (e *Executor) fetchOne(ctx context.Context, r planner.Request) Result {
	path := TilePath(e.OutDir, r)
	result := Result{Request: r, Path: path}

	if _, err := os.Stat(path); err == nil {
		result.Status = Skipped
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Status, result.Err = Failed, err
		return result
	}

	bound, err := grid.BoundingBox(r.Geohash)
	if err != nil {
		result.Status, result.Err = Failed, err
		return result
	}

	image, err := e.Fetcher.FetchTile(ctx, r.Geohash, bound, r.Interval)
	if errors.Is(err, sentinel.ErrImageNotFound) {
		result.Status = NotFound
		return result
	}
	if err != nil {
		result.Status, result.Err = Failed, err
		return result
	}

	if err := writeFile(path, image); err != nil {
		result.Status, result.Err = Failed, err
		return result
	}
	result.Status = Succeeded
	return result
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

func (e *Executor) notify(s Summary) {
	if e.Notifier == nil {
		return
	}
	if s.Failed > 0 {
		message := s.String()
		if len(s.Errors) > 0 {
			message += "\n" + strings.Join(s.Errors[:min(len(s.Errors), 5)], "\n")
		}
		if err := e.Notifier.Error(message); err != nil {
			ui.PrintWarning(fmt.Sprintf("failed to send error notification: %v", err))
		}
		return
	}
	if err := e.Notifier.Success(s.String()); err != nil {
		ui.PrintWarning(fmt.Sprintf("failed to send success notification: %v", err))
	}
}
