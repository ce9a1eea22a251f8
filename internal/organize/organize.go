// Package organize turns a fetched dataset directory into per band files
// named the way Sentinel-2 products are, split into positive (points of
// interest) and negative (background) label directories.
package organize

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/fetch"
	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

const qualityBand = "QA60"

type Options struct {
	DownloadDir   string
	OutDir        string
	PositiveLabel string
	NegativeLabel string
	// Flatten writes every file straight into OutDir.
	Flatten      bool
	CopyMetadata bool
	Workers      int
	Progress     bool
}

type Summary struct {
	Sources int
	Files   int
	Skipped int
	Errors  []string
}

func (s Summary) String() string {
	return fmt.Sprintf("%d downloads organised into %d files, %d entries skipped, %d errors",
		s.Sources, s.Files, s.Skipped, len(s.Errors))
}

type source struct {
	path  string
	label string
}

// Tile is a downloaded file name split into its parts.
type Tile struct {
	Geohash string
	Date    time.Time
	Ext     string
}

// ParseTileName reads names of the form <geohash>_<YYYY-MM-DD>.<ext>.
func ParseTileName(name string) (Tile, error) {
	ext := filepath.Ext(name)
	id, date, ok := strings.Cut(strings.TrimSuffix(name, ext), "_")
	if !ok {
		return Tile{}, fmt.Errorf("%q is not named <geohash>_<date>", name)
	}
	if err := grid.Validate(id); err != nil {
		return Tile{}, err
	}
	d, err := time.Parse(planner.DateLayout, date)
	if err != nil {
		return Tile{}, fmt.Errorf("bad date in %q: %w", name, err)
	}
	return Tile{Geohash: id, Date: d, Ext: strings.ToLower(ext)}, nil
}

// SceneTime renders a date the way Sentinel-2 product names do.
func SceneTime(d time.Time) string {
	return d.Format("20060102") + "T000000"
}

// NormalizeBand pads single digit band names, B1 becoming B01.
func NormalizeBand(band string) string {
	if len(band) == 2 && band[0] == 'B' {
		return band[:1] + "0" + band[1:]
	}
	return band
}

// BandFileName is the output name of one band of a tile.
func BandFileName(t Tile, band string) string {
	return fmt.Sprintf("%s_%s_%s.tif", t.Geohash, SceneTime(t.Date), NormalizeBand(band))
}

// Run organises every download under DownloadDir/area and DownloadDir/poi.
// A bad download is reported in the summary and does not stop the others.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.PositiveLabel == "" {
		opts.PositiveLabel = "positive"
	}
	if opts.NegativeLabel == "" {
		opts.NegativeLabel = "negative"
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	sources, err := listSources(opts)
	if err != nil {
		return Summary{}, err
	}

	var (
		mu      sync.Mutex
		summary = Summary{Sources: len(sources)}
		bar     *progressbar.ProgressBar
	)
	if opts.Progress {
		bar = progressbar.Default(int64(len(sources)), "Organising downloads")
	} else {
		bar = progressbar.DefaultSilent(int64(len(sources)), "Organising downloads")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dest := opts.OutDir
			if !opts.Flatten {
				dest = filepath.Join(opts.OutDir, src.label)
			}
			written, skipped, err := organizeOne(src.path, dest)
			mu.Lock()
			defer mu.Unlock()
			summary.Files += written
			summary.Skipped += skipped
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", filepath.Base(src.path), err))
			}
			bar.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	if opts.CopyMetadata {
		from := filepath.Join(opts.DownloadDir, fetch.MetadataFile)
		if _, err := os.Stat(from); err == nil {
			if err := copyFile(from, filepath.Join(opts.OutDir, fetch.MetadataFile)); err != nil {
				return summary, err
			}
		}
	}
	return summary, nil
}

func listSources(opts Options) ([]source, error) {
	var sources []source
	found := false
	for _, dir := range []struct{ name, label string }{
		{fetch.AreaDir, opts.NegativeLabel},
		{fetch.POIDir, opts.PositiveLabel},
	} {
		entries, err := os.ReadDir(filepath.Join(opts.DownloadDir, dir.name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		for _, entry := range entries {
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if entry.IsDir() || (ext != ".zip" && ext != ".tif") {
				continue
			}
			sources = append(sources, source{path: filepath.Join(opts.DownloadDir, dir.name, entry.Name()), label: dir.label})
		}
	}
	if !found {
		return nil, fmt.Errorf("%s has neither an %s nor a %s directory", opts.DownloadDir, fetch.AreaDir, fetch.POIDir)
	}
	return sources, nil
}

func organizeOne(path, dest string) (written, skipped int, err error) {
	tile, err := ParseTileName(filepath.Base(path))
	if err != nil {
		return 0, 0, err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, 0, err
	}
	if tile.Ext == ".tif" {
		name := fmt.Sprintf("%s_%s.tif", tile.Geohash, SceneTime(tile.Date))
		if err := copyFile(path, filepath.Join(dest, name)); err != nil {
			return 0, 0, err
		}
		return 1, 0, nil
	}
	return extractBands(path, tile, dest)
}

// extractBands copies the <id>.<band>.tif entries of an archive, leaving out
// the cloud mask band.
func extractBands(path string, tile Tile, dest string) (written, skipped int, err error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		parts := strings.Split(filepath.Base(f.Name), ".")
		if len(parts) != 3 {
			skipped++
			continue
		}
		band := parts[1]
		if band == qualityBand {
			skipped++
			continue
		}
		if err := copyEntry(f, filepath.Join(dest, BandFileName(tile, band))); err != nil {
			return written, skipped, err
		}
		written++
	}
	return written, skipped, nil
}

func copyEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeFrom(rc, target)
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFrom(in, to)
}

func writeFrom(r io.Reader, target string) error {
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
