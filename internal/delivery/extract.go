package delivery

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forest-guardian/geotile-dataset/internal/aoi"
	"github.com/forest-guardian/geotile-dataset/internal/crops"
	"github.com/forest-guardian/geotile-dataset/internal/trajectory"
	"github.com/paulmach/orb/geojson"
	"github.com/schollz/progressbar/v3"
)

type TrajectoryOptions struct {
	InputDir   string
	OutputFile string
	Precision  int
	Progress   bool
}

// ExtractTrajectories unpacks every swarm archive of the input directory,
// rasterizes its trajectories and writes one table for all of them. It
// returns the number of rows written.
func ExtractTrajectories(opts TrajectoryOptions) (int, error) {
	tempDir, err := os.MkdirTemp("", "hysplit-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(tempDir)

	swarms, err := trajectory.ExtractArchives(opts.InputDir, tempDir)
	if err != nil {
		return 0, err
	}
	if len(swarms) == 0 {
		return 0, fmt.Errorf("no swarm archives in %s", opts.InputDir)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.Default(int64(len(swarms)), "Rasterizing swarms")
	} else {
		bar = progressbar.DefaultSilent(int64(len(swarms)), "Rasterizing swarms")
	}

	rows := make([]trajectory.Row, 0)
	for _, swarm := range swarms {
		trajectories, err := trajectory.LoadSwarm(tempDir, swarm)
		if err != nil {
			return 0, fmt.Errorf("swarm %s: %w", swarm, err)
		}
		for _, t := range trajectories {
			tagged, err := trajectory.Tag(t, opts.Precision)
			if err != nil {
				return 0, err
			}
			rows = append(rows, tagged...)
		}
		bar.Add(1)
	}

	err = createFile(opts.OutputFile, func(f *os.File) error {
		return trajectory.WriteRows(f, rows)
	})
	return len(rows), err
}

type CropOptions struct {
	InputFile  string
	OutputFile string
	crops.Options
}

func ExtractCrops(opts CropOptions) (int, error) {
	in, err := os.Open(opts.InputFile)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	rows, err := crops.Extract(in, opts.Options)
	if err != nil {
		return 0, err
	}
	err = createFile(opts.OutputFile, func(f *os.File) error {
		return crops.WriteRows(f, opts.Columns, rows)
	})
	return len(rows), err
}

// ConvertPOIs turns a CSV of dated locations into a GeoJSON file usable as
// the points of interest of a plan.
func ConvertPOIs(inputFile, outputFile string, columns aoi.CSVColumns) (int, error) {
	in, err := os.Open(inputFile)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	fc, err := aoi.POIsFromCSV(in, columns)
	if err != nil {
		return 0, err
	}
	err = createFile(outputFile, func(f *os.File) error {
		return writeFeatureCollection(f, fc)
	})
	return len(fc.Features), err
}

func writeFeatureCollection(f *os.File, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

func createFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
