package trajectory

import (
	"fmt"
	"io"

	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/forest-guardian/geotile-dataset/internal/rasterize"
	"github.com/gocarina/gocsv"
)

type Row struct {
	SwarmID    string `csv:"swarm_id"`
	AltitudeID int    `csv:"altitude_id"`
	Track      string `csv:"track"`
	Date       string `csv:"date"`
	Geohash    string `csv:"geohash"`
	Bounds     string `csv:"bounds"`
}

// Tag rasterizes the trajectory at the given precision. Each crossed cell
// appears once, dated by the first segment that reached it.
func Tag(t Trajectory, precision int) ([]Row, error) {
	if err := grid.ValidatePrecision(precision); err != nil {
		return nil, err
	}
	if len(t.Points) == 0 {
		return nil, nil
	}

	lattice := rasterize.GeohashLattice{Precision: precision}
	seen := make(map[string]struct{})
	var rows []Row

	emit := func(from Point, cells []string) error {
		date := t.Start.Add(from.Offset).Format("2006-01-02")
		for _, cell := range cells {
			if _, ok := seen[cell]; ok {
				continue
			}
			seen[cell] = struct{}{}
			bounds, err := grid.BoundsString(cell)
			if err != nil {
				return err
			}
			rows = append(rows, Row{
				SwarmID:    t.SwarmID,
				AltitudeID: t.AltitudeID,
				Track:      t.Track,
				Date:       date,
				Geohash:    cell,
				Bounds:     bounds,
			})
		}
		return nil
	}

	if len(t.Points) == 1 {
		cells, err := rasterize.Segment(t.Points[0].Position, t.Points[0].Position, lattice)
		if err != nil {
			return nil, err
		}
		if err := emit(t.Points[0], cells); err != nil {
			return nil, err
		}
		return rows, nil
	}
	for i := 1; i < len(t.Points); i++ {
		cells, err := rasterize.Segment(t.Points[i-1].Position, t.Points[i].Position, lattice)
		if err != nil {
			return nil, fmt.Errorf("%s track %s segment %d: %w", t.SwarmID, t.Track, i, err)
		}
		if err := emit(t.Points[i-1], cells); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Cells returns the sorted union of cells crossed by the trajectory.
func Cells(t Trajectory, precision int) ([]string, error) {
	return rasterize.Path(t.Positions(), rasterize.GeohashLattice{Precision: precision})
}

func WriteRows(w io.Writer, rows []Row) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("error writing trajectory table: %w", err)
	}
	return nil
}
