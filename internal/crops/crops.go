// Package crops maps gridded crop statistics onto geohash cells.
//
// The input is a SPAM style table where every row is a raster cell given by
// its centroid (x, y) and carrying one column per crop. Each raster cell is
// covered at the requested precision and the crop values are copied to the
// geohash cells it touches. A geohash touched by two raster cells keeps the
// values of the first one.
package crops

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
)

// Raster cell size of the SPAM 5 arc-minute grid.
const (
	CellWidth  = 360.0 / 4320.0
	CellHeight = 180.0 / 2160.0
)

type Options struct {
	// Country keeps only rows whose iso3 column matches. Empty keeps all.
	Country   string
	Columns   []string
	Precision int
}

type Row struct {
	Values  []string
	Geohash string
	Bounds  string
}

// CellBox is the raster cell centred on (x, y).
func CellBox(x, y float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{x - CellWidth/2, y - CellHeight/2},
		Max: orb.Point{x + CellWidth/2, y + CellHeight/2},
	}
}

func Extract(r io.Reader, opts Options) ([]Row, error) {
	if len(opts.Columns) == 0 {
		return nil, fmt.Errorf("at least one crop column is required")
	}
	if err := grid.ValidatePrecision(opts.Precision); err != nil {
		return nil, err
	}
	records, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("error reading crop table: %w", err)
	}

	rows := make([]Row, 0)
	seen := make(map[string]struct{})
	for i, record := range records {
		if opts.Country != "" && record["iso3"] != opts.Country {
			continue
		}
		x, err := column(record, "x", i)
		if err != nil {
			return nil, err
		}
		y, err := column(record, "y", i)
		if err != nil {
			return nil, err
		}
		values := make([]string, 0, len(opts.Columns))
		for _, c := range opts.Columns {
			v, ok := record[c]
			if !ok {
				return nil, fmt.Errorf("row %d: missing crop column %q", i+1, c)
			}
			values = append(values, v)
		}

		cov, err := coverage.Cover(CellBox(x, y).ToPolygon(), opts.Precision, 0, coverage.Intersecting)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		for _, cell := range cov.Cells {
			if _, ok := seen[cell]; ok {
				continue
			}
			seen[cell] = struct{}{}
			bounds, err := grid.BoundsString(cell)
			if err != nil {
				return nil, err
			}
			rows = append(rows, Row{Values: values, Geohash: cell, Bounds: bounds})
		}
	}
	return rows, nil
}

func column(record map[string]string, name string, i int) (float64, error) {
	raw, ok := record[name]
	if !ok {
		return 0, fmt.Errorf("row %d: missing column %q", i+1, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("row %d: bad %s value %q: %w", i+1, name, raw, err)
	}
	return v, nil
}

// WriteRows writes the crop columns followed by geohash and bounds.
func WriteRows(w io.Writer, columns []string, rows []Row) error {
	writer := csv.NewWriter(w)
	header := append(append([]string(nil), columns...), "geohash", "bounds")
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := append(append([]string(nil), row.Values...), row.Geohash, row.Bounds)
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
