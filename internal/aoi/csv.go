package aoi

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/forest-guardian/geotile-dataset/internal/geoerr"
	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type CSVColumns struct {
	Longitude string
	Latitude  string
	Date      string
}

var DefaultCSVColumns = CSVColumns{Longitude: "x", Latitude: "y", Date: "date"}

// POIsFromCSV turns a table of dated locations into a FeatureCollection of
// Point features with a "date" property. Rows with an empty coordinate are
// skipped.
func POIsFromCSV(r io.Reader, columns CSVColumns) (*geojson.FeatureCollection, error) {
	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("error reading points csv: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	for i, row := range rows {
		lonRaw, lonOK := row[columns.Longitude]
		latRaw, latOK := row[columns.Latitude]
		dateRaw, dateOK := row[columns.Date]
		if !lonOK || !latOK || !dateOK {
			return nil, geoerr.Validation("csv", "missing one of the columns %q, %q, %q", columns.Longitude, columns.Latitude, columns.Date)
		}
		if strings.TrimSpace(lonRaw) == "" || strings.TrimSpace(latRaw) == "" {
			continue
		}

		lon, err := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
		if err != nil {
			return nil, geoerr.Validation("longitude", "row %d: %v", i+1, err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
		if err != nil {
			return nil, geoerr.Validation("latitude", "row %d: %v", i+1, err)
		}
		date, err := ParseDate(strings.TrimSpace(dateRaw))
		if err != nil {
			return nil, geoerr.Validation("date", "row %d: %v", i+1, err)
		}

		f := geojson.NewFeature(orb.Point{lon, lat})
		f.Properties["date"] = date.Format("2006-01-02")
		fc.Append(f)
	}
	return fc, nil
}
