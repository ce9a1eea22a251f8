// Package aoi reads areas and points of interest from GeoJSON.
package aoi

import (
	"fmt"
	"os"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/geoerr"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/utils"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type AOI struct {
	Polygon orb.Polygon
	// IgnoredFeatures counts the features after the first one.
	IgnoredFeatures int
}

func LoadAOI(path string) (AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AOI{}, fmt.Errorf("error reading area of interest %s: %w", path, err)
	}
	return ParseAOI(data)
}

// ParseAOI takes the first feature of a FeatureCollection, which must be a
// Polygon. A bare Feature or Polygon geometry is accepted as well.
func ParseAOI(data []byte) (AOI, error) {
	features, err := decodeFeatures(data)
	if err != nil {
		return AOI{}, err
	}
	if len(features) == 0 {
		return AOI{}, geoerr.Validation("geojson", "feature collection is empty")
	}

	polygon, ok := features[0].Geometry.(orb.Polygon)
	if !ok {
		return AOI{}, geoerr.Validation("geojson", "first feature is a %s, expected a Polygon", geometryType(features[0].Geometry))
	}
	return AOI{Polygon: polygon, IgnoredFeatures: len(features) - 1}, nil
}

func decodeFeatures(data []byte) ([]*geojson.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err == nil {
		return fc.Features, nil
	}
	if f, ferr := geojson.UnmarshalFeature(data); ferr == nil {
		return []*geojson.Feature{f}, nil
	}
	if g, gerr := geojson.UnmarshalGeometry(data); gerr == nil && g.Coordinates != nil {
		return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
	}
	return nil, geoerr.Validation("geojson", "%v", err)
}

func LoadPOIs(path string) ([]planner.POI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading points of interest %s: %w", path, err)
	}
	return ParsePOIs(data)
}

// ParsePOIs reads Point features carrying a "date" property.
func ParsePOIs(data []byte) ([]planner.POI, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, geoerr.Validation("geojson", "%v", err)
	}

	pois := make([]planner.POI, 0, len(fc.Features))
	for i, f := range fc.Features {
		point, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, geoerr.Validation("geojson", "feature %d is a %s, expected a Point", i, geometryType(f.Geometry))
		}
		raw, ok := f.Properties["date"].(string)
		if !ok {
			return nil, geoerr.Validation("date", "feature %d has no date property", i)
		}
		date, err := ParseDate(raw)
		if err != nil {
			return nil, geoerr.Validation("date", "feature %d: %v", i, err)
		}
		pois = append(pois, planner.POI{Position: point, Date: date})
	}
	return pois, nil
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar day as written, at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{planner.DateLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return utils.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO-8601 date", s)
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null geometry"
	}
	return g.GeoJSONType()
}
