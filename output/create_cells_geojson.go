package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/utils"
	"github.com/paulmach/orb/geojson"
)

// CellsFeatureCollection returns one polygon feature per cell. properties,
// when given, adds to the geohash property of each feature.
func CellsFeatureCollection(cells []string, properties func(cell string) map[string]interface{}) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, cell := range cells {
		bound, err := grid.BoundingBox(cell)
		if err != nil {
			return nil, err
		}
		feature := geojson.NewFeature(bound.ToPolygon())
		feature.Properties["geohash"] = cell
		if properties != nil {
			for k, v := range properties(cell) {
				feature.Properties[k] = v
			}
		}
		fc.Append(feature)
	}
	return fc, nil
}

// RequestsFeatureCollection groups requests per cell and partition. Each
// feature lists the interval start dates requested for its cell.
func RequestsFeatureCollection(requests []planner.Request) (*geojson.FeatureCollection, error) {
	type key struct {
		cell string
		poi  bool
	}
	dates := make(map[key][]string)
	for _, r := range requests {
		k := key{r.Geohash, r.IsPOI}
		dates[k] = append(dates[k], r.Interval.Start.Format(planner.DateLayout))
	}

	for _, d := range dates {
		sort.Strings(d)
	}

	fc := geojson.NewFeatureCollection()
	for _, poi := range []bool{false, true} {
		cells := make(map[string][]string)
		for k, d := range dates {
			if k.poi == poi {
				cells[k.cell] = d
			}
		}
		partition, err := CellsFeatureCollection(utils.SortedCells(cells), func(cell string) map[string]interface{} {
			return map[string]interface{}{
				"is_poi": poi,
				"dates":  cells[cell],
			}
		})
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, partition.Features...)
	}
	return fc, nil
}

func CreateGeoJSON(fc *geojson.FeatureCollection, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return err
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating GeoJSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fc); err != nil {
		return fmt.Errorf("error encoding GeoJSON: %w", err)
	}
	return nil
}
