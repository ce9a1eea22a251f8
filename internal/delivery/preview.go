package delivery

import (
	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/utils"
	"github.com/forest-guardian/geotile-dataset/output"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type PreviewOptions struct {
	ImageFile   string
	GeoJSONFile string
	Width       int
}

// Preview renders the coverage and, when requests are given, the cells
// holding point of interest requests. Either output may be left empty.
func Preview(polygon orb.Polygon, set coverage.Set, requests []planner.Request, opts PreviewOptions) error {
	poiCells := make(map[string]struct{})
	for _, r := range requests {
		if r.IsPOI {
			poiCells[r.Geohash] = struct{}{}
		}
	}
	layers := []output.Layer{{Name: "area", Cells: set.Cells, Color: output.AreaColor}}
	if len(poiCells) > 0 {
		layers = append(layers, output.Layer{Name: "poi", Cells: utils.SortedCells(poiCells), Color: output.POIColor})
	}

	if opts.ImageFile != "" {
		width := opts.Width
		if width <= 0 {
			width = 1024
		}
		if err := output.CreatePreviewImage(layers, polygon, opts.ImageFile, width); err != nil {
			return err
		}
	}

	if opts.GeoJSONFile == "" {
		return nil
	}
	var (
		fc  *geojson.FeatureCollection
		err error
	)
	if len(requests) > 0 {
		fc, err = output.RequestsFeatureCollection(requests)
	} else {
		fc, err = output.CellsFeatureCollection(set.Cells, nil)
	}
	if err != nil {
		return err
	}
	return output.CreateGeoJSON(fc, opts.GeoJSONFile)
}
