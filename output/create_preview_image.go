package output

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/paulmach/orb"
)

// Layer is a set of cells drawn in one colour.
type Layer struct {
	Name  string
	Cells []string
	Color color.RGBA
}

var (
	AreaColor = color.RGBA{R: 46, G: 139, B: 87, A: 255}
	POIColor  = color.RGBA{R: 220, G: 20, B: 60, A: 255}
)

const (
	legendHeight  = 100
	legendSpacing = 20
	margin        = 10
)

// RenderPreview draws the layers in order, so later layers sit on top, and
// outlines the polygon when it is not empty. The map keeps the degree aspect
// ratio and is width pixels wide.
func RenderPreview(layers []Layer, polygon orb.Polygon, width int) (image.Image, error) {
	if width < 2*margin+1 {
		return nil, fmt.Errorf("preview width %d is too small", width)
	}

	bound, ok := orb.Bound{}, false
	extend := func(b orb.Bound) {
		if !ok {
			bound, ok = b, true
			return
		}
		bound = bound.Union(b)
	}
	boxes := make([][]orb.Bound, len(layers))
	for i, layer := range layers {
		for _, cell := range layer.Cells {
			b, err := grid.BoundingBox(cell)
			if err != nil {
				return nil, err
			}
			boxes[i] = append(boxes[i], b)
			extend(b)
		}
	}
	if len(polygon) > 0 && len(polygon[0]) > 0 {
		extend(polygon.Bound())
	}
	if !ok {
		return nil, fmt.Errorf("nothing to draw")
	}

	span := math.Max(bound.Right()-bound.Left(), 1e-12)
	scale := float64(width-2*margin) / span
	mapHeight := int(math.Ceil((bound.Top()-bound.Bottom())*scale)) + 2*margin
	project := func(p orb.Point) (float64, float64) {
		return margin + (p.Lon()-bound.Left())*scale, margin + (bound.Top()-p.Lat())*scale
	}

	dc := gg.NewContext(width, mapHeight+legendHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for i, layer := range layers {
		c := layer.Color
		for _, b := range boxes[i] {
			x0, y0 := project(orb.Point{b.Left(), b.Top()})
			x1, y1 := project(orb.Point{b.Right(), b.Bottom()})
			dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
			dc.SetRGBA255(int(c.R), int(c.G), int(c.B), 160)
			dc.FillPreserve()
			dc.SetRGBA255(int(c.R), int(c.G), int(c.B), 255)
			dc.SetLineWidth(0.5)
			dc.Stroke()
		}
	}

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(2)
	for _, ring := range polygon {
		for j, p := range ring {
			x, y := project(p)
			if j == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
		dc.Stroke()
	}

	for i, layer := range layers {
		y := float64(mapHeight + margin + i*legendSpacing)
		c := layer.Color
		dc.SetRGB255(int(c.R), int(c.G), int(c.B))
		dc.DrawRectangle(margin, y, 15, 15)
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.DrawRectangle(margin, y, 15, 15)
		dc.SetLineWidth(1)
		dc.Stroke()

		dc.DrawStringAnchored(fmt.Sprintf("%s (%d cells)", layer.Name, len(layer.Cells)), margin+20, y+7, 0, 0.5)
	}
	return dc.Image(), nil
}

// CreatePreviewImage renders the layers to a PNG file.
func CreatePreviewImage(layers []Layer, polygon orb.Polygon, outputPath string, width int) error {
	img, err := RenderPreview(layers, polygon, width)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return err
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
