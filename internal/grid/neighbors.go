package grid

import "github.com/paulmach/orb"

// neighbor offsets in cell units, clockwise from north.
var neighborOffsets = [8][2]float64{
	{0, 1},   // N
	{1, 1},   // NE
	{1, 0},   // E
	{1, -1},  // SE
	{0, -1},  // S
	{-1, -1}, // SW
	{-1, 0},  // W
	{-1, 1},  // NW
}

// Neighbors returns the cells of the same precision sharing an edge or a
// corner with cell. Longitude wraps at the antimeridian; rows past a pole do
// not exist, so cells on the first or last row have fewer than eight.
func Neighbors(cell string) ([]string, error) {
	bound, err := BoundingBox(cell)
	if err != nil {
		return nil, err
	}
	center := bound.Center()
	width := bound.Right() - bound.Left()
	height := bound.Top() - bound.Bottom()

	seen := map[string]struct{}{cell: {}}
	neighbors := make([]string, 0, len(neighborOffsets))
	for _, offset := range neighborOffsets {
		lat := center.Lat() + offset[1]*height
		if lat <= -90 || lat >= 90 {
			continue
		}
		lon := wrapLongitude(center.Lon() + offset[0]*width)

		n, err := Encode(orb.Point{lon, lat}, len(cell))
		if err != nil {
			return nil, err
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		neighbors = append(neighbors, n)
	}
	return neighbors, nil
}

func wrapLongitude(lon float64) float64 {
	for lon >= 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
