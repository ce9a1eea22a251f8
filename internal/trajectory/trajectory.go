// Package trajectory reads particle dispersion trajectories and tags them
// with the geohash cells they cross.
package trajectory

import (
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/geoerr"
	"github.com/paulmach/orb"
)

type Point struct {
	Position orb.Point
	Altitude float64
	// Offset is the elapsed time since the trajectory start.
	Offset time.Duration
}

type Trajectory struct {
	SwarmID    string
	AltitudeID int
	Track      string
	Start      time.Time
	Points     []Point
}

func (t Trajectory) Positions() []orb.Point {
	positions := make([]orb.Point, 0, len(t.Points))
	for _, p := range t.Points {
		positions = append(positions, p.Position)
	}
	return positions
}

// Builder accumulates the points of one trajectory in order. Offsets must not
// decrease.
type Builder struct {
	swarmID string
	track   string
	start   time.Time
	points  []Point
}

func NewBuilder(swarmID, track string, start time.Time) *Builder {
	return &Builder{swarmID: swarmID, track: track, start: start}
}

func (b *Builder) Append(p Point) error {
	if n := len(b.points); n > 0 && p.Offset < b.points[n-1].Offset {
		return geoerr.Validation("offset", "%s track %s: %v is before the previous point at %v", b.swarmID, b.track, p.Offset, b.points[n-1].Offset)
	}
	b.points = append(b.points, p)
	return nil
}

func (b *Builder) Len() int {
	return len(b.points)
}

// Build returns the trajectory built so far. The returned points do not share
// storage with the builder, so appending afterwards leaves it untouched.
func (b *Builder) Build() Trajectory {
	points := make([]Point, len(b.points))
	copy(points, b.points)

	t := Trajectory{
		SwarmID: b.swarmID,
		Track:   b.track,
		Start:   b.start,
		Points:  points,
	}
	if len(points) > 0 {
		t.AltitudeID = int(points[0].Altitude)
	}
	return t
}
