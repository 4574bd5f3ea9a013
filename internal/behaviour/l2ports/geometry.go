package l2ports

import (
	"fmt"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
)

// Geometry holds the pairwise port distances in pixels.
type Geometry struct {
	CenterLeft  float64
	CenterRight float64
	LeftRight   float64
}

// Measure computes the pairwise distances of a port set.
func Measure(ports behaviour.PortSet) Geometry {
	return Geometry{
		CenterLeft:  ports.Center.DistanceTo(ports.Left.Point2D),
		CenterRight: ports.Center.DistanceTo(ports.Right.Point2D),
		LeftRight:   ports.Left.DistanceTo(ports.Right.Point2D),
	}
}

// ValidateGeometry fails with ErrPortGeometry unless every port pair is more
// than factor x thresholdPx apart. With factor >= 2 no frame can be inside two
// proximity radii at once.
func ValidateGeometry(ports behaviour.PortSet, thresholdPx, factor float64) (Geometry, error) {
	g := Measure(ports)
	minSep := factor * thresholdPx
	pairs := []struct {
		a, b behaviour.PortName
		d    float64
	}{
		{behaviour.PortCenter, behaviour.PortLeft, g.CenterLeft},
		{behaviour.PortCenter, behaviour.PortRight, g.CenterRight},
		{behaviour.PortLeft, behaviour.PortRight, g.LeftRight},
	}
	for _, p := range pairs {
		// NaN distances fail too.
		if !(p.d > minSep) {
			return g, fmt.Errorf("%w: %s and %s ports are %.2fpx apart, need more than %.2fpx",
				behaviour.ErrPortGeometry, p.a, p.b, p.d, minSep)
		}
	}
	return g, nil
}
