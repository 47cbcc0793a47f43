package domain

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats"
)

// BaselineHorizon is the time horizon that applies no climate uplift.
const BaselineHorizon = "baseline"

// upliftHalfSize is half the side of the square each uplift grid point covers.
const upliftHalfSize = 2500.0

// UpliftCell is one row of a return-level grid: the design depth for a
// return period at a grid point and the median projected uplift in percent.
type UpliftCell struct {
	Easting     float64
	Northing    float64
	ReturnLevel float64
	Uplift50    float64
}

// Square returns the area the cell represents.
func (c UpliftCell) Square() geom.Polygon {
	return BoundingBox{
		MinX: c.Easting - upliftHalfSize,
		MinY: c.Northing - upliftHalfSize,
		MaxX: c.Easting + upliftHalfSize,
		MaxY: c.Northing + upliftHalfSize,
	}.Polygon()
}

// UpliftFileName names the return-level grid for a horizon, storm duration
// in hours and return period in years. The baseline horizon reads the 2050
// grid and ignores its uplift column.
func UpliftFileName(horizon string, durationHours, returnPeriod int) string {
	h := horizon
	if h == BaselineHorizon {
		h = "2050"
	}
	return fmt.Sprintf("Uplift_%s_%dhr_Pr_%dyrRL_Grid.csv", h, durationHours, returnPeriod)
}

// ReturnPeriodDepth averages the cells intersecting the domain and returns
// the design depth in millimetres together with the mean uplift percentage.
// The domain is the boundary polygons when given, otherwise bbox. Outside
// the baseline horizon the depth is scaled by the mean uplift.
func ReturnPeriodDepth(cells []UpliftCell, bbox BoundingBox, boundary []geom.Polygonal, horizon string) (depth, uplift float64, err error) {
	area := boundary
	if len(area) == 0 {
		area = []geom.Polygonal{bbox.Polygon()}
	}

	var levels, uplifts []float64
	for _, c := range cells {
		if intersectsAny(c.Square(), area) {
			levels = append(levels, c.ReturnLevel)
			uplifts = append(uplifts, c.Uplift50)
		}
	}
	if len(levels) == 0 {
		return 0, 0, fmt.Errorf("%w: no return-level grid cell intersects domain %s", ErrCoverage, bbox)
	}

	n := float64(len(levels))
	depth = floats.Sum(levels) / n
	uplift = floats.Sum(uplifts) / n
	if horizon != BaselineHorizon {
		depth *= (100 + uplift) / 100
	}
	return depth, uplift, nil
}

// intersectsAny reports whether square shares any point with one of the
// area polygons. Squares that only touch the area along an edge or at a
// corner count.
func intersectsAny(square geom.Polygon, area []geom.Polygonal) bool {
	sb := square.Bounds()
	for _, p := range area {
		if p == nil || !boundsTouch(sb, p.Bounds()) {
			continue
		}
		isect := square.Intersection(p)
		if isect != nil && isect.Area() > 0 {
			return true
		}
		if ringsTouch(square, p) {
			return true
		}
	}
	return false
}

// boundsTouch is a closed-interval overlap test.
func boundsTouch(a, b *geom.Bounds) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y
}

func ringsTouch(square geom.Polygon, p geom.Polygonal) bool {
	for _, poly := range p.Polygons() {
		for _, ring := range poly {
			for _, sq := range square {
				if edgesMeet(sq, ring) {
					return true
				}
			}
		}
	}
	return false
}

func edgesMeet(a, b geom.Path) bool {
	for i := range a {
		a1, a2 := a[i], a[(i+1)%len(a)]
		for j := range b {
			if segmentsMeet(a1, a2, b[j], b[(j+1)%len(b)]) {
				return true
			}
		}
	}
	return false
}

// segmentsMeet reports whether the closed segments p1p2 and p3p4 share a
// point, collinear overlaps and shared endpoints included.
func segmentsMeet(p1, p2, p3, p4 geom.Point) bool {
	d1 := orient(p3, p4, p1)
	d2 := orient(p3, p4, p2)
	d3 := orient(p1, p2, p3)
	d4 := orient(p1, p2, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(p3, p4, p1)) ||
		(d2 == 0 && onSegment(p3, p4, p2)) ||
		(d3 == 0 && onSegment(p1, p2, p3)) ||
		(d4 == 0 && onSegment(p1, p2, p4))
}

func orient(a, b, c geom.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment reports whether c, already collinear with ab, lies within it.
func onSegment(a, b, c geom.Point) bool {
	return math.Min(a.X, b.X) <= c.X && c.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= c.Y && c.Y <= math.Max(a.Y, b.Y)
}
