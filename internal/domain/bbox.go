package domain

import (
	"fmt"

	"github.com/ctessum/geom"
)

// BoundingBox is an axis-aligned extent in the domain's projected CRS.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Validate checks that the box has positive width and height.
func (b BoundingBox) Validate() error {
	if !(b.MinX < b.MaxX) || !(b.MinY < b.MaxY) {
		return fmt.Errorf("%w: degenerate bounding box %s", ErrConfiguration, b)
	}
	return nil
}

// Width returns the east-west extent.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the north-south extent.
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Bounds converts the box to a geom.Bounds for spatial queries.
func (b BoundingBox) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.MinX, Y: b.MinY},
		Max: geom.Point{X: b.MaxX, Y: b.MaxY},
	}
}

// Polygon returns the box as a closed exterior ring.
func (b BoundingBox) Polygon() geom.Polygon {
	return geom.Polygon{{
		{X: b.MinX, Y: b.MinY},
		{X: b.MaxX, Y: b.MinY},
		{X: b.MaxX, Y: b.MaxY},
		{X: b.MinX, Y: b.MaxY},
		{X: b.MinX, Y: b.MinY},
	}}
}

// String formats the box as minx,miny,maxx,maxy.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// ResolveDomain derives the model extent. With boundary polygons it is their
// total extent and center is ignored (callers should say so); otherwise it is a square of side size
// centred on center. Having neither is a configuration error. No grid
// snapping happens here.
func ResolveDomain(boundary []geom.Polygonal, center *geom.Point, size float64) (BoundingBox, error) {
	switch {
	case len(boundary) == 0 && center == nil:
		return BoundingBox{}, fmt.Errorf("%w: neither a boundary nor a centre point was supplied", ErrConfiguration)
	case len(boundary) == 0:
		if !(size > 0) {
			return BoundingBox{}, fmt.Errorf("%w: domain size must be positive, got %g", ErrConfiguration, size)
		}
		half := size / 2
		bb := BoundingBox{
			MinX: center.X - half,
			MinY: center.Y - half,
			MaxX: center.X + half,
			MaxY: center.Y + half,
		}
		return bb, bb.Validate()
	}

	var extent *geom.Bounds
	for _, p := range boundary {
		if p == nil {
			continue
		}
		if extent == nil {
			b := p.Bounds()
			extent = &geom.Bounds{Min: b.Min, Max: b.Max}
			continue
		}
		extent.Extend(p.Bounds())
	}
	if extent == nil {
		return BoundingBox{}, fmt.Errorf("%w: boundary layer holds no geometry", ErrConfiguration)
	}
	bb := BoundingBox{MinX: extent.Min.X, MinY: extent.Min.Y, MaxX: extent.Max.X, MaxY: extent.Max.Y}
	return bb, bb.Validate()
}
