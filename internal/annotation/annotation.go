package annotation

import (
	"errors"
	"fmt"
	"image"
)

// Kind identifies the shape of an annotation
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindPolygon   Kind = "polygon"
)

var (
	ErrMissingLabel = errors.New("annotation has no label")
	ErrOpenPolygon  = errors.New("closed polygon needs at least 3 points")
	ErrEmptyRect    = errors.New("rectangle has no area")
)

// Annotation is a labelled region of an image, either a rectangle or a polygon.
// Coordinates are integer pixels relative to the source image.
type Annotation struct {
	Kind   Kind
	Label  string
	Rect   image.Rectangle
	Points []image.Point
	Closed bool
}

// NewRectangle builds a rectangle annotation from its top-left corner and size
func NewRectangle(x, y, w, h int, label string) Annotation {
	return Annotation{
		Kind:  KindRectangle,
		Label: label,
		Rect:  image.Rect(x, y, x+w, y+h),
	}
}

// NewPolygon builds a closed polygon annotation
func NewPolygon(points []image.Point, label string) Annotation {
	pts := make([]image.Point, len(points))
	copy(pts, points)
	return Annotation{
		Kind:   KindPolygon,
		Label:  label,
		Points: pts,
		Closed: true,
	}
}

// X returns the left edge of a rectangle annotation
func (a Annotation) X() int { return a.Rect.Min.X }

// Y returns the top edge of a rectangle annotation
func (a Annotation) Y() int { return a.Rect.Min.Y }

// Width of a rectangle annotation
func (a Annotation) Width() int { return a.Rect.Dx() }

// Height of a rectangle annotation
func (a Annotation) Height() int { return a.Rect.Dy() }

// Bounds returns the bounding box of the annotation regardless of its kind
func (a Annotation) Bounds() image.Rectangle {
	if a.Kind == KindRectangle {
		return a.Rect
	}
	if len(a.Points) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: a.Points[0], Max: a.Points[0]}
	for _, p := range a.Points[1:] {
		if p.X < r.Min.X {
			r.Min.X = p.X
		}
		if p.Y < r.Min.Y {
			r.Min.Y = p.Y
		}
		if p.X > r.Max.X {
			r.Max.X = p.X
		}
		if p.Y > r.Max.Y {
			r.Max.Y = p.Y
		}
	}
	return r
}

// Validate reports whether the annotation may be persisted
func (a Annotation) Validate() error {
	if a.Label == "" {
		return ErrMissingLabel
	}
	switch a.Kind {
	case KindRectangle:
		if a.Rect.Empty() {
			return ErrEmptyRect
		}
	case KindPolygon:
		if a.Closed && len(a.Points) < 3 {
			return ErrOpenPolygon
		}
	default:
		return fmt.Errorf("unknown annotation kind %q", a.Kind)
	}
	return nil
}
