package annotation

import (
	"encoding/json"
	"fmt"
	"image"
)

// wireAnnotation is the JSON shape used by the HTTP API
type wireAnnotation struct {
	Type   string   `json:"type"`
	Label  string   `json:"label"`
	X      int      `json:"x,omitempty"`
	Y      int      `json:"y,omitempty"`
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
	Points [][2]int `json:"points,omitempty"`
	Closed bool     `json:"closed,omitempty"`
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	w := wireAnnotation{Type: string(a.Kind), Label: a.Label, Closed: a.Closed}
	switch a.Kind {
	case KindRectangle:
		w.X, w.Y, w.Width, w.Height = a.X(), a.Y(), a.Width(), a.Height()
	case KindPolygon:
		w.Points = make([][2]int, len(a.Points))
		for i, p := range a.Points {
			w.Points[i] = [2]int{p.X, p.Y}
		}
	}
	return json.Marshal(w)
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var w wireAnnotation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch Kind(w.Type) {
	case KindRectangle:
		*a = NewRectangle(w.X, w.Y, w.Width, w.Height, w.Label)
	case KindPolygon:
		pts := make([]image.Point, len(w.Points))
		for i, p := range w.Points {
			pts[i] = image.Pt(p[0], p[1])
		}
		*a = Annotation{Kind: KindPolygon, Label: w.Label, Points: pts, Closed: w.Closed}
	default:
		return fmt.Errorf("unknown annotation type %q", w.Type)
	}
	return nil
}
