package yolo

import (
	"encoding/json"
	"fmt"
	"image"
	"math"

	"github.com/dataset-m/dsm/internal/annotation"
)

type labelMeShape struct {
	Label     string      `json:"label"`
	ShapeType string      `json:"shape_type"`
	Points    [][]float64 `json:"points"`
}

type labelMeFile struct {
	ImagePath   string         `json:"imagePath"`
	ImageWidth  int            `json:"imageWidth"`
	ImageHeight int            `json:"imageHeight"`
	Shapes      []labelMeShape `json:"shapes"`
	Labels      []struct {
		Name string  `json:"name"`
		X1   float64 `json:"x1"`
		Y1   float64 `json:"y1"`
		X2   float64 `json:"x2"`
		Y2   float64 `json:"y2"`
	} `json:"labels"`
}

// FromLabelMe converts a LabelMe style JSON document into annotations.
// Polygon shapes stay polygons; every other shape becomes its bounding box.
// The image size recorded in the document is returned alongside.
func FromLabelMe(data []byte) ([]annotation.Annotation, int, int, error) {
	var doc labelMeFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to parse labelme json: %w", err)
	}

	var anns []annotation.Annotation
	for _, s := range doc.Shapes {
		if s.Label == "" || len(s.Points) == 0 {
			continue
		}
		if s.ShapeType == "polygon" && len(s.Points) >= 3 {
			pts := make([]image.Point, 0, len(s.Points))
			for _, p := range s.Points {
				if len(p) >= 2 {
					pts = append(pts, image.Pt(int(p[0]), int(p[1])))
				}
			}
			anns = append(anns, annotation.NewPolygon(pts, s.Label))
			continue
		}

		minX, minY := math.MaxFloat64, math.MaxFloat64
		maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
		for _, p := range s.Points {
			if len(p) < 2 {
				continue
			}
			minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
			minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
		}
		if minX > maxX {
			continue
		}
		anns = append(anns, boxFromCorners(minX, minY, maxX, maxY, s.Label))
	}
	for _, l := range doc.Labels {
		if l.Name == "" {
			continue
		}
		anns = append(anns, boxFromCorners(l.X1, l.Y1, l.X2, l.Y2, l.Name))
	}
	return anns, doc.ImageWidth, doc.ImageHeight, nil
}

func boxFromCorners(x1, y1, x2, y2 float64, label string) annotation.Annotation {
	return annotation.NewRectangle(int(x1), int(y1), int(x2-x1), int(y2-y1), label)
}
