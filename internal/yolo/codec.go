// Package yolo reads and writes YOLO text labels.
//
// A rectangle is written as "class cx cy w h" and a polygon as
// "class 0 n x1 y1 ... xn yn". All coordinates are normalised by the image
// width or height and formatted with six decimals.
package yolo

import (
	"bufio"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/dataset-m/dsm/internal/annotation"
	"github.com/dataset-m/dsm/internal/logger"
)

// Encode renders annotations as YOLO label text for an image of w x h pixels.
// Labels missing from classes are appended to it. Annotations that fail
// validation are skipped.
func Encode(w, h int, anns []annotation.Annotation, classes *annotation.ClassList) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	W, H := float64(w), float64(h)

	var sb strings.Builder
	for _, a := range anns {
		if err := a.Validate(); err != nil {
			logger.S().Debugw("Skipping annotation", "label", a.Label, "error", err)
			continue
		}
		id := classes.ID(a.Label)
		switch a.Kind {
		case annotation.KindRectangle:
			cx := (float64(a.X()) + float64(a.Width())/2) / W
			cy := (float64(a.Y()) + float64(a.Height())/2) / H
			fmt.Fprintf(&sb, "%d %.6f %.6f %.6f %.6f\n", id, cx, cy, float64(a.Width())/W, float64(a.Height())/H)
		case annotation.KindPolygon:
			fmt.Fprintf(&sb, "%d 0 %d", id, len(a.Points))
			for _, p := range a.Points {
				fmt.Fprintf(&sb, " %.6f %.6f", float64(p.X)/W, float64(p.Y)/H)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Decode parses YOLO label text for an image of w x h pixels. Malformed lines
// are skipped. Class ids outside classes get the label "unknown_<id>".
func Decode(text string, w, h int, classes *annotation.ClassList) []annotation.Annotation {
	W, H := float64(w), float64(h)

	var anns []annotation.Annotation
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) < 5 {
			continue
		}
		id, ok := ParseClassID(parts[0])
		if !ok {
			continue
		}
		label := labelFor(id, classes)

		if parts[1] != "0" {
			if len(parts) != 5 {
				continue
			}
			vals, ok := parseFloats(parts[1:])
			if !ok {
				continue
			}
			cx, cy, bw, bh := vals[0], vals[1], vals[2], vals[3]
			x := int((cx - bw/2) * W)
			y := int((cy - bh/2) * H)
			anns = append(anns, annotation.NewRectangle(x, y, int(bw*W), int(bh*H), label))
			continue
		}

		n, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			continue
		}
		coords := parts[3:]
		if len(coords) != int(n)*2 {
			continue
		}
		vals, ok := parseFloats(coords)
		if !ok {
			continue
		}
		pts := make([]image.Point, 0, len(vals)/2)
		for i := 0; i < len(vals); i += 2 {
			pts = append(pts, image.Pt(int(vals[i]*W), int(vals[i+1]*H)))
		}
		anns = append(anns, annotation.Annotation{
			Kind:   annotation.KindPolygon,
			Label:  label,
			Points: pts,
			Closed: true,
		})
	}
	return anns
}

// ParseClassID parses the first field of a label line. Integral floats such
// as "3.0" are accepted.
func ParseClassID(s string) (int, bool) {
	if id, err := strconv.Atoi(s); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

func labelFor(id int, classes *annotation.ClassList) string {
	if classes != nil {
		if name, ok := classes.Name(id); ok {
			return name
		}
	}
	return "unknown_" + strconv.Itoa(id)
}

func parseFloats(fields []string) ([]float64, bool) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
