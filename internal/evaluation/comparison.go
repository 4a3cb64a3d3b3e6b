package evaluation

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dataset-m/dsm/internal/yolo"
)

// Box is a normalised, axis aligned box read from a label file
type Box struct {
	Class int
	// X1, Y1, X2, Y2 are corners in [0,1] image space
	X1, Y1, X2, Y2 float64
}

// IoU returns the intersection over union of a and b
func IoU(a, b Box) float64 {
	ix := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	iy := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ParseBoxes reads YOLO label text. Polygons are reduced to their bounding
// box; malformed lines are skipped as the label codec does. IoU does not
// depend on the image size, so no pixel conversion is needed.
func ParseBoxes(text string) []Box {
	var out []Box
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}
		id, ok := yolo.ParseClassID(fields[0])
		if !ok {
			continue
		}
		vals := make([]float64, 0, len(fields)-1)
		bad := false
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				bad = true
				break
			}
			vals = append(vals, v)
		}
		if bad {
			continue
		}

		if len(vals) == 4 {
			cx, cy, w, h := vals[0], vals[1], vals[2], vals[3]
			if w <= 0 || h <= 0 {
				continue
			}
			out = append(out, Box{Class: id, X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2})
			continue
		}

		// cls 0 n x y ...
		if vals[0] != 0 {
			continue
		}
		n := int(vals[1])
		pts := vals[2:]
		if n < 3 || len(pts) != 2*n {
			continue
		}
		b := Box{Class: id, X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
		for i := 0; i < len(pts); i += 2 {
			b.X1 = math.Min(b.X1, pts[i])
			b.X2 = math.Max(b.X2, pts[i])
			b.Y1 = math.Min(b.Y1, pts[i+1])
			b.Y2 = math.Max(b.Y2, pts[i+1])
		}
		out = append(out, b)
	}
	return out
}

// ReadBoxes reads the label file at path; a missing file has no boxes
func ReadBoxes(path string) ([]Box, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read label file: %w", err)
	}
	return ParseBoxes(string(data)), nil
}

// Counts holds detection outcomes
type Counts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

func (c *Counts) add(o Counts) {
	c.TP += o.TP
	c.FP += o.FP
	c.FN += o.FN
}

// Precision is TP / (TP + FP), 0 without predictions
func (c Counts) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall is TP / (TP + FN), 0 without references
func (c Counts) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// F1 is the harmonic mean of precision and recall
func (c Counts) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Match pairs predicted and reference boxes of the same class greedily by
// descending IoU. Pairs below threshold stay unmatched. It returns counts per
// class id and the IoU of every matched pair.
func Match(pred, ref []Box, threshold float64) (map[int]Counts, []float64) {
	type pair struct {
		p, r int
		iou  float64
	}
	var pairs []pair
	for i, p := range pred {
		for j, r := range ref {
			if p.Class != r.Class {
				continue
			}
			if v := IoU(p, r); v >= threshold && v > 0 {
				pairs = append(pairs, pair{i, j, v})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].iou > pairs[b].iou })

	usedPred := make([]bool, len(pred))
	usedRef := make([]bool, len(ref))
	counts := make(map[int]Counts)
	var ious []float64
	for _, pr := range pairs {
		if usedPred[pr.p] || usedRef[pr.r] {
			continue
		}
		usedPred[pr.p] = true
		usedRef[pr.r] = true
		c := counts[pred[pr.p].Class]
		c.TP++
		counts[pred[pr.p].Class] = c
		ious = append(ious, pr.iou)
	}
	for i, used := range usedPred {
		if !used {
			c := counts[pred[i].Class]
			c.FP++
			counts[pred[i].Class] = c
		}
	}
	for j, used := range usedRef {
		if !used {
			c := counts[ref[j].Class]
			c.FN++
			counts[ref[j].Class] = c
		}
	}
	return counts, ious
}
