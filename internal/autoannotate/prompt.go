package autoannotate

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPrompt is the user prompt used when a model config has none
const DefaultPrompt = "Detect the common objects in this image and annotate them."

const systemPrompt = `You are an image recognition expert. Analyse the image and output the detections in YOLO format.
Rules:
1. Output only YOLO annotations, one object per line
2. Each line is: <class_id> <x_center> <y_center> <width> <height>
3. All coordinates are floats between 0 and 1, relative to the image width and height
4. Do not output any other text
5. If nothing is detected, output nothing`

// BuildSystemPrompt returns the system prompt, listing the class ids the
// model may use when classes is not empty.
func BuildSystemPrompt(classes []string) string {
	if len(classes) == 0 {
		return systemPrompt
	}
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\nThe recognisable classes are:\n")
	for i, c := range classes {
		fmt.Fprintf(&sb, "%d: %s\n", i, c)
	}
	sb.WriteString("\nUse only the class ids listed above.")
	return sb.String()
}

// ParseResponse keeps the reply lines that are valid YOLO rectangles: five
// numeric fields, all four geometry values in [0,1] and, when classes is not
// empty, a class id inside the list. Lines are returned re-formatted.
func ParseResponse(reply string, classes []string) []string {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```yolo")
	reply = strings.TrimPrefix(reply, "```text")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")

	var out []string
	for _, line := range strings.Split(reply, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 5 {
			continue
		}
		f, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || f < 0 {
			continue
		}
		id := int(f)
		if len(classes) > 0 && id >= len(classes) {
			continue
		}

		var vals [4]float64
		ok := true
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v < 0 || v > 1 {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("%d %.6f %.6f %.6f %.6f", id, vals[0], vals[1], vals[2], vals[3]))
	}
	return out
}
