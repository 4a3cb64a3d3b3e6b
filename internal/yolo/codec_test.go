package yolo

import (
	"image"
	"testing"

	"github.com/dataset-m/dsm/internal/annotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	classes := annotation.NewClassList("car")
	anns := []annotation.Annotation{
		annotation.NewRectangle(50, 25, 100, 50, "car"),
		annotation.NewPolygon([]image.Point{{0, 0}, {100, 0}, {100, 50}}, "road"),
		annotation.NewRectangle(1, 1, 5, 5, ""),
	}

	got := Encode(200, 100, anns, classes)

	want := "0 0.500000 0.500000 0.500000 0.500000\n" +
		"1 0 3 0.000000 0.000000 0.500000 0.000000 0.500000 0.500000\n"
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"car", "road"}, classes.Names())
}

func TestEncodeZeroSize(t *testing.T) {
	classes := annotation.NewClassList()
	got := Encode(0, 100, []annotation.Annotation{annotation.NewRectangle(0, 0, 1, 1, "a")}, classes)
	assert.Empty(t, got)
}

func TestDecode(t *testing.T) {
	classes := annotation.NewClassList("car", "road", "sign", "person")

	tests := []struct {
		name string
		text string
		want []annotation.Annotation
	}{
		{
			name: "rectangle",
			text: "0 0.500000 0.500000 0.500000 0.500000\n",
			want: []annotation.Annotation{annotation.NewRectangle(50, 25, 100, 50, "car")},
		},
		{
			name: "rectangle coordinates truncate",
			text: "0 0.333333 0.333333 0.333333 0.333333",
			want: []annotation.Annotation{annotation.NewRectangle(33, 16, 66, 33, "car")},
		},
		{
			name: "polygon",
			text: "1 0 3 0.000000 0.000000 0.500000 0.000000 0.500000 0.500000",
			want: []annotation.Annotation{
				annotation.NewPolygon([]image.Point{{0, 0}, {100, 0}, {100, 50}}, "road"),
			},
		},
		{
			name: "polygon with wrong coordinate count",
			text: "1 0 3 0.1 0.1 0.2 0.2",
		},
		{
			name: "float class id",
			text: "3.0 0.5 0.5 0.5 0.5",
			want: []annotation.Annotation{annotation.NewRectangle(50, 25, 100, 50, "person")},
		},
		{
			name: "unknown class id",
			text: "7 0.5 0.5 0.5 0.5",
			want: []annotation.Annotation{annotation.NewRectangle(50, 25, 100, 50, "unknown_7")},
		},
		{
			name: "short line",
			text: "0 0.5 0.5 0.5",
		},
		{
			name: "non numeric class",
			text: "car 0.5 0.5 0.5 0.5",
		},
		{
			name: "rectangle with extra fields",
			text: "0 0.5 0.5 0.5 0.5 0.9",
		},
		{
			name: "mixed valid and invalid lines",
			text: "\nbad\n2 0.5 0.5 0.5 0.5\n\n",
			want: []annotation.Annotation{annotation.NewRectangle(50, 25, 100, 50, "sign")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.text, 200, 100, classes)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	classes := annotation.NewClassList()
	in := []annotation.Annotation{
		annotation.NewRectangle(64, 32, 128, 64, "a"),
		annotation.NewRectangle(0, 0, 256, 128, "b"),
		annotation.NewPolygon([]image.Point{{0, 0}, {128, 64}, {64, 128}, {0, 128}}, "a"),
	}

	text := Encode(256, 128, in, classes)
	out := Decode(text, 256, 128, classes)
	assert.Equal(t, in, out)
}

func TestRoundTripWithinOnePixel(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		rect [4]int
	}{
		{"odd image", 641, 479, [4]int{13, 7, 101, 333}},
		{"prime sizes", 997, 613, [4]int{1, 1, 995, 611}},
		{"thin box", 641, 479, [4]int{320, 0, 1, 479}},
		{"bottom right", 1279, 719, [4]int{1000, 500, 279, 219}},
		{"tiny image", 3, 7, [4]int{1, 2, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes := annotation.NewClassList()
			r := tt.rect
			in := annotation.NewRectangle(r[0], r[1], r[2], r[3], "obj")
			poly := annotation.NewPolygon([]image.Point{{r[0], r[1]}, {r[0] + r[2], r[1]}, {r[0], r[1] + r[3]}}, "obj")

			out := Decode(Encode(tt.w, tt.h, []annotation.Annotation{in, poly}, classes), tt.w, tt.h, classes)
			require.Len(t, out, 2)

			got := out[0]
			assert.Equal(t, "obj", got.Label)
			assert.InDelta(t, in.X(), got.X(), 1)
			assert.InDelta(t, in.Y(), got.Y(), 1)
			assert.InDelta(t, in.Width(), got.Width(), 1)
			assert.InDelta(t, in.Height(), got.Height(), 1)

			require.Len(t, out[1].Points, len(poly.Points))
			for i, p := range poly.Points {
				assert.InDelta(t, p.X, out[1].Points[i].X, 1)
				assert.InDelta(t, p.Y, out[1].Points[i].Y, 1)
			}
		})
	}
}

func TestParseClassID(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"0", 0, true},
		{"12", 12, true},
		{"3.0", 3, true},
		{"x", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseClassID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseClassID(%q): expected %d/%v, got %d/%v", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}
