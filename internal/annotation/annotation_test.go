package annotation

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ann     Annotation
		wantErr error
	}{
		{
			name: "valid rectangle",
			ann:  NewRectangle(1, 2, 10, 20, "car"),
		},
		{
			name:    "missing label",
			ann:     NewRectangle(1, 2, 10, 20, ""),
			wantErr: ErrMissingLabel,
		},
		{
			name:    "empty rectangle",
			ann:     NewRectangle(1, 2, 0, 20, "car"),
			wantErr: ErrEmptyRect,
		},
		{
			name:    "closed polygon with two points",
			ann:     NewPolygon([]image.Point{{0, 0}, {5, 5}}, "road"),
			wantErr: ErrOpenPolygon,
		},
		{
			name: "open polygon with two points",
			ann: Annotation{
				Kind:   KindPolygon,
				Label:  "road",
				Points: []image.Point{{0, 0}, {5, 5}},
			},
		},
		{
			name: "triangle",
			ann:  NewPolygon([]image.Point{{0, 0}, {5, 5}, {0, 5}}, "road"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ann.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBounds(t *testing.T) {
	poly := NewPolygon([]image.Point{{4, 9}, {1, 3}, {7, 5}}, "x")
	assert.Equal(t, image.Rect(1, 3, 7, 9), poly.Bounds())

	rect := NewRectangle(2, 3, 4, 5, "x")
	assert.Equal(t, image.Rect(2, 3, 6, 8), rect.Bounds())
}

func TestClassList(t *testing.T) {
	c := NewClassList("cat", "dog", "cat", "")
	assert.Equal(t, []string{"cat", "dog"}, c.Names())

	assert.Equal(t, 1, c.ID("dog"))
	assert.Equal(t, 2, c.ID("bird"))
	assert.Equal(t, 3, c.Len())

	name, ok := c.Name(2)
	assert.True(t, ok)
	assert.Equal(t, "bird", name)

	_, ok = c.Name(5)
	assert.False(t, ok)
	assert.Equal(t, -1, c.Index("fish"))
}

func TestJSONRoundTrip(t *testing.T) {
	in := []Annotation{
		NewRectangle(10, 20, 30, 40, "car"),
		NewPolygon([]image.Point{{1, 1}, {5, 1}, {5, 5}}, "sign"),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out []Annotation
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalUnknownType(t *testing.T) {
	var a Annotation
	err := json.Unmarshal([]byte(`{"type":"circle","label":"x"}`), &a)
	assert.Error(t, err)
}
