package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		file   string
		mime   string
		format string
	}{
		{"a.png", "image/png", "png"},
		{"b.JPG", "image/jpeg", "jpeg"},
		{"c.unknownext", "image/jpeg", "jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

			img, err := ReadImage(path)
			require.NoError(t, err)
			assert.Equal(t, tt.mime, img.MIMEType)
			assert.Equal(t, tt.format, img.Format())
			assert.Equal(t, "aGk=", img.Base64())
			assert.Equal(t, "data:"+tt.mime+";base64,aGk=", img.DataURL())
		})
	}
}

func TestReadImageMissing(t *testing.T) {
	_, err := ReadImage(filepath.Join(t.TempDir(), "nope.jpg"))
	assert.Error(t, err)
}

func TestFormatWithoutSubtype(t *testing.T) {
	assert.Equal(t, "jpeg", Image{MIMEType: "garbage"}.Format())
}
