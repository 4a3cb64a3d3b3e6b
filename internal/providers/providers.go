package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Request is one vision prompt against a single image
type Request struct {
	Model       string
	Temperature float64
	// System is sent as a system message where the provider supports one
	System    string
	Prompt    string
	ImagePath string
}

// Provider sends a prompt plus image to a vision model and returns its text reply
type Provider interface {
	Name() string
	Detect(ctx context.Context, req Request) (string, error)
}

// Image is an encoded request image
type Image struct {
	Data     []byte
	MIMEType string
}

// Base64 returns the raw image as standard base64
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns a data: URL for the image
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// Format is the image subtype, e.g. "jpeg" or "png"
func (i Image) Format() string {
	_, sub, ok := strings.Cut(i.MIMEType, "/")
	if !ok {
		return "jpeg"
	}
	return sub
}

// ReadImage loads the request image from disk
func ReadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" || !strings.HasPrefix(mt, "image/") {
		mt = "image/jpeg"
	}
	return Image{Data: data, MIMEType: mt}, nil
}
