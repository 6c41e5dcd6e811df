// Package service provides the business logic layer for bannerd operations.
package service

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	// Register image format decoders
	_ "image/gif"
	_ "image/jpeg"

	// WebP support from x/image
	_ "golang.org/x/image/webp"
)

// ImageConverter handles image format conversion for uploaded banner media.
type ImageConverter struct{}

// NewImageConverter creates a new ImageConverter.
func NewImageConverter() *ImageConverter {
	return &ImageConverter{}
}

// ConvertToPNG converts image data to PNG format.
// Returns the PNG data, width, height, and any error.
func (c *ImageConverter) ConvertToPNG(data []byte) ([]byte, int, int, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decoding image (format=%s): %w", format, err)
	}

	bounds := img.Bounds()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, 0, 0, fmt.Errorf("encoding to PNG: %w", err)
	}

	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

// ConvertToPNGReader converts image data from a reader to PNG format.
func (c *ImageConverter) ConvertToPNGReader(r io.Reader) ([]byte, int, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading image data: %w", err)
	}
	return c.ConvertToPNG(data)
}

// GetImageDimensions returns the width and height of an image without full
// conversion.
func (c *ImageConverter) GetImageDimensions(data []byte) (int, int, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image config: %w", err)
	}
	return config.Width, config.Height, nil
}

// IsSupportedImage checks if the content type is a supported image format.
func (c *ImageConverter) IsSupportedImage(contentType string) bool {
	switch contentType {
	case "image/png", "image/jpeg", "image/jpg", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// IsVideo checks if the content type indicates a supported video format.
// Videos are stored as-is, never converted.
func (c *ImageConverter) IsVideo(contentType string) bool {
	switch contentType {
	case "video/mp4", "video/webm", "video/quicktime":
		return true
	default:
		return false
	}
}
