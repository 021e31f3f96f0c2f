// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"image"

	// Registered decoders for the formats accepted by the loader.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
)

// Image represents a decoded image with its source format and dimensions.
type Image struct {
	// The format the image was decoded from.
	Format ImageFormat `json:"format" yaml:"format"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
	// The decoded pixels.
	Pixels image.Image `json:"-" yaml:"-"`
}

// Decode decodes raw JPEG, PNG, BMP or WebP bytes.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - *Image: The decoded image and its dimensions.
//   - error: If the data is empty, in an unknown format, or has no pixels.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.New("image data is empty")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "image decoding failed")
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, errors.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	return &Image{
		Format: ImageFormat(format),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: img,
	}, nil
}
