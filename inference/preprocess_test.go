package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestLetterboxGeometry(t *testing.T) {
	tests := []struct {
		name       string
		w, h, size int
		scale      float32
		padX, padY float32
	}{
		{"wide image pads vertically", 200, 100, 64, 0.32, 0, 16},
		{"tall image pads horizontally", 100, 200, 64, 0.32, 16, 0},
		{"square image at input size", 64, 64, 64, 1, 0, 0},
		{"hd frame into 640", 1280, 720, 640, 0.5, 0, 140},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb, err := Letterbox(solid(tt.w, tt.h, color.RGBA{255, 0, 0, 255}), tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.size, lb.Size)
			assert.Len(t, lb.Data, 3*tt.size*tt.size)
			assert.InDelta(t, tt.scale, lb.Info.Scale, 1e-6)
			assert.Equal(t, tt.padX, lb.Info.OffsetX)
			assert.Equal(t, tt.padY, lb.Info.OffsetY)
		})
	}
}

func TestLetterboxPixels(t *testing.T) {
	lb, err := Letterbox(solid(200, 100, color.RGBA{255, 0, 0, 255}), 64)
	require.NoError(t, err)

	channel := 64 * 64
	// Row 0 is border, row 32 is image.
	border := 0*64 + 10
	inside := 32*64 + 10

	assert.Equal(t, PadValue, lb.Data[border])
	assert.Equal(t, PadValue, lb.Data[channel+border])
	assert.Equal(t, PadValue, lb.Data[2*channel+border])

	assert.InDelta(t, 1.0, lb.Data[inside], 1e-6)
	assert.InDelta(t, 0.0, lb.Data[channel+inside], 1e-6)
	assert.InDelta(t, 0.0, lb.Data[2*channel+inside], 1e-6)
}

func TestLetterboxInvalid(t *testing.T) {
	_, err := Letterbox(nil, 640)
	assert.Error(t, err)

	_, err = Letterbox(solid(10, 10, color.RGBA{}), 0)
	assert.Error(t, err)

	_, err = Letterbox(image.NewRGBA(image.Rect(0, 0, 0, 0)), 640)
	assert.Error(t, err)
}
