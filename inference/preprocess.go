package inference

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-dms/models/postprocess"
)

// PadValue is the gray level used to fill the letterbox border, as a fraction of 255.
const PadValue = float32(128) / 255

// Letterboxed is a model input built from one image.
type Letterboxed struct {
	// Data is the CHW float32 input, RGB order, values in [0, 1].
	Data []float32
	// Size is the side of the square network input.
	Size int
	// Info maps network coordinates back to the original image.
	Info postprocess.PreprocessInfo
}

// Letterbox scales an image uniformly into a size x size square, centers it, pads the
// border with gray and lays the pixels out channel by channel.
//
// Arguments:
//   - img: The image to prepare.
//   - size: The side of the square network input, e.g. 640.
//
// Returns:
//   - *Letterboxed: The input data and the mapping back to image pixels.
//   - error: An error if the image or size is empty.
//
// Example:
//
//	lb, err := Letterbox(img, 640)
//	raw, err := engine.Run(ctx, lb.Data)
func Letterbox(img image.Image, size int) (*Letterboxed, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if size <= 0 {
		return nil, errors.Errorf("invalid input size %d", size)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("empty image %dx%d", w, h)
	}

	scale := math32.Min(float32(size)/float32(w), float32(size)/float32(h))
	newW := clampDim(int(float32(w)*scale+0.5), size)
	newH := clampDim(int(float32(h)*scale+0.5), size)
	padX := (size - newW) / 2
	padY := (size - newH) / 2

	scaled := img
	if newW != w || newH != h {
		scaled = resize.Resize(uint(newW), uint(newH), img, resize.Bilinear)
	}

	channelSize := size * size
	data := make([]float32, channelSize*3)
	for i := range data {
		data[i] = PadValue
	}
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	origin := scaled.Bounds().Min
	for y := 0; y < newH; y++ {
		row := (y + padY) * size
		for x := 0; x < newW; x++ {
			r, g, b, _ := scaled.At(origin.X+x, origin.Y+y).RGBA()
			i := row + x + padX
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
		}
	}

	return &Letterboxed{
		Data: data,
		Size: size,
		Info: postprocess.PreprocessInfo{
			Scale:   scale,
			OffsetX: float32(padX),
			OffsetY: float32(padY),
		},
	}, nil
}

func clampDim(v, size int) int {
	if v < 1 {
		return 1
	}
	if v > size {
		return size
	}
	return v
}
