// Package images - Image geometry and decoding utilities.
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight bounding box in original image pixel space.
//
// Coordinates stay in floating point through decoding and suppression; they are
// only truncated to integers by ToImageRect when a collaborator renders them.
type Rect struct {
	X1 float32 `json:"x1" yaml:"x1"`
	Y1 float32 `json:"y1" yaml:"y1"`
	X2 float32 `json:"x2" yaml:"x2"`
	Y2 float32 `json:"y2" yaml:"y2"`
}

// Width returns the horizontal extent of the box, or 0 for an inverted box.
func (r Rect) Width() float32 {
	return math32.Max(0, r.X2-r.X1)
}

// Height returns the vertical extent of the box, or 0 for an inverted box.
func (r Rect) Height() float32 {
	return math32.Max(0, r.Y2-r.Y1)
}

// Area returns the area of the box in square pixels.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Empty reports whether the box has no area, including boxes with NaN corners.
func (r Rect) Empty() bool {
	if math32.IsNaN(r.X1) || math32.IsNaN(r.Y1) || math32.IsNaN(r.X2) || math32.IsNaN(r.Y2) {
		return true
	}
	return r.X1 >= r.X2 || r.Y1 >= r.Y2
}

// Center returns the midpoint of the box.
func (r Rect) Center() (float32, float32) {
	return (r.X1 + r.X2) / 2, (r.Y1 + r.Y2) / 2
}

// ContainsPoint reports whether (x, y) lies within the box. Edges are inclusive.
func (r Rect) ContainsPoint(x, y float32) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// ContainsCenterOf reports whether the center of o lies within r.
func (r Rect) ContainsCenterOf(o Rect) bool {
	cx, cy := o.Center()
	return r.ContainsPoint(cx, cy)
}

// Clamp restricts every corner of the box to [0, width] x [0, height].
//
// Arguments:
//   - width: The image width in pixels.
//   - height: The image height in pixels.
//
// Returns:
//   - The clamped box. It may be empty if the input lay entirely outside the image.
func (r Rect) Clamp(width, height float32) Rect {
	return Rect{
		X1: clamp(r.X1, 0, width),
		Y1: clamp(r.Y1, 0, height),
		X2: clamp(r.X2, 0, width),
		Y2: clamp(r.Y2, 0, height),
	}
}

// ToImageRect truncates the box to an image.Rectangle for drawing.
func (r Rect) ToImageRect() image.Rectangle {
	return image.Rect(int(r.X1), int(r.Y1), int(r.X2), int(r.Y2)).Canon()
}

// CalculateIoU computes the Intersection over Union of two boxes.
//
// IoU is the area where the boxes overlap divided by the area they cover together:
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the boxes are identical and 0.0 means they do not overlap.
// The intersection is bounded by the larger of the two top-left corners and the
// smaller of the two bottom-right corners. Union follows inclusion-exclusion:
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// IoU penalizes scale mismatch: a small box nested inside a large one scores low
// even though both describe the same object.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0. Degenerate inputs yield 0.0.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // intersection 25, union 175. Output: 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if !(interW > 0 && interH > 0) {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if !(unionArea > 0) {
		return 0.0
	}

	return interArea / unionArea
}

func clamp(v, lo, hi float32) float32 {
	return math32.Min(hi, math32.Max(lo, v))
}
