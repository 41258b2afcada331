// Package images - Image processing utilities
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight axis-aligned box in corner form.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the box, zero for inverted boxes.
func (r Rect) Width() float32 {
	return math32.Max(0, r.X2-r.X1)
}

// Height returns the vertical extent of the box, zero for inverted boxes.
func (r Rect) Height() float32 {
	return math32.Max(0, r.Y2-r.Y1)
}

// Area returns the area of the box in square pixels.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Clamp limits the box corners to [0, width] x [0, height].
//
// Arguments:
//   - width: The maximum x coordinate.
//   - height: The maximum y coordinate.
//
// Returns:
//   - Rect: The clamped box.
func (r Rect) Clamp(width, height float32) Rect {
	return Rect{
		X1: clamp32(r.X1, 0, width),
		Y1: clamp32(r.Y1, 0, height),
		X2: clamp32(r.X2, 0, width),
		Y2: clamp32(r.Y2, 0, height),
	}
}

// ToRectangle converts the box to an integer image.Rectangle, rounding each corner.
//
// Returns:
//   - image.Rectangle: The canonical rectangle.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(
		int(math32.Round(r.X1)),
		int(math32.Round(r.Y1)),
		int(math32.Round(r.X2)),
		int(math32.Round(r.Y2)),
	).Canon()
}

// RectFromCenter builds a corner-form box from a center point and an extent.
//
// Arguments:
//   - cx, cy: The center of the box.
//   - w, h: The width and height of the box.
//
// Returns:
//   - Rect: The box as (cx-w/2, cy-h/2, cx+w/2, cy+h/2).
func RectFromCenter(cx, cy, w, h float32) Rect {
	return Rect{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// CalculateIoU measures the overlap of two boxes as Intersection over Union.
//
// The value is in [0, 1]:
//
//	IoU = Area(A ∩ B) / (Area(A) + Area(B) - Area(A ∩ B))
//
//   - 1.0 means the boxes are identical.
//   - 0.0 means the boxes do not overlap, or only touch along an edge.
//
// The intersection corners are the maximum of the top-left corners and the
// minimum of the bottom-right corners. A non-positive intersection width or
// height means no overlap and short-circuits to 0. Degenerate boxes with an
// empty union also yield 0 rather than NaN.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: The IoU score.
//
// Example Usage:
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(a, b) // 25 / (100 + 100 - 25) = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}

func clamp32(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}
