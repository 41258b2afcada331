package postprocess

import "github.com/nvr-ai/go-mahjong/images"

// Detection is a single detected tile in original image pixel coordinates.
type Detection struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
	// ClassID indexes the class catalog.
	ClassID int `json:"class_id"`
	// Confidence is the winning class score.
	Confidence float32 `json:"confidence"`
}

// Box returns the detection's corner-form rectangle.
func (d Detection) Box() images.Rect {
	return images.Rect{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2}
}
