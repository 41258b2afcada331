package preprocess

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/images"
)

// PaddingInfo records how an image was embedded into the square model input.
//
// A point (x, y) of the original image lands at (x*Scale+PadX, y*Scale+PadY) in the padded
// square. PadX and PadY are the left and top pads; any odd remainder of the padding goes to the
// right and bottom edges and never enters the transform.
type PaddingInfo struct {
	// Scale is the uniform, aspect-ratio-preserving resize factor.
	Scale float64 `json:"scale" yaml:"scale"`
	// PadX is the number of background columns left of the scaled image.
	PadX int `json:"pad_x" yaml:"pad_x"`
	// PadY is the number of background rows above the scaled image.
	PadY int `json:"pad_y" yaml:"pad_y"`
	// OriginalWidth is the width of the image before letterboxing.
	OriginalWidth int `json:"original_width" yaml:"original_width"`
	// OriginalHeight is the height of the image before letterboxing.
	OriginalHeight int `json:"original_height" yaml:"original_height"`
}

// ToOriginal maps a point in the padded square back to original image coordinates, clamped to
// [0, OriginalWidth] x [0, OriginalHeight].
func (p PaddingInfo) ToOriginal(x, y float32) (float32, float32) {
	ox := (float64(x) - float64(p.PadX)) / p.Scale
	oy := (float64(y) - float64(p.PadY)) / p.Scale
	return float32(clamp(ox, 0, float64(p.OriginalWidth))), float32(clamp(oy, 0, float64(p.OriginalHeight)))
}

// ToPadded maps a point of the original image into the padded square.
func (p PaddingInfo) ToPadded(x, y float32) (float32, float32) {
	return float32(float64(x)*p.Scale + float64(p.PadX)), float32(float64(y)*p.Scale + float64(p.PadY))
}

// RectToOriginal applies ToOriginal to both corners of a padded-space box.
//
// Arguments:
//   - r: A corner-form box in padded-square pixels.
//
// Returns:
//   - images.Rect: The box in original image pixels, clamped to the image bounds.
func (p PaddingInfo) RectToOriginal(r images.Rect) images.Rect {
	x1, y1 := p.ToOriginal(r.X1, r.Y1)
	x2, y2 := p.ToOriginal(r.X2, r.Y2)
	return images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// RectToPadded applies ToPadded to both corners of an original-space box.
func (p PaddingInfo) RectToPadded(r images.Rect) images.Rect {
	x1, y1 := p.ToPadded(r.X1, r.Y1)
	x2, y2 := p.ToPadded(r.X2, r.Y2)
	return images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// LetterboxOptions controls the canvas and resampling of Letterbox.
type LetterboxOptions struct {
	// Background fills the padding. Defaults to black.
	Background color.Color
	// Resampler scales the image. Defaults to bilinear.
	Resampler Resampler
}

// Letterbox resizes img uniformly so it fits a targetSize x targetSize square and centers it on
// a constant background canvas.
//
// The scaled size is (round(width*scale), round(height*scale)) with
// scale = min(targetSize/width, targetSize/height). The left and top pads are
// (targetSize-scaled)/2 using integer division. An image that is already targetSize x targetSize
// is copied without resampling.
//
// Arguments:
//   - img: The decoded source image. It is only read.
//   - targetSize: The side of the square model input, e.g. 640.
//   - opts: Background colour and resampler.
//
// Returns:
//   - *image.NRGBA: The padded square image.
//   - PaddingInfo: The transform applied, needed to map detections back.
//   - error: ErrInvalidInput for a non-positive target size or image dimension.
//
// @example
//
//	padded, info, err := Letterbox(photo, 640, LetterboxOptions{})
//	// photo 1280x720 -> info.Scale 0.5, info.PadX 0, info.PadY 140
func Letterbox(img image.Image, targetSize int, opts LetterboxOptions) (*image.NRGBA, PaddingInfo, error) {
	if targetSize <= 0 {
		return nil, PaddingInfo{}, errors.Wrapf(ErrInvalidInput, "target size must be positive, got %d", targetSize)
	}
	if img == nil {
		return nil, PaddingInfo{}, errors.Wrap(ErrInvalidInput, "image is nil")
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if width <= 0 || height <= 0 {
		return nil, PaddingInfo{}, errors.Wrapf(ErrInvalidInput, "invalid image dimensions: %dx%d", width, height)
	}

	if opts.Background == nil {
		opts.Background = color.Black
	}
	if opts.Resampler == nil {
		opts.Resampler = BilinearResampler{}
	}

	scale := math.Min(float64(targetSize)/float64(width), float64(targetSize)/float64(height))
	scaledWidth := clampInt(int(math.Round(float64(width)*scale)), 1, targetSize)
	scaledHeight := clampInt(int(math.Round(float64(height)*scale)), 1, targetSize)

	info := PaddingInfo{
		Scale:          scale,
		PadX:           (targetSize - scaledWidth) / 2,
		PadY:           (targetSize - scaledHeight) / 2,
		OriginalWidth:  width,
		OriginalHeight: height,
	}

	if scaledWidth == width && scaledHeight == height {
		// Nothing to resample; square inputs of the exact size land here with zero padding.
		if info.PadX == 0 && info.PadY == 0 {
			return imaging.Clone(img), info, nil
		}
		canvas := imaging.New(targetSize, targetSize, opts.Background)
		return imaging.Paste(canvas, img, image.Pt(info.PadX, info.PadY)), info, nil
	}

	scaled := opts.Resampler.Resample(img, scaledWidth, scaledHeight)
	canvas := imaging.New(targetSize, targetSize, opts.Background)

	return imaging.Paste(canvas, scaled, image.Pt(info.PadX, info.PadY)), info, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
