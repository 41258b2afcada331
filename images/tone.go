package images

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/disintegration/imaging"
)

// Grayscale converts an image to grayscale while keeping three identical colour channels, so the
// result can still be fed to a model that expects RGB input.
//
// Arguments:
//   - img: The source image to convert.
//
// Returns:
//   - image.Image: A new grayscale image with the same dimensions.
func Grayscale(img image.Image) image.Image {
	return imaging.Grayscale(img)
}

// AutoContrast stretches each colour channel so its darkest populated level maps to 0 and its
// brightest populated level maps to 255. Channels with a single populated level are left as is.
//
// Arguments:
//   - img: The source image.
//
// Returns:
//   - image.Image: A new contrast-stretched image.
//
// @example
// stretched := AutoContrast(Grayscale(photo))
func AutoContrast(img image.Image) image.Image {
	hist := histogram.NewRGBAHistogram(img)
	lutR := stretchTable(hist.R.Bins)
	lutG := stretchTable(hist.G.Bins)
	lutB := stretchTable(hist.B.Bins)

	return adjust.Apply(img, func(c color.RGBA) color.RGBA {
		return color.RGBA{R: lutR[c.R], G: lutG[c.G], B: lutB[c.B], A: c.A}
	})
}

// stretchTable builds a 256 entry lookup table mapping [lo, hi] linearly onto [0, 255].
func stretchTable(bins []int) [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(i)
	}

	lo, hi := -1, -1
	for i := 0; i < len(bins) && i < 256; i++ {
		if bins[i] == 0 {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}
	if lo < 0 || hi <= lo {
		return lut
	}

	scale := 255.0 / float64(hi-lo)
	offset := -float64(lo) * scale
	for i := range lut {
		// Levels truncate, as the training preprocessing did.
		v := float64(float64(i)*scale) + offset
		switch {
		case v < 0:
			lut[i] = 0
		case v > 255:
			lut[i] = 255
		default:
			lut[i] = uint8(v)
		}
	}
	return lut
}
