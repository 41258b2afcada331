//go:build gocv

package preprocess

import (
	"image"

	"gocv.io/x/gocv"
)

func init() {
	RegisterResampler("opencv", OpenCVResampler{})
}

// OpenCVResampler resizes through OpenCV's area/linear interpolation. It needs the gocv build tag
// and a local OpenCV installation.
type OpenCVResampler struct{}

// Resample implements Resampler. It falls back to bilinear when the image cannot be converted.
func (OpenCVResampler) Resample(img image.Image, width, height int) image.Image {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return BilinearResampler{}.Resample(img, width, height)
	}
	defer src.Close()

	interpolation := gocv.InterpolationLinear
	if width < img.Bounds().Dx() {
		interpolation = gocv.InterpolationArea
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, interpolation)

	out, err := dst.ToImage()
	if err != nil {
		return BilinearResampler{}.Resample(img, width, height)
	}
	return out
}
