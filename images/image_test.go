package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 100, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}
	return img
}

func TestImageDecode(t *testing.T) {
	var jpegBuf, pngBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, getTestImage(), nil))
	require.NoError(t, png.Encode(&pngBuf, getTestImage()))

	tests := []struct {
		name   string
		format ImageFormat
		data   []byte
	}{
		{"jpeg", FormatJPEG, jpegBuf.Bytes()},
		{"png", FormatPNG, pngBuf.Bytes()},
		{"sniffed png", FormatUnknown, pngBuf.Bytes()},
		{"sniffed jpeg", FormatUnknown, jpegBuf.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := &Image{Format: tt.format, Data: tt.data}
			decoded, err := img.Decode()
			require.NoError(t, err)
			assert.Equal(t, 100, decoded.Bounds().Dx())
			assert.Equal(t, 60, decoded.Bounds().Dy())
			assert.Equal(t, 100, img.Width)
			assert.Equal(t, 60, img.Height)
		})
	}
}

func TestImageDecodeErrors(t *testing.T) {
	_, err := (&Image{Format: FormatPNG}).Decode()
	assert.Error(t, err, "empty data must fail")

	_, err = (&Image{Format: FormatPNG, Data: []byte("not a png")}).Decode()
	assert.Error(t, err)

	_, err = (&Image{Data: []byte("garbage")}).Decode()
	assert.Error(t, err)
}

func TestFormatFromExtension(t *testing.T) {
	assert.Equal(t, FormatJPEG, FormatFromExtension(".JPG"))
	assert.Equal(t, FormatJPEG, FormatFromExtension("jpeg"))
	assert.Equal(t, FormatPNG, FormatFromExtension(".png"))
	assert.Equal(t, FormatWebP, FormatFromExtension(".webp"))
	assert.Equal(t, FormatUnknown, FormatFromExtension(".tiff"))
}
