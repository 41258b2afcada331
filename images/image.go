// Package images - Image decoding, box geometry and tone adjustments used by the detection pipeline.
package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	// Registers the GIF decoder for format sniffing.
	_ "image/gif"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image, zero when unknown before decoding.
	Width int `json:"width" yaml:"width"`
	// The height of the image, zero when unknown before decoding.
	Height int `json:"height" yaml:"height"`
}

// Decode decodes the encoded image data into an image.Image.
//
// When Format is FormatUnknown the format is sniffed from the data. Width and
// Height are filled in from the decoded bounds.
//
// Arguments:
//   - None.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the data is empty or cannot be decoded.
//
// @example
//
//	img := &Image{Format: FormatJPEG, Data: jpegBytes}
//	decoded, err := img.Decode()
func (i *Image) Decode() (image.Image, error) {
	if len(i.Data) == 0 {
		return nil, errors.New("image data is empty")
	}

	var (
		decoded image.Image
		err     error
	)
	reader := bytes.NewReader(i.Data)
	switch i.Format {
	case FormatJPEG:
		decoded, err = jpeg.Decode(reader)
	case FormatPNG:
		decoded, err = png.Decode(reader)
	case FormatWebP:
		decoded, err = webp.Decode(reader)
	default:
		decoded, err = sniff(i.Data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %q image", string(i.Format))
	}

	i.Width = decoded.Bounds().Dx()
	i.Height = decoded.Bounds().Dy()

	return decoded, nil
}

// sniff decodes data with the registered standard decoders, falling back to WebP.
func sniff(data []byte) (image.Image, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return decoded, nil
	}
	if decodedWebP, webpErr := webp.Decode(bytes.NewReader(data)); webpErr == nil {
		return decodedWebP, nil
	}
	return nil, err
}
