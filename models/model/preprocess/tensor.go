package preprocess

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ChannelOrder defines the ordering of image channels.
type ChannelOrder int

const (
	// ChannelOrderCHW is Channel-Height-Width ordering (ONNX exports).
	ChannelOrderCHW ChannelOrder = iota
	// ChannelOrderHWC is Height-Width-Channel ordering (TFLite exports).
	ChannelOrderHWC
)

// String returns the layout name including the batch dimension.
func (o ChannelOrder) String() string {
	if o == ChannelOrderHWC {
		return "NHWC"
	}
	return "NCHW"
}

// ElementType is the numeric type of the model input.
type ElementType int

const (
	// ElementFloat32 is a float32 input, normalised according to NormalizationType.
	ElementFloat32 ElementType = iota
	// ElementUint8 is a quantized input holding raw 0-255 channel values.
	ElementUint8
)

// String returns the element type name.
func (e ElementType) String() string {
	if e == ElementUint8 {
		return "uint8"
	}
	return "float32"
}

// NormalizationType defines how float pixel values are normalized.
type NormalizationType int

const (
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne NormalizationType = iota
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone
)

// Tensor is a batch-of-one RGB image tensor ready to be bound to a model input. Exactly one of
// Float32 and Uint8 is populated, according to ElementType.
type Tensor struct {
	// Shape is [1, 3, H, W] for CHW or [1, H, W, 3] for HWC.
	Shape []int64
	// Layout is the channel ordering of the data.
	Layout ChannelOrder
	// ElementType selects which backing slice is populated.
	ElementType ElementType
	// Float32 holds the data for float models.
	Float32 []float32
	// Uint8 holds the data for quantized models.
	Uint8 []uint8
}

// Len returns the number of elements in the tensor.
func (t *Tensor) Len() int {
	if t.ElementType == ElementUint8 {
		return len(t.Uint8)
	}
	return len(t.Float32)
}

// NewTensor converts an RGB image into a model input tensor. Alpha is ignored.
//
// Arguments:
//   - img: The (letterboxed) image.
//   - order: CHW or HWC layout.
//   - elem: float32 or uint8 elements.
//   - norm: Normalization for float32 elements, ignored for uint8.
//
// Returns:
//   - *Tensor: The populated tensor.
//   - error: An error if the image is empty.
func NewTensor(img image.Image, order ChannelOrder, elem ElementType, norm NormalizationType) (*Tensor, error) {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "cannot build a tensor from a %dx%d image", width, height)
	}

	src, ok := img.(*image.NRGBA)
	if !ok || src.Bounds().Min != (image.Point{}) {
		src = imaging.Clone(img)
	}

	t := &Tensor{Layout: order, ElementType: elem}
	if order == ChannelOrderHWC {
		t.Shape = []int64{1, int64(height), int64(width), 3}
	} else {
		t.Shape = []int64{1, 3, int64(height), int64(width)}
	}

	plane := width * height
	size := plane * 3
	var put func(idx int, v uint8)
	switch elem {
	case ElementUint8:
		t.Uint8 = make([]uint8, size)
		put = func(idx int, v uint8) { t.Uint8[idx] = v }
	default:
		t.Float32 = make([]float32, size)
		divisor := float32(1)
		if norm == NormalizeZeroToOne {
			divisor = 255
		}
		put = func(idx int, v uint8) { t.Float32[idx] = float32(v) / divisor }
	}

	for y := 0; y < height; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+width*4]
		for x := 0; x < width; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			i := y*width + x
			if order == ChannelOrderHWC {
				put(i*3, r)
				put(i*3+1, g)
				put(i*3+2, b)
			} else {
				put(i, r)
				put(plane+i, g)
				put(2*plane+i, b)
			}
		}
	}

	return t, nil
}
