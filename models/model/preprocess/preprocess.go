// Package preprocess - Letterbox preprocessing that turns a decoded photo into a model input tensor.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-mahjong/images"
)

// ErrInvalidInput is returned for non-positive image dimensions or target sizes.
var ErrInvalidInput = errors.New("invalid input")

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string `json:"name" yaml:"name"`
	// InputSize is the side of the square model input.
	InputSize int `json:"input_size" yaml:"input_size"`
	// ChannelOrder defines the channel ordering (CHW or HWC).
	ChannelOrder ChannelOrder `json:"channel_order" yaml:"channel_order"`
	// ElementType is float32 for regular exports and uint8 for quantized ones.
	ElementType ElementType `json:"element_type" yaml:"element_type"`
	// NormalizationType defines how to normalize float pixel values.
	NormalizationType NormalizationType `json:"normalization" yaml:"normalization"`
	// Grayscale converts the photo to gray before letterboxing.
	Grayscale bool `json:"grayscale" yaml:"grayscale"`
	// AutoContrast stretches the histogram before letterboxing.
	AutoContrast bool `json:"auto_contrast" yaml:"auto_contrast"`
	// LetterboxColor is the color used for letterbox padding (default black).
	LetterboxColor color.Color `json:"-" yaml:"-"`
	// Resampler scales the photo (default bilinear).
	Resampler Resampler `json:"-" yaml:"-"`
}

// Result contains the preprocessed tensor and the metadata needed to map detections back.
type Result struct {
	// Tensor is the model input.
	Tensor *Tensor
	// Padding is the letterbox transform that was applied.
	Padding PaddingInfo
	// Image is the letterboxed image the tensor was built from.
	Image image.Image
}

// Preprocessor handles image preprocessing for detection models. It holds no mutable state and is
// safe for concurrent use.
type Preprocessor struct {
	config ModelConfig
	log    logrus.FieldLogger
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//
// @example
//
//	preprocessor := NewPreprocessor(GetYOLOv8Config(640))
func NewPreprocessor(config ModelConfig) *Preprocessor {
	if config.LetterboxColor == nil {
		config.LetterboxColor = color.Black
	}
	if config.Resampler == nil {
		config.Resampler = BilinearResampler{}
	}

	return &Preprocessor{
		config: config,
		log:    logrus.StandardLogger(),
	}
}

// WithLogger replaces the logger used for debug output.
func (p *Preprocessor) WithLogger(log logrus.FieldLogger) *Preprocessor {
	p.log = log
	return p
}

// Config returns the preprocessing configuration.
func (p *Preprocessor) Config() ModelConfig {
	return p.config
}

// Preprocess runs the tone stage, the letterbox and the tensor conversion.
//
// Arguments:
//   - img: The decoded photo.
//
// Returns:
//   - *Result: The tensor, padding metadata and letterboxed image.
//   - error: ErrInvalidInput for empty images, or a tensor conversion error.
func (p *Preprocessor) Preprocess(img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.Wrap(ErrInvalidInput, "image is nil")
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid image dimensions: %dx%d", b.Dx(), b.Dy())
	}

	if p.config.Grayscale {
		img = images.Grayscale(img)
	}
	if p.config.AutoContrast {
		img = images.AutoContrast(img)
	}

	padded, info, err := Letterbox(img, p.config.InputSize, LetterboxOptions{
		Background: p.config.LetterboxColor,
		Resampler:  p.config.Resampler,
	})
	if err != nil {
		return nil, err
	}

	tensor, err := NewTensor(padded, p.config.ChannelOrder, p.config.ElementType, p.config.NormalizationType)
	if err != nil {
		return nil, errors.Wrap(err, "tensor conversion failed")
	}

	p.log.WithFields(logrus.Fields{
		"model":    p.config.Name,
		"original": fmt.Sprintf("%dx%d", info.OriginalWidth, info.OriginalHeight),
		"scale":    info.Scale,
		"pad_x":    info.PadX,
		"pad_y":    info.PadY,
		"shape":    tensor.Shape,
	}).Debug("preprocessed image")

	return &Result{Tensor: tensor, Padding: info, Image: padded}, nil
}

// PreprocessImage decodes an encoded image and preprocesses it.
//
// Arguments:
//   - img: The encoded image.
//
// Returns:
//   - *Result: The preprocessing result.
//   - error: A decoding error wrapped with ErrInvalidInput, or any Preprocess error.
func (p *Preprocessor) PreprocessImage(img *images.Image) (*Result, error) {
	if img == nil {
		return nil, errors.Wrap(ErrInvalidInput, "image is nil")
	}
	decoded, err := img.Decode()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidInput, "image decoding failed: %v", err)
	}
	return p.Preprocess(decoded)
}

// BatchPreprocess processes multiple images in parallel.
//
// Arguments:
//   - imgs: Slice of decoded images to preprocess.
//   - maxConcurrency: Maximum number of images to process concurrently.
//
// Returns:
//   - []*Result: Results in input order.
//   - error: The first error encountered, in input order.
func (p *Preprocessor) BatchPreprocess(imgs []image.Image, maxConcurrency int) ([]*Result, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]*Result, len(imgs))
	errs := make([]error, len(imgs))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, img := range imgs {
		wg.Add(1)
		go func(idx int, img image.Image) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := p.Preprocess(img)
			if err != nil {
				errs[idx] = errors.Wrapf(err, "failed to preprocess image %d", idx)
				return
			}
			results[idx] = result
		}(i, img)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// GetYOLOv8Config returns the configuration of the shipped ONNX tile detector: NCHW float32
// input in [0, 1], grayscale with auto-contrast, black letterbox.
//
// Arguments:
//   - inputSize: The input size (640 for the shipped model).
//
// Returns:
//   - ModelConfig: A configured ModelConfig for YOLOv8.
func GetYOLOv8Config(inputSize int) ModelConfig {
	return ModelConfig{
		Name:              "yolov8",
		InputSize:         inputSize,
		ChannelOrder:      ChannelOrderCHW,
		ElementType:       ElementFloat32,
		NormalizationType: NormalizeZeroToOne,
		Grayscale:         true,
		AutoContrast:      true,
		LetterboxColor:    color.Black,
		Resampler:         BilinearResampler{},
	}
}

// GetYOLOv8TFLiteConfig returns the configuration for TFLite exports of the same model, which
// take NHWC input.
func GetYOLOv8TFLiteConfig(inputSize int) ModelConfig {
	cfg := GetYOLOv8Config(inputSize)
	cfg.Name = "yolov8-tflite"
	cfg.ChannelOrder = ChannelOrderHWC
	return cfg
}
