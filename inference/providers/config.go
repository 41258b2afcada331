// Package providers - Inference backends for ONNX Runtime, TensorFlow Lite and OpenCV DNN.
package providers

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/inference"
)

// ErrEngineUnavailable is returned for engines that were not compiled in.
var ErrEngineUnavailable = errors.New("engine not available in this build")

// Config selects and configures an inference backend.
type Config struct {
	// Engine is the runtime: onnx (default), tflite or opencv.
	Engine inference.EngineType `json:"engine" yaml:"engine"`
	// ModelPath is the path to the model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// InputName and OutputName select the model tensors. Empty picks the first of each.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	// InputSize is used when the model declares a dynamic input size.
	InputSize int `json:"input_size" yaml:"input_size"`
	// NormalizedBoxes marks models whose box outputs are in [0, 1].
	NormalizedBoxes bool `json:"normalized_boxes" yaml:"normalized_boxes"`
	// Provider is the ONNX Runtime execution provider.
	Provider ProviderBackend `json:"provider" yaml:"provider"`
	// Optimization tunes the ONNX Runtime session.
	Optimization OptimizationConfig `json:"optimization" yaml:"optimization"`
	// CUDA, CoreML and OpenVINO hold the options of the matching provider.
	CUDA     CUDAOptions     `json:"cuda" yaml:"cuda"`
	CoreML   CoreMLOptions   `json:"coreml" yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
	// NumThreads is the TensorFlow Lite interpreter thread count.
	NumThreads int `json:"num_threads" yaml:"num_threads"`
	// Warmup is the number of throwaway inferences run after loading.
	Warmup int `json:"warmup" yaml:"warmup"`
}

// DefaultConfig returns a CPU ONNX Runtime configuration for a 640 input.
//
// Returns:
//   - Config: The default configuration. ModelPath must still be set.
//
// @example
//
//	cfg := providers.DefaultConfig()
//	cfg.ModelPath = "models/mahjong.onnx"
//	backend, err := providers.Open(cfg)
func DefaultConfig() Config {
	return Config{
		Engine:       inference.EngineONNX,
		InputSize:    640,
		Provider:     CPUProviderBackend,
		Optimization: DefaultOptimizationConfig(),
		NumThreads:   4,
	}
}

// Validate checks the configuration and fills defaults for empty fields.
func (c *Config) Validate() error {
	engine, err := inference.ParseEngine(string(c.Engine))
	if err != nil {
		return err
	}
	c.Engine = engine

	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if c.InputSize < 0 {
		return errors.Errorf("input size must not be negative, got %d", c.InputSize)
	}
	if c.InputSize == 0 {
		c.InputSize = 640
	}
	if c.Warmup < 0 {
		return errors.Errorf("warmup must not be negative, got %d", c.Warmup)
	}

	if c.Provider == "" {
		c.Provider = CPUProviderBackend
	}
	switch c.Provider {
	case CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend:
	default:
		return errors.Errorf("unsupported execution provider %q", c.Provider)
	}

	precision, err := inference.ParsePrecision(string(c.OpenVINO.Precision))
	if err != nil {
		return errors.Wrap(err, "invalid openvino options")
	}
	c.OpenVINO.Precision = precision

	return nil
}

// Open creates the backend selected by cfg.Engine.
//
// Arguments:
//   - cfg: The backend configuration.
//
// Returns:
//   - inference.Backend: The loaded backend.
//   - error: A validation or model loading error.
func Open(cfg Config) (inference.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid backend config")
	}

	var (
		backend inference.Backend
		err     error
	)
	switch cfg.Engine {
	case inference.EngineTFLite:
		backend, err = NewTFLiteBackend(cfg)
	case inference.EngineOpenCV:
		backend, err = NewOpenCVBackend(cfg)
	default:
		backend, err = NewONNXBackend(cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s backend", cfg.Engine)
	}
	return backend, nil
}
