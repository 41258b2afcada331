// Package detector - Tile detection facade tying preprocessing, inference and decoding together.
package detector

import (
	"image/color"
	"os"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/inference/providers"
	"github.com/nvr-ai/go-mahjong/models/model"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// Config is the complete detector configuration, usually loaded from YAML.
type Config struct {
	// LogLevel is a logrus level name.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// Model configures the photo preparation.
	Model ModelConfig `json:"model" yaml:"model"`
	// Postprocess configures decoding and suppression.
	Postprocess postprocess.Options `json:"postprocess" yaml:"postprocess"`
	// Backend selects and configures the inference runtime.
	Backend providers.Config `json:"backend" yaml:"backend"`
	// Runtime controls how backends are loaded and shared.
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// ModelConfig configures the photo preparation of the detection model.
type ModelConfig struct {
	// Name is the model architecture.
	Name model.Name `json:"name" yaml:"name"`
	// Grayscale converts photos to gray before letterboxing.
	Grayscale bool `json:"grayscale" yaml:"grayscale"`
	// AutoContrast stretches the histogram before letterboxing.
	AutoContrast bool `json:"auto_contrast" yaml:"auto_contrast"`
	// Resampler is a registered resampler name.
	Resampler string `json:"resampler" yaml:"resampler"`
	// Background is the letterbox padding colour as a hex string.
	Background string `json:"background" yaml:"background"`
}

// RuntimeConfig controls backend lifetime.
type RuntimeConfig struct {
	// Lazy defers loading the model until the first detection.
	Lazy bool `json:"lazy" yaml:"lazy"`
	// PoolSize opens that many backends for parallel inference. Zero or one uses a single backend.
	PoolSize int `json:"pool_size" yaml:"pool_size"`
	// AcquireTimeout bounds the wait for a pooled backend.
	AcquireTimeout time.Duration `json:"acquire_timeout" yaml:"acquire_timeout"`
	// Profile records inference latency.
	Profile bool `json:"profile" yaml:"profile"`
}

// DefaultConfig returns the configuration of the shipped tile detector.
//
// Returns:
//   - Config: The defaults. Backend.ModelPath must still be set.
func DefaultConfig() Config {
	return Config{
		LogLevel: logrus.InfoLevel.String(),
		Model: ModelConfig{
			Name:         model.ModelNameYOLOv8,
			Grayscale:    true,
			AutoContrast: true,
			Resampler:    "bilinear",
			Background:   "#000000",
		},
		Postprocess: postprocess.DefaultOptions(),
		Backend:     providers.DefaultConfig(),
		Runtime: RuntimeConfig{
			Lazy:           true,
			AcquireTimeout: inference.DefaultAcquireTimeout,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
//
// Arguments:
//   - path: The YAML file path.
//
// Returns:
//   - Config: The merged configuration. Call Validate once flags have been applied.
//   - error: An error if the file cannot be read or parsed.
//
// @example
//
//	cfg, err := detector.LoadConfig("configs/mahjong.yaml")
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}
	return cfg, nil
}

// Validate checks the configuration and fills defaults for empty fields.
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = logrus.InfoLevel.String()
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if c.Model.Name == "" {
		c.Model.Name = model.ModelNameYOLOv8
	}
	if c.Model.Name != model.ModelNameYOLOv8 {
		return errors.Errorf("unsupported model name: %s", c.Model.Name)
	}
	if _, err := preprocess.ResamplerByName(c.Model.Resampler); err != nil {
		return err
	}
	if _, err := c.Model.background(); err != nil {
		return err
	}

	p := c.Postprocess
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return errors.Errorf("confidence threshold must be in [0, 1], got %v", p.ConfidenceThreshold)
	}
	if p.IoUThreshold < 0 || p.IoUThreshold > 1 {
		return errors.Errorf("IoU threshold must be in [0, 1], got %v", p.IoUThreshold)
	}
	if p.MaxDetections < 0 {
		return errors.Errorf("max detections must not be negative, got %d", p.MaxDetections)
	}

	if c.Runtime.PoolSize < 0 {
		return errors.Errorf("pool size must not be negative, got %d", c.Runtime.PoolSize)
	}
	if c.Runtime.AcquireTimeout <= 0 {
		c.Runtime.AcquireTimeout = inference.DefaultAcquireTimeout
	}

	return c.Backend.Validate()
}

// Logger builds a logrus logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}

func (m ModelConfig) background() (color.Color, error) {
	if m.Background == "" {
		return color.Black, nil
	}
	c, err := colorful.Hex(m.Background)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid background colour %q", m.Background)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// modelArgs builds the model arguments for a backend input spec.
func (c Config) modelArgs(spec inference.InputSpec, numClasses int) (model.NewModelArgs, error) {
	resampler, err := preprocess.ResamplerByName(c.Model.Resampler)
	if err != nil {
		return model.NewModelArgs{}, err
	}
	background, err := c.Model.background()
	if err != nil {
		return model.NewModelArgs{}, err
	}

	size := spec.Size
	if size <= 0 {
		size = c.Backend.InputSize
	}

	pre := preprocess.GetYOLOv8Config(size)
	if spec.Layout == preprocess.ChannelOrderHWC {
		pre = preprocess.GetYOLOv8TFLiteConfig(size)
	}
	pre.ElementType = spec.ElementType
	pre.Grayscale = c.Model.Grayscale
	pre.AutoContrast = c.Model.AutoContrast
	pre.Resampler = resampler
	pre.LetterboxColor = background

	post := c.Postprocess
	post.NormalizedBoxes = post.NormalizedBoxes || spec.NormalizedBoxes

	return model.NewModelArgs{
		Name:       c.Model.Name,
		Family:     model.ModelFamilyYOLO,
		Path:       c.Backend.ModelPath,
		NumClasses: numClasses,
		Preprocess: pre,
		Options:    post,
	}, nil
}
