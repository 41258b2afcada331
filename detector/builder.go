package detector

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/inference/providers"
	"github.com/nvr-ai/go-mahjong/models"
)

// Builder assembles a Detector with a fluent API. The first error short-circuits every later step
// and is returned by Build.
type Builder struct {
	cfg     *Config
	backend inference.Backend
	open    func(providers.Config) (inference.Backend, error)
	catalog *models.OutputClassSet
	log     logrus.FieldLogger
	err     error
}

// NewBuilder creates a new detector builder.
//
// Returns:
//   - *Builder: The builder, opening backends with providers.Open.
//
// @example
//
//	d, err := detector.NewBuilder().
//	    WithConfigFile("mahjong.yaml").
//	    WithModelPath("models/mahjong.onnx").
//	    Build()
func NewBuilder() *Builder {
	return &Builder{open: providers.Open}
}

// WithConfig sets the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	if b.HasError() {
		return b
	}
	b.cfg = &cfg
	return b
}

// WithConfigFile loads the configuration from a YAML file.
func (b *Builder) WithConfigFile(path string) *Builder {
	if b.HasError() {
		return b
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		b.err = err
		return b
	}
	b.cfg = &cfg
	return b
}

// WithModelPath overrides the model file of the configuration.
func (b *Builder) WithModelPath(path string) *Builder {
	if b.HasError() {
		return b
	}
	if path != "" {
		b.config().Backend.ModelPath = path
	}
	return b
}

// WithBackend uses an already opened backend instead of opening one from the configuration.
func (b *Builder) WithBackend(backend inference.Backend) *Builder {
	if b.HasError() {
		return b
	}
	if backend == nil {
		b.err = errors.New("backend is nil")
		return b
	}
	b.backend = backend
	return b
}

// WithOpener replaces the function that opens backends from the backend configuration.
func (b *Builder) WithOpener(open func(providers.Config) (inference.Backend, error)) *Builder {
	if b.HasError() {
		return b
	}
	if open == nil {
		b.err = errors.New("opener is nil")
		return b
	}
	b.open = open
	return b
}

// WithCatalog replaces the tile catalog.
func (b *Builder) WithCatalog(catalog *models.OutputClassSet) *Builder {
	if b.HasError() {
		return b
	}
	b.catalog = catalog
	return b
}

// WithLogger sets the logger. Without one the builder creates a logger from the configured level.
func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	if b.HasError() {
		return b
	}
	b.log = log
	return b
}

// HasError checks if the builder has errors.
func (b *Builder) HasError() bool {
	return b.err != nil
}

func (b *Builder) config() *Config {
	if b.cfg == nil {
		cfg := DefaultConfig()
		b.cfg = &cfg
	}
	return b.cfg
}

// Build validates the configuration, opens the backend and creates the detector.
//
// Returns:
//   - *Detector: The detector.
//   - error: The first error met while building.
func (b *Builder) Build() (*Detector, error) {
	if b.HasError() {
		return nil, b.err
	}

	cfg := *b.config()
	if b.backend != nil && cfg.Backend.ModelPath == "" {
		// the injected backend is already loaded, the path is informational only
		cfg.Backend.ModelPath = "external"
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid detector config")
	}

	log := b.log
	if log == nil {
		log = cfg.Logger()
	}

	backend := b.backend
	if backend == nil {
		var err error
		backend, err = b.openBackend(cfg, log)
		if err != nil {
			return nil, err
		}
	}

	d, err := New(cfg, backend, WithLogger(log), WithCatalog(b.catalog))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return d, nil
}

// MustBuild builds the detector and panics if there is an error.
func (b *Builder) MustBuild() *Detector {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// openBackend layers pooling, profiling and lazy loading over the configured engine.
func (b *Builder) openBackend(cfg Config, log logrus.FieldLogger) (inference.Backend, error) {
	open := func() (inference.Backend, error) {
		log.WithFields(logrus.Fields{
			"engine": cfg.Backend.Engine,
			"model":  cfg.Backend.ModelPath,
			"pool":   cfg.Runtime.PoolSize,
		}).Info("loading model")

		var (
			backend inference.Backend
			err     error
		)
		if cfg.Runtime.PoolSize > 1 {
			backend, err = inference.NewPool(cfg.Runtime.PoolSize, func() (inference.Backend, error) {
				return b.open(cfg.Backend)
			}, inference.WithAcquireTimeout(cfg.Runtime.AcquireTimeout))
		} else {
			backend, err = b.open(cfg.Backend)
		}
		if err != nil {
			return nil, err
		}

		if cfg.Runtime.Profile {
			backend = inference.NewProfiled(backend)
		}
		return backend, nil
	}

	if cfg.Runtime.Lazy {
		return inference.NewLazy(open), nil
	}
	return open()
}
