package detector

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-mahjong/images"
	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/models"
	"github.com/nvr-ai/go-mahjong/models/model"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// TileDetection is a detection labelled with its catalog name.
type TileDetection struct {
	postprocess.Detection
	Name string `json:"name"`
}

// Detector finds mahjong tiles in photos. It is safe for concurrent use; concurrency is bounded by
// the backend.
type Detector struct {
	cfg      Config
	backend  inference.Backend
	catalog  *models.OutputClassSet
	log      logrus.FieldLogger
	pipeline func() (model.Model, error)
}

// Option customizes a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for stage timings.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Detector) {
		if log != nil {
			d.log = log
		}
	}
}

// WithCatalog replaces the tile catalog.
func WithCatalog(catalog *models.OutputClassSet) Option {
	return func(d *Detector) {
		if catalog != nil {
			d.catalog = catalog
		}
	}
}

// New creates a detector on top of a backend.
//
// The model pipeline is derived from the backend input spec. Backends that are already loaded are
// inspected immediately, so a catalog that does not match the model class count fails here. Lazy
// backends are inspected on the first detection.
//
// Arguments:
//   - cfg: The detector configuration.
//   - backend: The inference backend. The detector owns it and closes it in Close.
//   - opts: Optional logger and catalog.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if the catalog does not match the model.
//
// @example
//
//	d, err := detector.New(cfg, backend, detector.WithLogger(log))
//	tiles, err := d.DetectTiles(ctx, img)
func New(cfg Config, backend inference.Backend, opts ...Option) (*Detector, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	d := &Detector{
		cfg:     cfg,
		backend: backend,
		catalog: models.MahjongTiles,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pipeline = sync.OnceValues(d.build)

	if lazy, ok := backend.(interface{ Loaded() bool }); ok && !lazy.Loaded() {
		return d, nil
	}
	if _, err := d.pipeline(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Detector) build() (model.Model, error) {
	spec := d.backend.InputSpec()
	if spec.NumClasses != 0 && spec.NumClasses != d.catalog.Len() {
		return nil, errors.Errorf("catalog has %d classes but the model reports %d", d.catalog.Len(), spec.NumClasses)
	}

	args, err := d.cfg.modelArgs(spec, d.catalog.Len())
	if err != nil {
		return nil, err
	}
	m, err := models.NewModel(args)
	if err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"model":   args.Name,
		"size":    args.Preprocess.InputSize,
		"layout":  args.Preprocess.ChannelOrder,
		"element": args.Preprocess.ElementType,
		"classes": args.NumClasses,
	}).Info("detector ready")

	return m, nil
}

// Classes returns the tile catalog.
func (d *Detector) Classes() *models.OutputClassSet {
	return d.catalog
}

// Detect finds tiles in a photo.
//
// Arguments:
//   - ctx: Cancels the wait for a backend.
//   - img: The photo.
//
// Returns:
//   - []postprocess.Detection: Detections in photo pixel coordinates ordered left to right.
//   - error: preprocess.ErrInvalidInput for empty photos, postprocess.ErrShapeMismatch for
//     unexpected network output, or a backend error.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := d.pipeline()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pre, err := m.PreProcess(img)
	if err != nil {
		return nil, err
	}
	preprocessed := time.Now()

	out, err := d.backend.Run(ctx, pre.Tensor)
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	inferred := time.Now()

	dets, err := m.PostProcess(out, pre.Padding)
	if err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"preprocess":  preprocessed.Sub(start),
		"inference":   inferred.Sub(preprocessed),
		"postprocess": time.Since(inferred),
		"detections":  len(dets),
	}).Debug("detect")

	return dets, nil
}

// DetectTiles finds tiles in a photo and returns their names ordered left to right.
func (d *Detector) DetectTiles(ctx context.Context, img image.Image) ([]string, error) {
	dets, err := d.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	labelled, err := d.Label(dets)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(labelled))
	for i, det := range labelled {
		names[i] = det.Name
	}
	return names, nil
}

// DetectBytes decodes an encoded JPEG, PNG or WebP photo and finds tiles in it.
func (d *Detector) DetectBytes(ctx context.Context, data []byte) ([]TileDetection, error) {
	img, err := (&images.Image{Format: images.FormatUnknown, Data: data}).Decode()
	if err != nil {
		return nil, errors.Wrap(preprocess.ErrInvalidInput, err.Error())
	}
	dets, err := d.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	return d.Label(dets)
}

// Label attaches catalog names to detections.
func (d *Detector) Label(dets []postprocess.Detection) ([]TileDetection, error) {
	out := make([]TileDetection, len(dets))
	for i, det := range dets {
		name, err := d.catalog.Name(det.ClassID)
		if err != nil {
			return nil, errors.Wrap(postprocess.ErrShapeMismatch, err.Error())
		}
		out[i] = TileDetection{Detection: det, Name: name}
	}
	return out, nil
}

// Metrics returns the latency metrics when profiling is enabled.
func (d *Detector) Metrics() (inference.PerformanceMetrics, bool) {
	backend := d.backend
	if lazy, ok := backend.(*inference.Lazy); ok {
		if !lazy.Loaded() {
			return inference.PerformanceMetrics{}, false
		}
		b, err := lazy.Get()
		if err != nil {
			return inference.PerformanceMetrics{}, false
		}
		backend = b
	}

	p, ok := backend.(*inference.Profiled)
	if !ok {
		return inference.PerformanceMetrics{}, false
	}
	return p.GetPerformanceMetrics(), true
}

// Close releases the backend.
func (d *Detector) Close() error {
	return d.backend.Close()
}
