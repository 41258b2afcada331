package detector

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/inference/providers"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

const (
	inputSize = 64
	classes   = 34
)

type anchor struct {
	cx, cy, w, h float32
	class        int
	score        float32
}

// scriptedBackend checks its input and answers with fixed anchors in letterbox space.
type scriptedBackend struct {
	spec    inference.InputSpec
	anchors []anchor
	err     error
	runs    atomic.Int32
	closed  atomic.Bool
}

func newScriptedBackend(anchors ...anchor) *scriptedBackend {
	return &scriptedBackend{
		spec: inference.InputSpec{
			Size:        inputSize,
			Layout:      preprocess.ChannelOrderCHW,
			ElementType: preprocess.ElementFloat32,
			NumClasses:  classes,
		},
		anchors: anchors,
	}
}

func (b *scriptedBackend) Run(ctx context.Context, input *preprocess.Tensor) (*postprocess.Output, error) {
	b.runs.Add(1)
	if err := b.spec.Matches(input); err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}

	n := len(b.anchors)
	if n == 0 {
		n = 1
	}
	data := make([]float32, (classes+4)*n)
	for i, a := range b.anchors {
		data[0*n+i] = a.cx
		data[1*n+i] = a.cy
		data[2*n+i] = a.w
		data[3*n+i] = a.h
		data[(4+a.class)*n+i] = a.score
	}
	return postprocess.NewOutput(data, 1, classes+4, n)
}

func (b *scriptedBackend) InputSpec() inference.InputSpec { return b.spec }

func (b *scriptedBackend) Close() error {
	b.closed.Store(true)
	return nil
}

// twoTiles puts a chun right of a 1m. On a 128x72 photo the letterbox scale is 0.5 with 14 rows
// of padding on top.
func twoTiles() []anchor {
	return []anchor{
		{cx: 32, cy: 32, w: 4, h: 6, class: 27, score: 0.9},
		{cx: 10, cy: 32, w: 4, h: 6, class: 0, score: 0.8},
		{cx: 50, cy: 32, w: 4, h: 6, class: 3, score: 0.1},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend.ModelPath = "tiles.onnx"
	cfg.Backend.InputSize = inputSize
	cfg.Runtime.Lazy = false
	return cfg
}

func testPhoto() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 128, 72))
	for y := 0; y < 72; y++ {
		for x := 0; x < 128; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

func newTestDetector(t *testing.T, backend inference.Backend) *Detector {
	t.Helper()
	log, _ := test.NewNullLogger()
	d, err := New(testConfig(), backend, WithLogger(log))
	require.NoError(t, err)
	return d
}

func TestDetect(t *testing.T) {
	d := newTestDetector(t, newScriptedBackend(twoTiles()...))

	dets, err := d.Detect(context.Background(), testPhoto())
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, 0, dets[0].ClassID)
	assert.InDelta(t, 16, dets[0].X1, 1e-3)
	assert.InDelta(t, 30, dets[0].Y1, 1e-3)
	assert.InDelta(t, 24, dets[0].X2, 1e-3)
	assert.InDelta(t, 42, dets[0].Y2, 1e-3)

	assert.Equal(t, 27, dets[1].ClassID)
	assert.InDelta(t, 60, dets[1].X1, 1e-3)
	assert.InDelta(t, 68, dets[1].X2, 1e-3)
}

func TestDetectTiles(t *testing.T) {
	d := newTestDetector(t, newScriptedBackend(twoTiles()...))

	tiles, err := d.DetectTiles(context.Background(), testPhoto())
	require.NoError(t, err)
	assert.Equal(t, []string{"1m", "chun"}, tiles)
}

func TestDetectTilesNothingFound(t *testing.T) {
	d := newTestDetector(t, newScriptedBackend())

	tiles, err := d.DetectTiles(context.Background(), testPhoto())
	require.NoError(t, err)
	assert.Empty(t, tiles)
}

func TestDetectBytes(t *testing.T) {
	d := newTestDetector(t, newScriptedBackend(twoTiles()...))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testPhoto()))

	dets, err := d.DetectBytes(context.Background(), buf.Bytes())
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, "1m", dets[0].Name)
	assert.Equal(t, "chun", dets[1].Name)
	assert.InDelta(t, 0.9, dets[1].Confidence, 1e-6)
}

func TestDetectInvalidInput(t *testing.T) {
	backend := newScriptedBackend(twoTiles()...)
	d := newTestDetector(t, backend)

	_, err := d.DetectBytes(context.Background(), []byte("not an image"))
	assert.ErrorIs(t, err, preprocess.ErrInvalidInput)

	_, err = d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 10)))
	assert.ErrorIs(t, err, preprocess.ErrInvalidInput)

	assert.Zero(t, backend.runs.Load())
}

func TestDetectBackendError(t *testing.T) {
	backend := newScriptedBackend()
	backend.err = errors.New("device lost")
	d := newTestDetector(t, backend)

	_, err := d.Detect(context.Background(), testPhoto())
	assert.ErrorContains(t, err, "device lost")
}

func TestDetectCancelled(t *testing.T) {
	backend := newScriptedBackend(twoTiles()...)
	d := newTestDetector(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Detect(ctx, testPhoto())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, backend.runs.Load())
}

func TestNewCatalogMismatch(t *testing.T) {
	backend := newScriptedBackend()
	backend.spec.NumClasses = 80

	_, err := New(testConfig(), backend)
	assert.ErrorContains(t, err, "catalog has 34 classes but the model reports 80")
}

func TestDetectHWCUint8Backend(t *testing.T) {
	backend := newScriptedBackend(twoTiles()...)
	backend.spec.Layout = preprocess.ChannelOrderHWC
	backend.spec.ElementType = preprocess.ElementUint8
	d := newTestDetector(t, backend)

	tiles, err := d.DetectTiles(context.Background(), testPhoto())
	require.NoError(t, err)
	assert.Equal(t, []string{"1m", "chun"}, tiles)
}

func TestDetectLogsStageTimings(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	d, err := New(testConfig(), newScriptedBackend(twoTiles()...), WithLogger(log))
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), testPhoto())
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "detect", entry.Message)
	assert.Equal(t, 2, entry.Data["detections"])
	assert.Contains(t, entry.Data, "inference")
}

func TestBuilderLazyDefersLoading(t *testing.T) {
	var opens atomic.Int32
	backend := newScriptedBackend(twoTiles()...)

	cfg := testConfig()
	cfg.Runtime.Lazy = true
	log, _ := test.NewNullLogger()

	d, err := NewBuilder().
		WithConfig(cfg).
		WithLogger(log).
		WithOpener(func(providers.Config) (inference.Backend, error) {
			opens.Add(1)
			return backend, nil
		}).
		Build()
	require.NoError(t, err)
	assert.Zero(t, opens.Load())

	for i := 0; i < 3; i++ {
		tiles, err := d.DetectTiles(context.Background(), testPhoto())
		require.NoError(t, err)
		assert.Equal(t, []string{"1m", "chun"}, tiles)
	}
	assert.Equal(t, int32(1), opens.Load())

	require.NoError(t, d.Close())
	assert.True(t, backend.closed.Load())
}

func TestBuilderPoolAndProfile(t *testing.T) {
	var opens atomic.Int32

	cfg := testConfig()
	cfg.Runtime.PoolSize = 2
	cfg.Runtime.Profile = true
	cfg.Runtime.AcquireTimeout = time.Second
	log, _ := test.NewNullLogger()

	d, err := NewBuilder().
		WithConfig(cfg).
		WithLogger(log).
		WithOpener(func(providers.Config) (inference.Backend, error) {
			opens.Add(1)
			return newScriptedBackend(twoTiles()...), nil
		}).
		Build()
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, int32(2), opens.Load())

	_, err = d.Detect(context.Background(), testPhoto())
	require.NoError(t, err)

	metrics, ok := d.Metrics()
	require.True(t, ok)
	assert.Equal(t, int64(1), metrics.InferenceCount)
}

func TestBuilderErrors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Postprocess.IoUThreshold = 2
		_, err := NewBuilder().WithConfig(cfg).WithBackend(newScriptedBackend()).Build()
		assert.ErrorContains(t, err, "IoU threshold")
	})

	t.Run("nil backend", func(t *testing.T) {
		_, err := NewBuilder().WithBackend(nil).WithConfig(testConfig()).Build()
		assert.ErrorContains(t, err, "backend is nil")
	})

	t.Run("open failure", func(t *testing.T) {
		_, err := NewBuilder().
			WithConfig(testConfig()).
			WithOpener(func(providers.Config) (inference.Backend, error) {
				return nil, errors.New("no such model")
			}).
			Build()
		assert.ErrorContains(t, err, "no such model")
	})

	t.Run("lazy open failure surfaces on detect", func(t *testing.T) {
		cfg := testConfig()
		cfg.Runtime.Lazy = true
		log, _ := test.NewNullLogger()
		d, err := NewBuilder().
			WithConfig(cfg).
			WithLogger(log).
			WithOpener(func(providers.Config) (inference.Backend, error) {
				return nil, errors.New("no such model")
			}).
			Build()
		require.NoError(t, err)

		_, err = d.Detect(context.Background(), testPhoto())
		assert.ErrorContains(t, err, "no such model")
	})

	t.Run("missing model path", func(t *testing.T) {
		_, err := NewBuilder().Build()
		assert.ErrorContains(t, err, "model path is required")
	})
}

func TestBuilderInjectedBackend(t *testing.T) {
	log, _ := test.NewNullLogger()
	d := NewBuilder().WithBackend(newScriptedBackend(twoTiles()...)).WithLogger(log).MustBuild()

	tiles, err := d.DetectTiles(context.Background(), testPhoto())
	require.NoError(t, err)
	assert.Equal(t, []string{"1m", "chun"}, tiles)
}
