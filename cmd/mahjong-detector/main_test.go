package main

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mahjong/inference"
)

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postprocess:
  confidence_threshold: 0.6
backend:
  model_path: from-file.onnx
`), 0o600))

	cfg, err := loadConfig(options{config: path, confidence: -1, iou: 0.3, engine: "tflite", verbose: true})
	require.NoError(t, err)

	assert.Equal(t, "from-file.onnx", cfg.Backend.ModelPath)
	assert.Equal(t, inference.EngineTFLite, cfg.Backend.Engine)
	assert.InDelta(t, 0.6, cfg.Postprocess.ConfidenceThreshold, 1e-6)
	assert.InDelta(t, 0.3, cfg.Postprocess.IoUThreshold, 1e-6)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Runtime.Lazy)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(options{confidence: -1, iou: -1})
	require.NoError(t, err)
	assert.Equal(t, DefaultModelPath, cfg.Backend.ModelPath)
	assert.InDelta(t, 0.25, cfg.Postprocess.ConfidenceThreshold, 1e-6)

	_, err = loadConfig(options{confidence: 3, iou: -1})
	assert.Error(t, err)
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("a"), 0o600))
	extra := filepath.Join(t.TempDir(), "z.webp")
	require.NoError(t, os.WriteFile(extra, []byte("z"), 0o600))

	files, err := collect(dir, []string{extra})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), files[0].Path)
	assert.Equal(t, extra, files[2].Path)

	_, err = collect("", []string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}

func TestAnnotatedNameKeepsExtension(t *testing.T) {
	assert.Equal(t, "a.jpg.png", annotatedName("/photos/a.jpg"))
	assert.Equal(t, "a.png.png", annotatedName("/photos/a.png"))
	assert.NotEqual(t, annotatedName("a.jpg"), annotatedName("a.png"))
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), annotatedName("table.webp"))
	require.NoError(t, writePNG(path, image.NewRGBA(image.Rect(0, 0, 4, 3))))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	err = writePNG(filepath.Join(t.TempDir(), "missing", "out.png"), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	assert.ErrorContains(t, err, "failed to create annotated image")
}

func TestLoadConfigPrecision(t *testing.T) {
	cfg, err := loadConfig(options{confidence: -1, iou: -1, provider: "openvino", precision: "fp16"})
	require.NoError(t, err)
	assert.Equal(t, inference.PrecisionFP16, cfg.Backend.OpenVINO.Precision)

	_, err = loadConfig(options{confidence: -1, iou: -1, precision: "int8"})
	assert.ErrorContains(t, err, "unsupported precision")
}
