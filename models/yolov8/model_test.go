package yolov8

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mahjong/models/model"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

func testArgs() model.NewModelArgs {
	return model.NewModelArgs{
		Name:       model.ModelNameYOLOv8,
		NumClasses: 34,
		Preprocess: preprocess.GetYOLOv8Config(640),
		Options:    postprocess.DefaultOptions(),
	}
}

func TestNewModelValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.NewModelArgs)
	}{
		{name: "no classes", mutate: func(a *model.NewModelArgs) { a.NumClasses = 0 }},
		{name: "no input size", mutate: func(a *model.NewModelArgs) { a.Preprocess.InputSize = 0 }},
		{name: "iou above one", mutate: func(a *model.NewModelArgs) { a.Options.IoUThreshold = 1.5 }},
		{name: "negative confidence", mutate: func(a *model.NewModelArgs) { a.Options.ConfidenceThreshold = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := testArgs()
			tt.mutate(&args)
			_, err := NewModel(args)
			assert.Error(t, err)
		})
	}
}

func TestModelOptions(t *testing.T) {
	m, err := NewModel(testArgs())
	require.NoError(t, err)

	opts := m.Options()
	assert.Equal(t, model.ModelNameYOLOv8, opts.Name)
	assert.Equal(t, model.ModelFamilyYOLO, opts.Family)
	assert.Equal(t, 640, opts.InputSize)
	assert.Equal(t, 34, opts.NumClasses)
}

// TestModelRoundTrip runs a photo through PreProcess, fabricates the network output for a tile
// seen in letterbox space and checks PostProcess lands it in photo coordinates.
func TestModelRoundTrip(t *testing.T) {
	m, err := NewModel(testArgs())
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{A: 255})

	res, err := m.PreProcess(img)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 640, 640}, res.Tensor.Shape)
	assert.InDelta(t, 0.5, res.Padding.Scale, 1e-9)
	assert.Equal(t, 140, res.Padding.PadY)

	const rows, anchors = 38, 2
	data := make([]float32, rows*anchors)
	// anchor 0: tile 7 at (320, 320) 40x60
	data[0*anchors+0], data[1*anchors+0], data[2*anchors+0], data[3*anchors+0] = 320, 320, 40, 60
	data[(4+7)*anchors+0] = 0.8
	// anchor 1: below threshold
	data[0*anchors+1], data[1*anchors+1], data[2*anchors+1], data[3*anchors+1] = 100, 320, 40, 60
	data[(4+2)*anchors+1] = 0.1

	out, err := postprocess.NewOutput(data, 1, rows, anchors)
	require.NoError(t, err)

	dets, err := m.PostProcess(out, res.Padding)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 7, dets[0].ClassID)
	assert.InDelta(t, 600, dets[0].X1, 1e-3)
	assert.InDelta(t, 300, dets[0].Y1, 1e-3)
	assert.InDelta(t, 680, dets[0].X2, 1e-3)
	assert.InDelta(t, 420, dets[0].Y2, 1e-3)
}

func TestModelPostProcessShapeMismatch(t *testing.T) {
	m, err := NewModel(testArgs())
	require.NoError(t, err)

	out, err := postprocess.NewOutput(make([]float32, 10*5), 10, 5)
	require.NoError(t, err)

	_, err = m.PostProcess(out, preprocess.PaddingInfo{Scale: 1, OriginalWidth: 640, OriginalHeight: 640})
	assert.ErrorIs(t, err, postprocess.ErrShapeMismatch)
}
