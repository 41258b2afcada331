package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mahjong/models/model"
)

func TestNewModel(t *testing.T) {
	m, err := NewModel(DefaultTileModelArgs("mahjong.onnx"))
	require.NoError(t, err)

	opts := m.Options()
	assert.Equal(t, model.ModelNameYOLOv8, opts.Name)
	assert.Equal(t, "mahjong.onnx", opts.Path)
	assert.Equal(t, 34, opts.NumClasses)
	assert.Equal(t, 640, opts.InputSize)
}

func TestNewModelUnsupported(t *testing.T) {
	args := DefaultTileModelArgs("x.onnx")
	args.Name = "rtdetr"

	_, err := NewModel(args)
	assert.ErrorContains(t, err, "unsupported model name")
}
