package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyGreedyNMS(t *testing.T) {
	dets := []Detection{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, ClassID: 1, Confidence: 0.9},
		{X1: 1, Y1: 1, X2: 11, Y2: 11, ClassID: 1, Confidence: 0.8},
		{X1: 1, Y1: 1, X2: 11, Y2: 11, ClassID: 2, Confidence: 0.7},
		{X1: 50, Y1: 50, X2: 60, Y2: 60, ClassID: 1, Confidence: 0.6},
	}

	tests := []struct {
		name   string
		config NMSConfig
		want   []Detection
	}{
		{
			name:   "class aware",
			config: NMSConfig{IoUThreshold: 0.45, ClassAware: true},
			want:   []Detection{dets[0], dets[2], dets[3]},
		},
		{
			name:   "class agnostic",
			config: NMSConfig{IoUThreshold: 0.45},
			want:   []Detection{dets[0], dets[3]},
		},
		{
			name:   "threshold above every overlap",
			config: NMSConfig{IoUThreshold: 0.99, ClassAware: true},
			want:   dets,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyGreedyNMS(dets, tt.config))
		})
	}

	assert.Nil(t, ApplyGreedyNMS(nil, NMSConfig{IoUThreshold: 0.5}))
}
