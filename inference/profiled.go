package inference

import (
	"context"
	"sync"
	"time"

	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// Profiled wraps a backend with performance counters.
type Profiled struct {
	backend        Backend
	inferenceCount int64
	failures       int64
	totalTime      time.Duration
	mu             sync.RWMutex
}

// PerformanceMetrics is a snapshot of the counters kept by Profiled.
type PerformanceMetrics struct {
	InferenceCount int64         `json:"inference_count"`
	Failures       int64         `json:"failures"`
	TotalTime      time.Duration `json:"total_time"`
	AverageTime    time.Duration `json:"average_time"`
	ThroughputFPS  float64       `json:"throughput_fps"`
}

// NewProfiled wraps backend.
func NewProfiled(backend Backend) *Profiled {
	return &Profiled{backend: backend}
}

// Run executes the backend with performance tracking.
func (p *Profiled) Run(ctx context.Context, input *preprocess.Tensor) (*postprocess.Output, error) {
	start := time.Now()
	out, err := p.backend.Run(ctx, input)
	duration := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.inferenceCount++
	p.totalTime += duration
	if err != nil {
		p.failures++
	}

	return out, err
}

// InputSpec returns the wrapped backend's spec.
func (p *Profiled) InputSpec() InputSpec {
	return p.backend.InputSpec()
}

// Close closes the wrapped backend.
func (p *Profiled) Close() error {
	return p.backend.Close()
}

// GetPerformanceMetrics returns the current performance statistics.
//
// Returns:
//   - PerformanceMetrics: Counts, cumulative and average latency.
func (p *Profiled) GetPerformanceMetrics() PerformanceMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m := PerformanceMetrics{
		InferenceCount: p.inferenceCount,
		Failures:       p.failures,
		TotalTime:      p.totalTime,
	}
	if p.inferenceCount > 0 {
		m.AverageTime = p.totalTime / time.Duration(p.inferenceCount)
		if m.AverageTime > 0 {
			m.ThroughputFPS = float64(time.Second) / float64(m.AverageTime)
		}
	}

	return m
}

// ResetMetrics clears all performance counters.
func (p *Profiled) ResetMetrics() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inferenceCount = 0
	p.failures = 0
	p.totalTime = 0
}
