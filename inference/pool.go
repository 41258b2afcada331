package inference

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

const (
	// DefaultPoolSize is used when a non-positive pool size is requested.
	DefaultPoolSize = 4
	// DefaultAcquireTimeout bounds how long Run waits for a free backend.
	DefaultAcquireTimeout = 5 * time.Second
)

// Pool hands out a fixed set of backends so independent inferences run in parallel while each
// backend is used by one caller at a time.
type Pool struct {
	backends       chan Backend
	all            []Backend
	spec           InputSpec
	acquireTimeout time.Duration
	done           chan struct{}
	mu             sync.RWMutex
	closed         bool
	metrics        PoolMetrics
	metricsMu      sync.Mutex
}

// PoolMetrics is a snapshot of pool usage counters.
type PoolMetrics struct {
	Size            int           `json:"size"`
	InUse           int           `json:"in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	WaitTime        time.Duration `json:"wait_time"`
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithAcquireTimeout overrides DefaultAcquireTimeout. Zero disables the timeout.
func WithAcquireTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.acquireTimeout = d
	}
}

// NewPool opens size backends with open.
//
// Arguments:
//   - size: Number of backends, DefaultPoolSize when non-positive.
//   - open: Opens one backend. Called size times.
//   - opts: Pool options.
//
// Returns:
//   - *Pool: The ready pool.
//   - error: The first open failure. Backends opened before it are closed.
func NewPool(size int, open func() (Backend, error), opts ...PoolOption) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	p := &Pool{
		backends:       make(chan Backend, size),
		all:            make([]Backend, 0, size),
		acquireTimeout: DefaultAcquireTimeout,
		done:           make(chan struct{}),
	}
	p.metrics.Size = size
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < size; i++ {
		b, err := open()
		if err != nil {
			_ = p.Close()
			return nil, errors.Wrapf(err, "failed to initialize backend %d", i)
		}
		if i == 0 {
			p.spec = b.InputSpec()
		}
		p.all = append(p.all, b)
		p.backends <- b
	}

	return p, nil
}

// Acquire takes a backend out of the pool. It must be returned with Release.
//
// Arguments:
//   - ctx: Cancels the wait.
//
// Returns:
//   - Backend: A backend reserved for the caller.
//   - error: ErrClosed, ErrAcquireTimeout or the context error.
func (p *Pool) Acquire(ctx context.Context) (Backend, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	start := time.Now()
	defer func() {
		p.metricsMu.Lock()
		p.metrics.WaitTime += time.Since(start)
		p.metricsMu.Unlock()
	}()

	var timeout <-chan time.Time
	if p.acquireTimeout > 0 {
		timer := time.NewTimer(p.acquireTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case b := <-p.backends:
		p.metricsMu.Lock()
		p.metrics.InUse++
		p.metrics.TotalAcquired++
		p.metricsMu.Unlock()
		return b, nil
	case <-timeout:
		p.metricsMu.Lock()
		p.metrics.AcquireFailures++
		p.metricsMu.Unlock()
		return nil, ErrAcquireTimeout
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a backend taken with Acquire. After Close the backend is closed instead.
func (p *Pool) Release(b Backend) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	p.metricsMu.Lock()
	p.metrics.InUse--
	p.metrics.TotalReleased++
	p.metricsMu.Unlock()

	if p.closed {
		_ = b.Close()
		return
	}
	p.backends <- b
}

// Run acquires a backend, runs it and releases it.
func (p *Pool) Run(ctx context.Context, input *preprocess.Tensor) (*postprocess.Output, error) {
	b, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(b)

	return b.Run(ctx, input)
}

// InputSpec returns the input spec of the pooled backends.
func (p *Pool) InputSpec() InputSpec {
	return p.spec
}

// Metrics returns a snapshot of the usage counters.
func (p *Pool) Metrics() PoolMetrics {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	return p.metrics
}

// Close closes every idle backend and marks the pool closed. Backends still in use are closed
// when they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var errs []error
	for {
		select {
		case b := <-p.backends:
			if err := b.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			if len(errs) > 0 {
				return errors.Wrapf(errs[0], "failed to close %d backends", len(errs))
			}
			return nil
		}
	}
}
