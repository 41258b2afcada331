package inference

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// Lazy defers opening a backend until it is first used.
//
// The open function runs at most once, even under concurrent first calls. Its error is sticky:
// every later call reports the same failure without retrying.
type Lazy struct {
	load   func() (Backend, error)
	loaded atomic.Bool
	closed atomic.Bool
	mu     sync.Mutex
}

// NewLazy wraps a backend constructor.
//
// Arguments:
//   - open: Loads the model and returns the ready backend.
//
// Returns:
//   - *Lazy: A backend that loads on first use.
//
// @example
//
//	backend := inference.NewLazy(func() (inference.Backend, error) {
//	    return providers.NewONNXBackend(cfg)
//	})
func NewLazy(open func() (Backend, error)) *Lazy {
	l := &Lazy{}
	l.load = sync.OnceValues(func() (Backend, error) {
		defer l.loaded.Store(true)
		if l.closed.Load() {
			return nil, ErrClosed
		}
		b, err := open()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load model")
		}
		return b, nil
	})
	return l
}

// Get returns the loaded backend, loading it on the first call.
func (l *Lazy) Get() (Backend, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	return l.load()
}

// Loaded reports whether the open function has completed.
func (l *Lazy) Loaded() bool {
	return l.loaded.Load()
}

// Run loads the backend if needed and runs it.
func (l *Lazy) Run(ctx context.Context, input *preprocess.Tensor) (*postprocess.Output, error) {
	b, err := l.Get()
	if err != nil {
		return nil, err
	}
	return b.Run(ctx, input)
}

// InputSpec loads the backend if needed and returns its spec. A failed load yields the zero spec;
// the failure itself surfaces from Run.
func (l *Lazy) InputSpec() InputSpec {
	b, err := l.Get()
	if err != nil {
		return InputSpec{}
	}
	return b.InputSpec()
}

// Close closes the backend, waiting for a load in progress to finish first. A backend that was
// never requested is not opened. Later calls fail with ErrClosed.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Swap(true) {
		return nil
	}
	b, err := l.load()
	if err != nil {
		return nil
	}
	return b.Close()
}
