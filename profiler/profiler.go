// Package profiler - Periodic runtime and operation timing reports.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MetricsCollector supplies custom gauges for every report.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// CollectorFunc adapts a function to MetricsCollector.
type CollectorFunc func() map[string]float64

// CollectMetrics calls f.
func (f CollectorFunc) CollectMetrics() map[string]float64 { return f() }

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 30s)
	ReportInterval time.Duration
	// MaxSamples bounds the durations kept per operation (default: 1000)
	MaxSamples int
	// Logger receives the reports (default: the logrus standard logger)
	Logger logrus.FieldLogger
}

// OperationStats summarises the recorded durations of one operation.
type OperationStats struct {
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P95   time.Duration `json:"p95"`
}

// Stats is a snapshot of the profiler state.
type Stats struct {
	Uptime        time.Duration             `json:"uptime"`
	Goroutines    int                       `json:"goroutines"`
	HeapAllocated uint64                    `json:"heap_allocated"`
	HeapSys       uint64                    `json:"heap_sys"`
	NumGC         uint32                    `json:"num_gc"`
	Operations    map[string]OperationStats `json:"operations"`
	Custom        map[string]float64        `json:"custom"`
}

type timeTracker struct {
	durations []time.Duration
	count     int64
	min       time.Duration
	max       time.Duration
}

// RuntimeProfiler tracks operation timings and memory, and logs a report at a fixed interval.
// It is safe for concurrent use.
type RuntimeProfiler struct {
	opts       ProfilingOptions
	startTime  time.Time
	mu         sync.Mutex
	operations map[string]*timeTracker
	collectors []MetricsCollector
	wg         sync.WaitGroup
	cancel     context.CancelFunc
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 30 * time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 1000
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &RuntimeProfiler{
		opts:       opts,
		startTime:  time.Now(),
		operations: make(map[string]*timeTracker),
	}
}

// AddMetricsCollector registers a collector whose gauges are included in every report.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// Start emits reports until ctx is cancelled or Stop is called. Calling Start twice has no effect.
func (rp *RuntimeProfiler) Start(ctx context.Context) {
	rp.mu.Lock()
	if rp.cancel != nil {
		rp.mu.Unlock()
		return
	}
	ctx, rp.cancel = context.WithCancel(ctx)
	rp.mu.Unlock()

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()
		ticker := time.NewTicker(rp.opts.ReportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rp.report()
			}
		}
	}()
}

// Stop ends reporting and emits a final report.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	cancel := rp.cancel
	rp.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	rp.wg.Wait()
	rp.report()
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
//
// @example
//
//	done := prof.StartOperation("detect")
//	dets, err := det.Detect(ctx, img)
//	done()
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordOperation(name, time.Since(start))
	}
}

// RecordOperation adds one duration to the named operation.
func (rp *RuntimeProfiler) RecordOperation(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	t, ok := rp.operations[name]
	if !ok {
		t = &timeTracker{min: d, max: d}
		rp.operations[name] = t
	}
	t.durations = append(t.durations, d)
	if len(t.durations) > rp.opts.MaxSamples {
		t.durations = t.durations[1:]
	}
	t.count++
	t.min = min(t.min, d)
	t.max = max(t.max, d)
}

// GetCurrentStats returns a snapshot of the operations, memory and custom gauges.
func (rp *RuntimeProfiler) GetCurrentStats() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rp.mu.Lock()
	defer rp.mu.Unlock()

	stats := Stats{
		Uptime:        time.Since(rp.startTime),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocated: mem.HeapAlloc,
		HeapSys:       mem.HeapSys,
		NumGC:         mem.NumGC,
		Operations:    make(map[string]OperationStats, len(rp.operations)),
		Custom:        make(map[string]float64),
	}
	for name, t := range rp.operations {
		stats.Operations[name] = t.stats()
	}
	for _, c := range rp.collectors {
		for k, v := range c.CollectMetrics() {
			stats.Custom[k] = v
		}
	}
	return stats
}

func (t *timeTracker) stats() OperationStats {
	s := OperationStats{Count: t.count, Min: t.min, Max: t.max}
	if len(t.durations) == 0 {
		return s
	}

	sorted := make([]time.Duration, len(t.durations))
	copy(sorted, t.durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	s.Mean = total / time.Duration(len(sorted))
	s.P95 = Percentile(sorted, 0.95)
	return s
}

// Percentile returns the p-th percentile of sorted durations using the nearest rank.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.5) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}

func (rp *RuntimeProfiler) report() {
	stats := rp.GetCurrentStats()

	fields := logrus.Fields{
		"uptime":     stats.Uptime.Round(time.Second),
		"goroutines": stats.Goroutines,
		"heap_mb":    float64(stats.HeapAllocated) / (1 << 20),
		"gc":         stats.NumGC,
	}
	for name, op := range stats.Operations {
		fields[name+"_count"] = op.Count
		fields[name+"_mean"] = op.Mean
		fields[name+"_p95"] = op.P95
	}
	for name, v := range stats.Custom {
		fields[name] = v
	}
	rp.opts.Logger.WithFields(fields).Info("runtime report")
}
