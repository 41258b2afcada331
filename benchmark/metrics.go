// Package benchmark - Throughput and latency benchmarks of the tile detector on synthetic photos.
package benchmark

import (
	"runtime"
	"time"
)

// PerformanceMetrics captures the outcome of one scenario.
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario"`
	Timestamp       time.Time     `json:"timestamp"`
	TotalDuration   time.Duration `json:"total_duration"`
	DecodeDuration  time.Duration `json:"decode_duration"`
	DetectDuration  time.Duration `json:"detect_duration"`
	P50             time.Duration `json:"p50"`
	P95             time.Duration `json:"p95"`
	Max             time.Duration `json:"max"`
	FramesPerSecond float64       `json:"frames_per_second"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
	DetectionCount  int           `json:"detection_count"`
	ErrorRate       float64       `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// memoryDelta returns the allocation growth between two snapshots and the heap at the end.
func memoryDelta(before, after *runtime.MemStats) MemoryMetrics {
	return MemoryMetrics{
		AllocBytes:      after.Alloc,
		TotalAllocBytes: after.TotalAlloc - before.TotalAlloc,
		SysBytes:        after.Sys,
		NumGC:           after.NumGC - before.NumGC,
		HeapAllocBytes:  after.HeapAlloc,
		HeapSysBytes:    after.HeapSys,
	}
}
