package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationConfig contains ONNX Runtime session tuning.
type OptimizationConfig struct {
	// GraphOptimizationLevel is disable, basic, extended or all.
	GraphOptimizationLevel string `json:"graph_optimization_level" yaml:"graph_optimization_level"`
	// ParallelExecution runs independent graph nodes in parallel.
	ParallelExecution bool `json:"parallel_execution" yaml:"parallel_execution"`
	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets the runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`
	// InterOpNumThreads sets threads for parallelizing independent ops.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
	// EnableMemoryPattern enables memory pattern optimization.
	EnableMemoryPattern bool `json:"enable_memory_pattern" yaml:"enable_memory_pattern"`
	// EnableCPUMemArena enables the CPU memory arena.
	EnableCPUMemArena bool `json:"enable_cpu_mem_arena" yaml:"enable_cpu_mem_arena"`
}

// DefaultOptimizationConfig returns extended graph optimization with half the cores for intra-op
// parallelism.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimizationLevel: "extended",
		IntraOpNumThreads:      max(1, runtime.NumCPU()/2),
		InterOpNumThreads:      1,
		EnableMemoryPattern:    true,
		EnableCPUMemArena:      true,
	}
}

// graphOptimizationLevel maps the configured name to the runtime constant.
func graphOptimizationLevel(name string) (ort.GraphOptimizationLevel, error) {
	switch name {
	case "disable", "none":
		return ort.GraphOptimizationLevel(ort.GraphOptimizationLevelDisableAll), nil
	case "basic":
		return ort.GraphOptimizationLevel(ort.GraphOptimizationLevelEnableBasic), nil
	case "", "extended":
		return ort.GraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended), nil
	case "all":
		return ort.GraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll), nil
	default:
		return 0, errors.Errorf("unknown graph optimization level %q", name)
	}
}

// executionMode maps the parallel flag to the runtime constant.
func executionMode(parallel bool) ort.ExecutionMode {
	if parallel {
		return ort.ExecutionMode(ort.ExecutionModeParallel)
	}
	return ort.ExecutionMode(ort.ExecutionModeSequential)
}

// OptimizedSessionOptions creates session options from the configuration and enables the
// configured execution provider. The caller destroys the result.
func OptimizedSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	level, err := graphOptimizationLevel(cfg.Optimization.GraphOptimizationLevel)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}

	mode := executionMode(cfg.Optimization.ParallelExecution)

	for _, apply := range []func() error{
		func() error { return options.SetGraphOptimizationLevel(level) },
		func() error { return options.SetExecutionMode(mode) },
		func() error { return options.SetIntraOpNumThreads(cfg.Optimization.IntraOpNumThreads) },
		func() error { return options.SetInterOpNumThreads(cfg.Optimization.InterOpNumThreads) },
		func() error { return options.SetMemPattern(cfg.Optimization.EnableMemoryPattern) },
		func() error { return options.SetCpuMemArena(cfg.Optimization.EnableCPUMemArena) },
		func() error { return appendExecutionProvider(options, cfg) },
	} {
		if err := apply(); err != nil {
			options.Destroy()
			return nil, errors.Wrap(err, "failed to configure session options")
		}
	}

	return options, nil
}
