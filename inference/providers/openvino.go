package providers

import (
	"strconv"

	"github.com/nvr-ai/go-mahjong/inference"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// CPU, GPU or NPU. Empty uses the build default.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// FP32, FP16 or ACCURACY.
	Precision inference.Precision `json:"precision" yaml:"precision"`
	// Overrides the default number of inference threads.
	NumOfThreads int `json:"num_of_threads" yaml:"num_of_threads"`
	// Overrides the default number of streams.
	NumStreams int `json:"num_streams" yaml:"num_streams"`
	// Directory for compiled blob caching.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
	// Rewrite dynamic shaped models to static shapes at runtime.
	DisableDynamicShapes bool `json:"disable_dynamic_shapes" yaml:"disable_dynamic_shapes"`
}

// ProviderOptions returns the option map passed to onnxruntime. Unset fields are omitted.
func (o OpenVINOOptions) ProviderOptions() map[string]string {
	options := map[string]string{}
	if o.DeviceType != "" {
		options["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		options["precision"] = string(o.Precision)
	}
	if o.NumOfThreads > 0 {
		options["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		options["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.CacheDir != "" {
		options["cache_dir"] = o.CacheDir
	}
	if o.DisableDynamicShapes {
		options["disable_dynamic_shapes"] = "true"
	}
	return options
}
