package inference

import "github.com/pkg/errors"

// EngineType is the runtime a backend executes on.
type EngineType string

const (
	// EngineONNX is the ONNX engine that uses the onnxruntime library.
	EngineONNX EngineType = "onnx"
	// EngineTFLite is the TensorFlow Lite engine used for mobile exports.
	EngineTFLite EngineType = "tflite"
	// EngineOpenCV is the OpenCV DNN module, available in builds with the gocv tag.
	EngineOpenCV EngineType = "opencv"
)

// Engines is a list of all supported engines.
var Engines = []EngineType{EngineONNX, EngineTFLite, EngineOpenCV}

// ParseEngine validates an engine name. The empty name selects EngineONNX.
func ParseEngine(name string) (EngineType, error) {
	if name == "" {
		return EngineONNX, nil
	}
	for _, e := range Engines {
		if string(e) == name {
			return e, nil
		}
	}
	return "", errors.Errorf("unsupported engine %q (supported: %v)", name, Engines)
}
