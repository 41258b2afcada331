package inference

import (
	"strings"

	"github.com/pkg/errors"
)

// Precision represents the inference precision requested from an accelerator.
type Precision string

// Precision constants are the precisions an OpenVINO device accepts.
const (
	PrecisionAccuracy Precision = "ACCURACY"
	PrecisionFP16     Precision = "FP16"
	PrecisionFP32     Precision = "FP32"
)

// Precisions is a list of all supported precisions.
var Precisions = []Precision{PrecisionFP32, PrecisionFP16, PrecisionAccuracy}

// ParsePrecision validates a precision name, ignoring case. The empty name is returned unchanged
// and leaves the choice to the device.
func ParsePrecision(name string) (Precision, error) {
	if name == "" {
		return "", nil
	}
	for _, p := range Precisions {
		if strings.EqualFold(string(p), name) {
			return p, nil
		}
	}
	return "", errors.Errorf("unsupported precision %q (supported: %v)", name, Precisions)
}
