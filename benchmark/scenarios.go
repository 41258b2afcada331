package benchmark

import (
	"github.com/nvr-ai/go-mahjong/images"
)

// Scenario defines one benchmark configuration.
type Scenario struct {
	Name        string             `json:"name"`
	Resolution  images.Resolution  `json:"resolution"`
	ImageFormat images.ImageFormat `json:"image_format"`
	Iterations  int                `json:"iterations"`
	WarmupRuns  int                `json:"warmup_runs"`
	Concurrency int                `json:"concurrency"`
}

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder for a 720p JPEG photo.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	res, _ := images.GetResolutionByType(images.ResolutionTypeHD720p)
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:        name,
			Resolution:  res,
			ImageFormat: images.FormatJPEG,
			Iterations:  100,
			WarmupRuns:  10,
			Concurrency: 1,
		},
	}
}

// WithResolution sets the photo resolution.
func (sb *ScenarioBuilder) WithResolution(res images.Resolution) *ScenarioBuilder {
	sb.scenario.Resolution = res
	return sb
}

// WithImageFormat sets the encoding of the photo.
func (sb *ScenarioBuilder) WithImageFormat(format images.ImageFormat) *ScenarioBuilder {
	sb.scenario.ImageFormat = format
	return sb
}

// WithIterations sets the number of measured detections.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of unmeasured detections run first.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// WithConcurrency sets the number of concurrent callers.
func (sb *ScenarioBuilder) WithConcurrency(n int) *ScenarioBuilder {
	sb.scenario.Concurrency = n
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// DefaultScenarios covers every photo resolution with JPEG input, plus WebP and PNG at 1080p.
func DefaultScenarios(iterations, concurrency int) []Scenario {
	var scenarios []Scenario
	for _, res := range images.PhotoResolutions {
		scenarios = append(scenarios, NewScenarioBuilder(string(res.Name)+" jpeg").
			WithResolution(res).
			WithIterations(iterations).
			WithWarmupRuns(max(1, iterations/10)).
			WithConcurrency(concurrency).
			Build())
	}

	fhd, _ := images.GetResolutionByType(images.ResolutionTypeFHD1080p)
	for _, format := range []images.ImageFormat{images.FormatWebP, images.FormatPNG} {
		scenarios = append(scenarios, NewScenarioBuilder(string(fhd.Name)+" "+string(format)).
			WithResolution(fhd).
			WithImageFormat(format).
			WithIterations(iterations).
			WithWarmupRuns(max(1, iterations/10)).
			WithConcurrency(concurrency).
			Build())
	}
	return scenarios
}
