package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mahjong/images"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// mockDetector reports one tile per call and fails every failEvery-th call.
type mockDetector struct {
	calls     atomic.Int64
	failEvery int64
	lastSize  atomic.Value
}

func (m *mockDetector) Detect(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	n := m.calls.Add(1)
	m.lastSize.Store(img.Bounds().Size())
	if m.failEvery > 0 && n%m.failEvery == 0 {
		return nil, errors.New("boom")
	}
	return []postprocess.Detection{{X1: 1, Y1: 1, X2: 2, Y2: 2, Confidence: 0.9}}, nil
}

func smallResolution() images.Resolution {
	return images.Resolution{Name: "tiny", AspectRatio: images.AspectRatio43, Pixels: images.Pixels{Width: 160, Height: 120}}
}

func TestScenarioBuilder(t *testing.T) {
	sc := NewScenarioBuilder("test_scenario").
		WithResolution(smallResolution()).
		WithImageFormat(images.FormatPNG).
		WithIterations(7).
		WithWarmupRuns(2).
		WithConcurrency(3).
		Build()

	assert.Equal(t, "test_scenario", sc.Name)
	assert.Equal(t, 160, sc.Resolution.Pixels.Width)
	assert.Equal(t, images.FormatPNG, sc.ImageFormat)
	assert.Equal(t, 7, sc.Iterations)
	assert.Equal(t, 2, sc.WarmupRuns)
	assert.Equal(t, 3, sc.Concurrency)
}

func TestDefaultScenarios(t *testing.T) {
	scenarios := DefaultScenarios(20, 2)
	require.Len(t, scenarios, len(images.PhotoResolutions)+2)
	for _, sc := range scenarios {
		assert.Equal(t, 20, sc.Iterations)
		assert.Equal(t, 2, sc.WarmupRuns)
		assert.Equal(t, 2, sc.Concurrency)
	}
	assert.Equal(t, images.FormatWebP, scenarios[len(scenarios)-2].ImageFormat)
}

func TestRunScenario(t *testing.T) {
	for _, format := range []images.ImageFormat{images.FormatJPEG, images.FormatPNG, images.FormatWebP} {
		t.Run(string(format), func(t *testing.T) {
			det := &mockDetector{failEvery: 4}
			log, _ := test.NewNullLogger()
			suite := NewSuite(det, log)

			sc := NewScenarioBuilder("s").
				WithResolution(smallResolution()).
				WithImageFormat(format).
				WithIterations(8).
				WithWarmupRuns(0).
				WithConcurrency(2).
				Build()

			m, err := suite.RunScenario(context.Background(), sc)
			require.NoError(t, err)

			assert.Equal(t, int64(8), det.calls.Load())
			assert.Equal(t, image.Pt(160, 120), det.lastSize.Load())
			assert.Equal(t, 6, m.DetectionCount)
			assert.InDelta(t, 0.25, m.ErrorRate, 1e-9)
			assert.Greater(t, m.FramesPerSecond, 0.0)
			assert.LessOrEqual(t, m.P50, m.P95)
			assert.LessOrEqual(t, m.P95, m.Max)
			assert.Len(t, suite.Results(), 1)
		})
	}
}

func TestRunScenarioErrors(t *testing.T) {
	suite := NewSuite(&mockDetector{}, nil)

	_, err := suite.RunScenario(context.Background(), Scenario{Name: "none"})
	assert.ErrorContains(t, err, "iterations must be positive")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = suite.Run(ctx, []Scenario{NewScenarioBuilder("c").WithResolution(smallResolution()).Build()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportAndSave(t *testing.T) {
	log, _ := test.NewNullLogger()
	suite := NewSuite(&mockDetector{}, log)
	_, err := suite.Run(context.Background(), []Scenario{
		NewScenarioBuilder("tiny jpeg").WithResolution(smallResolution()).WithIterations(3).WithWarmupRuns(1).Build(),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, suite.WriteReport(&buf))
	assert.Contains(t, buf.String(), "SCENARIO")
	assert.Contains(t, buf.String(), "tiny jpeg")

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, suite.SaveResults(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var saved []PerformanceMetrics
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "tiny jpeg", saved[0].Scenario.Name)
}

func TestSyntheticPhoto(t *testing.T) {
	photo := SyntheticPhoto(400, 300)
	assert.Equal(t, image.Rect(0, 0, 400, 300), photo.Bounds())

	center := photo.NRGBAAt(200, 150)
	corner := photo.NRGBAAt(0, 0)
	assert.Greater(t, center.R, corner.R, "tiles are lighter than the table")
}
