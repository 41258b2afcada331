package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-mahjong/images"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
	"github.com/nvr-ai/go-mahjong/profiler"
)

// Detector is the part of the tile detector a benchmark drives.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]postprocess.Detection, error)
}

// Suite runs scenarios against a detector and keeps their results.
type Suite struct {
	det     Detector
	log     logrus.FieldLogger
	mu      sync.RWMutex
	results []PerformanceMetrics
}

// NewSuite creates a benchmark suite.
//
// Arguments:
//   - det: The detector under test.
//   - log: Progress logger, the standard logger when nil.
//
// Returns:
//   - *Suite: The suite.
func NewSuite(det Detector, log logrus.FieldLogger) *Suite {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Suite{det: det, log: log}
}

// Run executes scenarios in order and stops at the first failure.
func (s *Suite) Run(ctx context.Context, scenarios []Scenario) ([]PerformanceMetrics, error) {
	out := make([]PerformanceMetrics, 0, len(scenarios))
	for _, sc := range scenarios {
		m, err := s.RunScenario(ctx, sc)
		if err != nil {
			return out, errors.Wrapf(err, "scenario %q failed", sc.Name)
		}
		out = append(out, *m)
	}
	return out, nil
}

// RunScenario encodes a synthetic table photo and measures decode plus detection on it.
//
// Arguments:
//   - ctx: Cancels the run.
//   - sc: The scenario.
//
// Returns:
//   - *PerformanceMetrics: The measurements. Failed detections count towards ErrorRate.
//   - error: An error if the scenario is invalid, the photo cannot be encoded or ctx is done.
func (s *Suite) RunScenario(ctx context.Context, sc Scenario) (*PerformanceMetrics, error) {
	if sc.Iterations <= 0 {
		return nil, errors.Errorf("iterations must be positive, got %d", sc.Iterations)
	}
	concurrency := max(1, sc.Concurrency)

	encoded, err := EncodePhoto(SyntheticPhoto(sc.Resolution.Pixels.Width, sc.Resolution.Pixels.Height), sc.ImageFormat)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"scenario":    sc.Name,
		"resolution":  sc.Resolution.String(),
		"format":      sc.ImageFormat,
		"iterations":  sc.Iterations,
		"concurrency": concurrency,
	}).Info("running scenario")

	for i := 0; i < sc.WarmupRuns; i++ {
		if _, _, _, err := s.once(ctx, sc.ImageFormat, encoded); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{MaxSamples: sc.Iterations, Logger: s.log})
	var (
		before, after runtime.MemStats
		next          atomic.Int64
		failures      atomic.Int64
		detections    atomic.Int64
		totals        = make([]time.Duration, sc.Iterations)
		wg            sync.WaitGroup
	)
	runtime.ReadMemStats(&before)
	start := time.Now()

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= sc.Iterations || ctx.Err() != nil {
					return
				}
				decode, detect, n, err := s.once(ctx, sc.ImageFormat, encoded)
				totals[i] = decode + detect
				prof.RecordOperation("decode", decode)
				prof.RecordOperation("detect", detect)
				if err != nil {
					failures.Add(1)
					continue
				}
				detections.Add(int64(n))
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	runtime.ReadMemStats(&after)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(totals, func(i, j int) bool { return totals[i] < totals[j] })
	ops := prof.GetCurrentStats().Operations

	m := &PerformanceMetrics{
		Scenario:        sc,
		Timestamp:       start,
		TotalDuration:   elapsed,
		DecodeDuration:  ops["decode"].Mean,
		DetectDuration:  ops["detect"].Mean,
		P50:             profiler.Percentile(totals, 0.5),
		P95:             profiler.Percentile(totals, 0.95),
		Max:             totals[len(totals)-1],
		FramesPerSecond: float64(sc.Iterations) / elapsed.Seconds(),
		MemoryStats:     memoryDelta(&before, &after),
		DetectionCount:  int(detections.Load()),
		ErrorRate:       float64(failures.Load()) / float64(sc.Iterations),
	}

	s.mu.Lock()
	s.results = append(s.results, *m)
	s.mu.Unlock()

	return m, nil
}

func (s *Suite) once(ctx context.Context, format images.ImageFormat, data []byte) (decode, detect time.Duration, n int, err error) {
	start := time.Now()
	img, err := (&images.Image{Format: format, Data: data}).Decode()
	decode = time.Since(start)
	if err != nil {
		return decode, 0, 0, err
	}

	start = time.Now()
	dets, err := s.det.Detect(ctx, img)
	return decode, time.Since(start), len(dets), err
}

// Results returns the metrics of every scenario run so far.
func (s *Suite) Results() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PerformanceMetrics, len(s.results))
	copy(out, s.results)
	return out
}

// SaveResults writes the results as indented JSON.
func (s *Suite) SaveResults(path string) error {
	data, err := json.MarshalIndent(s.Results(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// WriteReport prints a table of the results.
func (s *Suite) WriteReport(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tFPS\tDECODE\tDETECT\tP50\tP95\tMAX\tERRORS")
	for _, m := range s.Results() {
		fmt.Fprintf(tw, "%s\t%.1f\t%v\t%v\t%v\t%v\t%v\t%.1f%%\n",
			m.Scenario.Name, m.FramesPerSecond,
			m.DecodeDuration.Round(time.Microsecond), m.DetectDuration.Round(time.Microsecond),
			m.P50.Round(time.Microsecond), m.P95.Round(time.Microsecond), m.Max.Round(time.Microsecond),
			100*m.ErrorRate)
	}
	return tw.Flush()
}

// SyntheticPhoto draws a felt-green table with a row of fourteen light tiles across its middle.
func SyntheticPhoto(width, height int) *image.NRGBA {
	photo := imaging.New(width, height, color.NRGBA{R: 24, G: 96, B: 48, A: 255})

	tileW := max(1, width/20)
	tileH := max(1, tileW*4/3)
	y := (height - tileH) / 2
	x := (width - 14*tileW) / 2
	for i := 0; i < 14; i++ {
		tile := imaging.New(tileW-1, tileH, color.NRGBA{R: 236, G: 232, B: 220, A: 255})
		photo = imaging.Paste(photo, tile, image.Pt(x+i*tileW, y))
	}
	return photo
}

// EncodePhoto encodes img in the given format. FormatUnknown encodes JPEG.
func EncodePhoto(img image.Image, format images.ImageFormat) ([]byte, error) {
	var (
		buf bytes.Buffer
		err error
	)
	switch format {
	case images.FormatPNG:
		err = png.Encode(&buf, img)
	case images.FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: 90})
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %q photo", string(format))
	}
	return buf.Bytes(), nil
}
