// Command mahjong-detector prints the mahjong tiles found in photos, left to right.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-mahjong/benchmark"
	"github.com/nvr-ai/go-mahjong/detector"
	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/inference/providers"
	"github.com/nvr-ai/go-mahjong/render"
	"github.com/nvr-ai/go-mahjong/util"
)

// DefaultModelPath is the model used when neither -model nor the config file name one.
const DefaultModelPath = "models/mahjong.onnx"

type options struct {
	config      string
	model       string
	engine      string
	provider    string
	precision   string
	size        int
	confidence  float64
	iou         float64
	dir         string
	annotateDir string
	asJSON      bool
	verbose     bool
	bench       int
	benchOut    string
}

type result struct {
	Path       string                   `json:"path"`
	Tiles      []string                 `json:"tiles"`
	Detections []detector.TileDetection `json:"detections"`
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "Path to a YAML config file")
	flag.StringVar(&opts.model, "model", "", "Path to the detection model (default "+DefaultModelPath+")")
	flag.StringVar(&opts.engine, "engine", "", "Inference engine: onnx, tflite or opencv")
	flag.StringVar(&opts.provider, "provider", "", "ONNX Runtime execution provider: cpu, cuda, coreml or openvino")
	flag.StringVar(&opts.precision, "precision", "", "OpenVINO precision: FP32, FP16 or ACCURACY")
	flag.IntVar(&opts.size, "size", 0, "Model input size for models with a dynamic input")
	flag.Float64Var(&opts.confidence, "conf", -1, "Confidence threshold")
	flag.Float64Var(&opts.iou, "iou", -1, "IoU threshold for non-maximum suppression")
	flag.StringVar(&opts.dir, "dir", "", "Detect tiles in every photo of a directory")
	flag.StringVar(&opts.annotateDir, "annotate", "", "Write annotated PNGs to this directory")
	flag.BoolVar(&opts.asJSON, "json", false, "Print detections as JSON lines")
	flag.BoolVar(&opts.verbose, "v", false, "Log debug output")
	flag.IntVar(&opts.bench, "bench", 0, "Benchmark the detector on synthetic photos with this many iterations per scenario")
	flag.StringVar(&opts.benchOut, "bench-out", "", "Write benchmark results as JSON to this file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] image...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err := run(opts, flag.Args()); err != nil {
		logrus.WithError(err).Fatal("mahjong-detector failed")
	}
}

func run(opts options, paths []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log := cfg.Logger()

	files, err := collect(opts.dir, paths)
	if err != nil {
		return err
	}
	if len(files) == 0 && opts.bench <= 0 {
		flag.Usage()
		return errors.New("no images given")
	}

	det, err := detector.NewBuilder().WithConfig(cfg).WithLogger(log).Build()
	if err != nil {
		return err
	}
	defer det.Close()

	if opts.annotateDir != "" {
		if err := os.MkdirAll(opts.annotateDir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create annotation directory")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.bench > 0 {
		return runBenchmark(ctx, det, log, opts)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, file := range files {
		res, err := detectFile(ctx, det, file, opts.annotateDir)
		if err != nil {
			return errors.Wrapf(err, "failed to process %s", file.Path)
		}

		switch {
		case opts.asJSON:
			if err := enc.Encode(res); err != nil {
				return err
			}
		case len(files) == 1:
			fmt.Println(strings.Join(res.Tiles, " "))
		default:
			fmt.Printf("%s: %s\n", res.Path, strings.Join(res.Tiles, " "))
		}
	}

	if metrics, ok := det.Metrics(); ok {
		log.WithFields(logrus.Fields{
			"inferences": metrics.InferenceCount,
			"average":    metrics.AverageTime,
			"fps":        metrics.ThroughputFPS,
		}).Info("inference metrics")
	}
	return nil
}

func runBenchmark(ctx context.Context, det *detector.Detector, log logrus.FieldLogger, opts options) error {
	suite := benchmark.NewSuite(det, log)
	if _, err := suite.Run(ctx, benchmark.DefaultScenarios(opts.bench, 1)); err != nil {
		return err
	}
	if err := suite.WriteReport(os.Stdout); err != nil {
		return err
	}
	if opts.benchOut != "" {
		return suite.SaveResults(opts.benchOut)
	}
	return nil
}

// loadConfig merges defaults, the config file and flags, in that order.
func loadConfig(opts options) (detector.Config, error) {
	cfg := detector.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = detector.LoadConfig(opts.config); err != nil {
			return cfg, err
		}
	}

	if opts.model != "" {
		cfg.Backend.ModelPath = opts.model
	}
	if cfg.Backend.ModelPath == "" {
		cfg.Backend.ModelPath = DefaultModelPath
	}
	if opts.engine != "" {
		cfg.Backend.Engine = inference.EngineType(opts.engine)
	}
	if opts.provider != "" {
		cfg.Backend.Provider = providers.ProviderBackend(opts.provider)
	}
	if opts.precision != "" {
		precision, err := inference.ParsePrecision(opts.precision)
		if err != nil {
			return cfg, err
		}
		cfg.Backend.OpenVINO.Precision = precision
	}
	if opts.size > 0 {
		cfg.Backend.InputSize = opts.size
	}
	if opts.confidence >= 0 {
		cfg.Postprocess.ConfidenceThreshold = float32(opts.confidence)
	}
	if opts.iou >= 0 {
		cfg.Postprocess.IoUThreshold = float32(opts.iou)
	}
	if opts.verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	cfg.Runtime.Lazy = false

	return cfg, cfg.Validate()
}

func collect(dir string, paths []string) ([]util.ImageFile, error) {
	var files []util.ImageFile
	if dir != "" {
		loaded, err := util.LoadDirectoryImageFiles(dir)
		if err != nil {
			return nil, err
		}
		files = append(files, loaded...)
	}
	for _, path := range paths {
		file, err := util.LoadImageFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func detectFile(ctx context.Context, det *detector.Detector, file util.ImageFile, annotateDir string) (result, error) {
	img, err := file.Image.Decode()
	if err != nil {
		return result{}, err
	}
	dets, err := det.Detect(ctx, img)
	if err != nil {
		return result{}, err
	}
	labelled, err := det.Label(dets)
	if err != nil {
		return result{}, err
	}

	res := result{Path: file.Path, Tiles: make([]string, len(labelled)), Detections: labelled}
	for i, d := range labelled {
		res.Tiles[i] = d.Name
	}

	if annotateDir != "" {
		out := filepath.Join(annotateDir, annotatedName(file.Path))
		if err := writePNG(out, render.Detections(img, dets, det.Classes())); err != nil {
			return result{}, err
		}
	}

	return res, nil
}

// annotatedName keeps the source extension so a.jpg and a.png do not collide.
func annotatedName(path string) string {
	return filepath.Base(path) + ".png"
}

func writePNG(path string, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create annotated image")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()
	if err := png.Encode(out, img); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
