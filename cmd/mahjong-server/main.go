// Command mahjong-server serves the tile detector over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-mahjong/detector"
	"github.com/nvr-ai/go-mahjong/profiler"
	"github.com/nvr-ai/go-mahjong/server"
)

func main() {
	var (
		configPath string
		modelPath  string
		addr       string
		poolSize   int
		debug      bool
		report     time.Duration
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&modelPath, "model", "", "Path to the detection model")
	flag.StringVar(&addr, "addr", ":8080", "Listen address")
	flag.IntVar(&poolSize, "pool", 0, "Number of model sessions for parallel requests")
	flag.BoolVar(&debug, "debug", false, "Debug logging and gin debug mode")
	flag.DurationVar(&report, "report-interval", time.Minute, "Interval of runtime reports")
	flag.Parse()

	cfg := detector.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = detector.LoadConfig(configPath); err != nil {
			logrus.WithError(err).Fatal("failed to load config")
		}
	}
	if poolSize > 0 {
		cfg.Runtime.PoolSize = poolSize
	}
	cfg.Runtime.Profile = true
	if debug {
		cfg.LogLevel = logrus.DebugLevel.String()
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log := cfg.Logger()

	det, err := detector.NewBuilder().
		WithConfig(cfg).
		WithModelPath(modelPath).
		WithLogger(log).
		Build()
	if err != nil {
		log.WithError(err).Fatal("failed to create detector")
	}
	defer det.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{ReportInterval: report, Logger: log})
	prof.AddMetricsCollector(profiler.CollectorFunc(func() map[string]float64 {
		m, ok := det.Metrics()
		if !ok {
			return nil
		}
		return map[string]float64{
			"inferences":     float64(m.InferenceCount),
			"inference_fps":  m.ThroughputFPS,
			"inference_mean": m.AverageTime.Seconds(),
		}
	}))
	prof.Start(ctx)
	defer prof.Stop()

	if err := server.New(det, log, server.WithProfiler(prof)).Run(ctx, addr); err != nil {
		log.WithError(err).Error("server exited")
	}
}
