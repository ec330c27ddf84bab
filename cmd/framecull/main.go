package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"framecull/internal/algorithms"
	"framecull/internal/config"
	"framecull/internal/debug/timing"
	"framecull/internal/logger"
	"framecull/internal/metrics"
	"framecull/internal/opencv/memory"
	"framecull/internal/pipeline"
	"framecull/internal/shutdown"
	"framecull/internal/video"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
)

var Version = "dev"

const exitCancelled = 130

type Globals struct {
	Config      string `short:"c" help:"Configuration file (default: ./framecull.yaml, then ~/.framecull/config.yaml)." type:"path"`
	LogLevel    string `help:"Log level: debug, info, warn or error." placeholder:"LEVEL"`
	MetricsAddr string `help:"Serve Prometheus metrics on this address, e.g. :9090." placeholder:"ADDR"`
	FourCC      string `name:"fourcc" help:"Four-character code of the output video codec (default: mp4v)." placeholder:"CODE"`
}

type CLI struct {
	Globals

	Process ProcessCmd `cmd:"" help:"Drop the frames that do not change from one video."`
	Batch   BatchCmd   `cmd:"" help:"Process several videos, or every video in a directory, one after another."`
	Preview PreviewCmd `cmd:"" help:"Inspect one frame pair with the frame-difference detector."`
	Presets PresetsCmd `cmd:"" help:"List the parameter presets."`

	Version kong.VersionFlag `short:"V" help:"Print version and exit."`
}

// App carries the collaborators shared by every command.
type App struct {
	cfg       *config.Config
	log       logger.Logger
	shutdown  *shutdown.Manager
	memory    *memory.Manager
	detectors *algorithms.Manager
	timing    *timing.Tracker
	retention *pipeline.Retention
	stdout    io.Writer
	stderr    io.Writer

	stopSignals func()
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("framecull"),
		kong.Description("Keep only the video frames where something changes."),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)

	app, err := newApp(&cli.Globals, os.Stdout, os.Stderr)
	kctx.FatalIfErrorf(err)

	err = kctx.Run(app)
	app.close()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("❌ "+err.Error()))
		if errors.Is(err, context.Canceled) {
			os.Exit(exitCancelled)
		}
		os.Exit(1)
	}
}

func newApp(g *Globals, stdout, stderr io.Writer) (*App, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	if g.LogLevel != "" {
		if _, ok := logger.ParseLevel(g.LogLevel); !ok {
			return nil, fmt.Errorf("unknown log level %q", g.LogLevel)
		}
	}
	level := determineLogLevel(g.LogLevel, cfg.LogLevel)
	log := logger.NewConsoleLogger(level)

	log.Info("Main", "framecull starting", map[string]interface{}{
		"version":    Version,
		"go_version": runtime.Version(),
		"log_level":  level.String(),
		"config":     cfg.Path,
	})

	shutdownManager := shutdown.NewManager(log)
	memManager := memory.NewManager(log)
	shutdownManager.Register(memManager)

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheus(registry)

	addr := cfg.MetricsAddr
	if g.MetricsAddr != "" {
		addr = g.MetricsAddr
	}
	if addr != "" {
		server, err := metrics.StartServer(addr, registry, log)
		if err != nil {
			return nil, fmt.Errorf("start metrics server on %s: %w", addr, err)
		}
		shutdownManager.Register(server)
	}

	tracker := timing.NewTracker()
	tracker.SetEnabled(level == logger.DebugLevel)

	fourcc := cfg.FourCC
	if g.FourCC != "" {
		fourcc = g.FourCC
	}
	if err := config.ValidateFourCC(fourcc); err != nil {
		return nil, err
	}

	detectors := algorithms.NewManager()
	codec := video.NewGocvCodec(video.WithTracker(memManager), video.WithFourCC(fourcc))
	retention := pipeline.NewRetention(codec,
		pipeline.WithLogger(log),
		pipeline.WithDetectorManager(detectors),
		pipeline.WithMemoryManager(memManager),
		pipeline.WithMetrics(recorder),
		pipeline.WithTimingTracker(tracker),
	)

	return &App{
		cfg:         cfg,
		log:         log,
		shutdown:    shutdownManager,
		memory:      memManager,
		detectors:   detectors,
		timing:      tracker,
		retention:   retention,
		stdout:      stdout,
		stderr:      stderr,
		stopSignals: shutdownManager.Listen(),
	}, nil
}

func (a *App) context() context.Context {
	return a.shutdown.Context()
}

func (a *App) close() {
	if a.stopSignals != nil {
		a.stopSignals()
	}

	for _, stat := range a.timing.Summary() {
		a.log.Debug("Timing", stat.Operation, map[string]interface{}{
			"count":      stat.Count,
			"total_ms":   stat.Total.Milliseconds(),
			"average_us": stat.Average.Microseconds(),
		})
	}

	stats := a.memory.GetStats()
	a.log.Debug("Main", "memory statistics", map[string]interface{}{
		"allocated":  stats.TotalAllocated,
		"released":   stats.TotalReleased,
		"peak_bytes": stats.PeakBytes,
		"pool_hits":  stats.PoolHits,
	})

	a.shutdown.Shutdown()
}

// determineLogLevel picks the first valid of the flag and the configured
// level, then DEBUG=1, then info.
func determineLogLevel(flag, configured string) logger.LogLevel {
	for _, candidate := range []string{flag, configured} {
		if level, ok := logger.ParseLevel(candidate); ok {
			return level
		}
	}
	if os.Getenv("DEBUG") == "1" {
		return logger.DebugLevel
	}
	return logger.InfoLevel
}
