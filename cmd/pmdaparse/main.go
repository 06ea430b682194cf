// Command pmdaparse extracts clinical records from PMDA package-insert XML.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pmdaparse/internal/config"
	"github.com/dgallion1/pmdaparse/internal/extract"
	"github.com/dgallion1/pmdaparse/internal/metrics"
	"github.com/dgallion1/pmdaparse/internal/pipeline"
	"github.com/dgallion1/pmdaparse/internal/store"
)

var (
	configFile string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pmdaparse",
		Short:        "Extract clinical records from PMDA package inserts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./pmdaparse.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	root.AddCommand(newExtractCmd(), newServeCmd(), newWatchCmd())
	return root
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig(logOut io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: level}))
	return cfg, log, nil
}

// app bundles the components every command wires the same way.
type app struct {
	engine  *extract.Engine
	worker  *pipeline.Worker
	store   *store.Store
	metrics *metrics.Metrics
}

// newApp builds the engine and worker. dbPath empty means no store.
func newApp(cfg config.Config, dbPath string, log *slog.Logger) (*app, error) {
	rt := &app{metrics: metrics.New()}
	rt.engine = extract.NewEngine(log, extract.Options{
		FallbackScan: cfg.FallbackScan,
		MaxDepth:     cfg.MaxDepth,
	}, rt.metrics.Hooks())

	var sink pipeline.Sink
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, err
		}
		rt.store = st
		sink = st
	}

	rt.worker = pipeline.NewWorker(rt.engine, sink, pipeline.NewLatencyStats(cfg.JobTTL), log)
	rt.worker.OnResult = rt.metrics.ObserveResult
	return rt, nil
}

func (rt *app) orchestrator(cfg config.Config, log *slog.Logger) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(pipeline.Config{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, rt.worker, log)
}

func (rt *app) Close() {
	if rt.store != nil {
		rt.store.Close()
	}
}
