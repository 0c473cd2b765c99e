// Command ingest runs one pipeline described by a YAML config file:
// extract -> interpret -> load, with structured logging and graceful
// shutdown on SIGINT/SIGTERM, grounded on pipeline-core's cmd/pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/conduix/nodestream/internal/config"
	"github.com/conduix/nodestream/internal/executor"
	"github.com/conduix/nodestream/internal/pipeline"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("c", "", "pipeline config file path")
	configFile := flag.String("config", "", "pipeline config file path (alias for -c)")
	showVersion := flag.Bool("version", false, "print version and exit")
	validateOnly := flag.Bool("validate", false, "validate config and exit without running")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nodestream-go ingest %s (built: %s)\n", version, buildTime)
		return
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = *configFile
	}
	if cfgPath == "" {
		fmt.Fprintln(os.Stderr, "error: config file path is required")
		fmt.Fprintln(os.Stderr, "usage: ingest -c <config.yaml>")
		os.Exit(1)
	}

	logger := slog.Default()

	desc, err := config.LoadPipelineDescriptor(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	extractor, err := config.BuildExtractor(desc.Source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build source: %v\n", err)
		os.Exit(1)
	}

	interpreter, err := config.BuildInterpreter(desc.Interpretation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build interpretation: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("config is valid")
		return
	}

	logger.Info("starting pipeline", "name", desc.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer, err := config.BuildWriter(ctx, desc.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build output: %v\n", err)
		os.Exit(1)
	}

	p := pipeline.New([]pipeline.StageSpec{
		{Name: "source", Extractor: extractor},
		{Name: "interpret", Transformer: interpreter},
		{Name: "sink", Writer: writer},
	}, pipeline.Options{
		BufferCapacity: desc.BufferCapacity,
		Timeout:        desc.TimeoutOrDefault(),
		Logger:         logger,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	runErr := p.Run(ctx)
	if runErr == nil {
		logger.Info("pipeline completed successfully")
		return
	}

	var pipelineErr *executor.PipelineException
	if errors.As(runErr, &pipelineErr) {
		fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", pipelineErr)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "pipeline error: %v\n", runErr)
	os.Exit(1)
}
