package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/partwalk/internal/config"
	"github.com/mattjoyce/partwalk/internal/dispatch"
	"github.com/mattjoyce/partwalk/internal/handler"
	"github.com/mattjoyce/partwalk/internal/journal"
	"github.com/mattjoyce/partwalk/internal/lock"
	"github.com/mattjoyce/partwalk/internal/log"
	"github.com/mattjoyce/partwalk/internal/materialize"
	"github.com/mattjoyce/partwalk/internal/plugin"
	"github.com/mattjoyce/partwalk/internal/storage"
	"github.com/mattjoyce/partwalk/internal/walker"
)

type runReport struct {
	RunID     string         `json:"run_id,omitempty"`
	Frequency string         `json:"frequency"`
	Summary   walker.Summary `json:"summary"`
}

func printRunHelp() {
	fmt.Println("Usage: partwalk run --config PATH --parts PATH [--frequency F] [--json]")
	fmt.Println("Walk every part of the manifest through the handler registry.")
	fmt.Println("")
	fmt.Println("Handler failures are logged and counted; they do not change the exit code.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Run completed")
	fmt.Println("  1  Usage, configuration or manifest error")
}

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("PARTWALK_CONFIG"), "Path to configuration file or directory")
	partsPath := fs.String("parts", "", "Path to parts manifest")
	frequency := fs.String("frequency", "", "Requested frequency (overrides config)")
	jsonOut := fs.Bool("json", false, "Print the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *configPath == "" || *partsPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --config and --parts are required")
		printRunHelp()
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *frequency != "" {
		cfg.Frequency = *frequency
	}
	freq, err := cfg.RequestedFrequency()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --frequency: %v\n", err)
		return 1
	}

	parts, err := walker.LoadParts(*partsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load parts: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("partwalk starting", "version", version, "config", cfg.SourcePath, "parts", len(parts), "frequency", freq)

	runLock, err := lock.Acquire(cfg.HandlerDir)
	if err != nil {
		logger.Error("failed to lock handler directory (another run may be active)", "handler_dir", cfg.HandlerDir, "error", err)
		fmt.Fprintf(os.Stderr, "Failed to lock handler directory: %v\n", err)
		return 1
	}
	defer func() { _ = runLock.Release() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := handler.NewState(cfg.HandlerDir, freq, cfg.Data)
	st.ModuleExt = cfg.ModuleExt

	w := walker.New(
		st,
		materialize.New(plugin.NewLoader(cfg.HandlerDir), log.WithComponent("materialize")),
		dispatch.New(log.WithComponent("dispatch")),
		log.WithComponent("walker"),
	)

	report := runReport{Frequency: string(freq)}

	var store *journal.Store
	if cfg.Journal.Enabled {
		db, err := storage.OpenSQLite(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
			return 1
		}
		defer db.Close()

		store = journal.New(db)
		report.RunID, err = store.StartRun(ctx, freq, cfg.SourcePath)
		if err != nil {
			logger.Error("failed to start journal run", "error", err)
			fmt.Fprintf(os.Stderr, "Failed to start journal run: %v\n", err)
			return 1
		}
		w.SetRecorder(store.Recorder(report.RunID))
		logger.Info("journal run started", "run_id", report.RunID, "path", cfg.Journal.Path)
	}

	report.Summary = w.Run(ctx, parts)

	if store != nil {
		// Record the summary even if the walk was cancelled.
		if err := store.FinishRun(context.WithoutCancel(ctx), report.RunID, report.Summary); err != nil {
			logger.Warn("failed to finish journal run", "run_id", report.RunID, "error", err)
		}
	}

	logger.Info("partwalk finished",
		"run_id", report.RunID,
		"parts", report.Summary.Parts,
		"handled", report.Summary.Handled,
		"failed", report.Summary.Failed,
		"materialize_failed", report.Summary.MaterializeFailed,
	)

	if *jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render summary JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	s := report.Summary
	if report.RunID != "" {
		fmt.Printf("run %s (%s)\n", report.RunID, report.Frequency)
	} else {
		fmt.Printf("run (%s)\n", report.Frequency)
	}
	fmt.Printf("  parts:        %d\n", s.Parts)
	fmt.Printf("  materialized: %d (failed %d)\n", s.Materialized, s.MaterializeFailed)
	fmt.Printf("  handled:      %d\n", s.Handled)
	fmt.Printf("  skipped:      %d\n", s.Skipped)
	fmt.Printf("  failed:       %d\n", s.Failed)
	fmt.Printf("  unhandled:    %d\n", s.Unhandled)
	if s.Cancelled {
		fmt.Println("  cancelled before completion")
	}
	return 0
}
