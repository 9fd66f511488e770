package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattjoyce/partwalk/internal/config"
	"github.com/mattjoyce/partwalk/internal/journal"
	"github.com/mattjoyce/partwalk/internal/storage"
)

func runJournalNoun(args []string) int {
	if len(args) < 1 {
		printJournalNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printJournalNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printJournalListHelp()
			return 0
		}
		return runJournalList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printJournalShowHelp()
			return 0
		}
		return runJournalShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown journal action: %s\n", action)
		printJournalNounHelp(os.Stderr)
		return 1
	}
}

func printJournalNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: partwalk journal <action> [flags]")
	fmt.Fprintln(w, "Actions: list, show")
}

func printJournalListHelp() {
	fmt.Println("Usage: partwalk journal list --config PATH [--limit N] [--json]")
	fmt.Println("Show recent runs, newest first.")
}

func printJournalShowHelp() {
	fmt.Println("Usage: partwalk journal show <run-id> --config PATH [--json]")
	fmt.Println("Show every recorded outcome of one run.")
}

func openJournal(ctx context.Context, configPath string) (*journal.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.Journal.Enabled {
		return nil, nil, errors.New("journal is disabled in configuration (journal.enabled: false)")
	}
	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		return nil, nil, fmt.Errorf("journal database: %w", err)
	}
	db, err := storage.OpenSQLite(ctx, cfg.Journal.Path)
	if err != nil {
		return nil, nil, err
	}
	return journal.New(db), func() { _ = db.Close() }, nil
}

func runJournalList(args []string) int {
	fs := flag.NewFlagSet("journal list", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("PARTWALK_CONFIG"), "Path to configuration file or directory")
	limit := fs.Int("limit", 20, "Maximum number of runs to show")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --config is required")
		return 1
	}

	ctx := context.Background()
	store, closeFn, err := openJournal(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer closeFn()

	runs, err := store.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}

	if *jsonOut {
		if runs == nil {
			runs = []journal.Run{}
		}
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tFREQUENCY\tSTATUS\tPARTS\tHANDLED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Frequency, r.Status,
			r.Summary.Parts, r.Summary.Handled, r.Summary.Failed+r.Summary.MaterializeFailed)
	}
	_ = tw.Flush()
	return 0
}

func runJournalShow(args []string) int {
	// Allow the run ID before or after flags.
	var runID string
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		runID, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("journal show", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("PARTWALK_CONFIG"), "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if runID == "" && fs.NArg() > 0 {
		runID = fs.Arg(0)
	}
	if runID == "" || *configPath == "" {
		printJournalShowHelp()
		return 1
	}

	ctx := context.Background()
	store, closeFn, err := openJournal(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer closeFn()

	entries, err := store.Outcomes(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read run: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "No outcomes recorded for run %s\n", runID)
		return 1
	}

	if *jsonOut {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tKIND\tCONTENT TYPE\tFILENAME\tMODULE\tOUTCOME\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Seq, e.Kind, e.ContentType, e.Filename, e.Module, e.Outcome, firstLine(e.Error))
	}
	_ = tw.Flush()
	return 0
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
