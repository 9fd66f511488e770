package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/partwalk/internal/config"
	"github.com/mattjoyce/partwalk/internal/walker"
)

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		printConfigNounHelp(os.Stderr)
		return 1
	}
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: partwalk config <action> [flags]")
	fmt.Fprintln(w, "Actions: check")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: partwalk config check --config PATH [--parts PATH] [--json]")
	fmt.Println("Validate configuration and, if given, a parts manifest.")
}

type checkReport struct {
	Valid      bool   `json:"valid"`
	ConfigPath string `json:"config_path,omitempty"`
	HandlerDir string `json:"handler_dir,omitempty"`
	Frequency  string `json:"frequency,omitempty"`
	Journal    string `json:"journal,omitempty"`
	Parts      *int   `json:"parts,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("PARTWALK_CONFIG"), "Path to configuration file or directory")
	partsPath := fs.String("parts", "", "Optional parts manifest to validate")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --config is required")
		return 1
	}

	report := checkReport{}
	code := checkConfig(*configPath, *partsPath, &report)

	if *jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return code
	}

	if !report.Valid {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %s\n", report.Error)
		return code
	}
	fmt.Printf("Configuration valid: %s\n", report.ConfigPath)
	fmt.Printf("  handler_dir: %s\n", report.HandlerDir)
	fmt.Printf("  frequency:   %s\n", report.Frequency)
	fmt.Printf("  journal:     %s\n", report.Journal)
	if report.Parts != nil {
		fmt.Printf("  parts:       %d\n", *report.Parts)
	}
	return code
}

func checkConfig(configPath, partsPath string, report *checkReport) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		report.Error = err.Error()
		return 1
	}
	report.ConfigPath = cfg.SourcePath
	report.HandlerDir = cfg.HandlerDir
	report.Frequency = cfg.Frequency
	report.Journal = "disabled"
	if cfg.Journal.Enabled {
		report.Journal = cfg.Journal.Path
	}

	if partsPath != "" {
		parts, err := walker.LoadParts(partsPath)
		if err != nil {
			report.Error = err.Error()
			return 1
		}
		n := len(parts)
		report.Parts = &n
	}

	report.Valid = true
	return 0
}
