package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/systemstart/ctrender/pkg/api"
	"github.com/systemstart/ctrender/pkg/logging"
	"github.com/systemstart/ctrender/pkg/pipeline"
	"github.com/systemstart/ctrender/pkg/publish"
)

var version = "dev"

const (
	_ = iota
	exitDotenvError
	exitLoggingSetupFailed
	exitNoInput
	exitBadReportFormat
	exitVarsFileLoadFailed
	exitTaskLoadFailed
	exitDiscoveryFailed
	exitRenderFailures
)

var (
	discoverRoot string
	maxDepth     int
	varsFile     string
	checkMode    bool
	showDiff     bool
	reportFormat string
	rendererBin  string
	loggingType  string
	logLevel     string
	showVersion  bool
)

func init() {
	flag.StringVar(
		&discoverRoot,
		"discover",
		"",
		"find and run .ctrender.yaml files under this directory")
	flag.IntVar(
		&maxDepth,
		"max-depth",
		-1,
		"max discovery recursion depth (-1 = unlimited, 0 = root only)")
	flag.StringVar(
		&varsFile,
		"vars-file",
		"",
		"global vars YAML file for task interpolation")
	flag.BoolVar(
		&checkMode,
		"check",
		false,
		"report changes without writing destinations")
	flag.BoolVar(
		&showDiff,
		"diff",
		false,
		"collect diffs for changed destinations and print them")
	flag.StringVar(
		&reportFormat,
		"report",
		"yaml",
		"result report format: yaml, json or none")
	flag.StringVar(
		&rendererBin,
		"renderer-bin",
		"",
		"renderer executable (default consul-template from PATH)")
	flag.StringVar(
		&loggingType,
		"logging-type",
		"tint",
		"logging type: json, text or tint")
	flag.StringVar(
		&logLevel,
		"log-level",
		"info",
		"logging level: debug, info, warn, error")
	flag.BoolVar(
		&showVersion,
		"version",
		false,
		"print version and exit")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := logging.Initialize(loggingType, logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitLoggingSetupFailed)
	}

	checkReportFormat()
	includeEnv()

	globalVars := loadGlobalVars()
	tasks := loadTasks(globalVars)

	p := pipeline.New()
	p.RendererBin = rendererBin
	p.Check = checkMode
	p.ShowDiff = showDiff

	results, err := p.RunTasks(context.Background(), tasks)

	if showDiff {
		printDiffs(results)
	}
	printReport(results)

	if err != nil {
		slog.Error("run finished with failures", "error", err)
		os.Exit(exitRenderFailures)
	}

	slog.Info("done")
}

func checkReportFormat() {
	switch reportFormat {
	case "yaml", "json", "none":
	default:
		slog.Error("unknown report format", "format", reportFormat)
		os.Exit(exitBadReportFormat)
	}
}

func loadGlobalVars() map[string]any {
	if varsFile == "" {
		return nil
	}

	vars, err := api.LoadVarsFile(varsFile)
	if err != nil {
		slog.Error("failed to load vars file", "filename", varsFile, "error", err)
		os.Exit(exitVarsFileLoadFailed)
	}
	return vars
}

func loadTasks(globalVars map[string]any) []*api.TaskFile {
	paths := flag.Args()

	if discoverRoot != "" {
		if len(paths) > 0 {
			slog.Error("explicit task files and -discover are mutually exclusive")
			os.Exit(exitNoInput)
		}
		tasks, err := pipeline.DiscoverTasks(discoverRoot, maxDepth, globalVars)
		if err != nil {
			slog.Error("task discovery failed", "root", discoverRoot, "error", err)
			os.Exit(exitDiscoveryFailed)
		}
		if len(tasks) == 0 {
			slog.Warn("no .ctrender.yaml files found", "root", discoverRoot)
		}
		return tasks
	}

	if len(paths) == 0 {
		slog.Error("nothing to do: pass task files or -discover")
		os.Exit(exitNoInput)
	}

	tasks := make([]*api.TaskFile, 0, len(paths))
	for _, p := range paths {
		task, err := api.LoadTaskFile(p, globalVars)
		if err != nil {
			slog.Error("failed to load task file", "filename", p, "error", err)
			os.Exit(exitTaskLoadFailed)
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// printDiffs writes pretty diffs to stderr, keeping stdout for the report.
func printDiffs(results []pipeline.Result) {
	for _, res := range results {
		for _, d := range res.Diff {
			fmt.Fprintln(os.Stderr, publish.RenderText(d))
		}
	}
}

func printReport(results []pipeline.Result) {
	switch reportFormat {
	case "none":
		return
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			slog.Error("failed to serialize report", "error", err)
			os.Exit(exitBadReportFormat)
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(results)
		if err != nil {
			slog.Error("failed to serialize report", "error", err)
			os.Exit(exitBadReportFormat)
		}
		fmt.Print(string(data))
	}
}

func includeEnv() {
	err := godotenv.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load .env", "error", err)
			os.Exit(exitDotenvError)
		}
		slog.Info("no .env file found")
	} else {
		slog.Info("using .env file")
	}
}
