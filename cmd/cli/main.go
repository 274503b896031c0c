// Command orchestrate is a CLI tool for running and inspecting
// auto-orchestration workflows.
//
// Usage:
//
//	orchestrate run       --command "build a research swarm" --user U
//	orchestrate normalize --file payload.json
//	orchestrate status    --api http://localhost:8080 --run-id RID
//	orchestrate result    --api http://localhost:8080 --run-id RID
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/swarmlink/orchestrate-go/internal/config"
	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/installdata"
	"github.com/swarmlink/orchestrate-go/internal/normalize"
	"github.com/swarmlink/orchestrate-go/internal/observability"
	"github.com/swarmlink/orchestrate-go/internal/orchestrator"
	"github.com/swarmlink/orchestrate-go/internal/project"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "normalize":
		cmdNormalize(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "result":
		cmdResult(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: orchestrate <run|normalize|status|result> [flags]")
	os.Exit(1)
}

func loadConfig(path string) config.Config {
	var cfg config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	return cfg
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	command := fs.String("command", "", "workflow command (required)")
	user := fs.String("user", "", "user ID (required)")
	tenant := fs.String("tenant", "", "tenant ID")
	cfgFile := fs.String("config", "", "YAML config file (default: environment)")
	logLevel := fs.String("log-level", "warn", "log level")
	_ = fs.Parse(args)

	if *command == "" || *user == "" {
		fs.Usage()
		os.Exit(1)
	}

	observability.InitLogger(*logLevel)
	cfg := loadConfig(*cfgFile)

	var sink *installdata.Client
	if cfg.InstallDataURL != "" {
		sink = installdata.New(cfg)
	}
	o := orchestrator.New(cfg, sink)

	id := domain.Identity{UserID: *user, TenantID: *tenant}
	runID, err := o.Start(context.Background(), *command, id)
	if err != nil {
		log.Fatalf("failed to start run: %v", err)
	}
	fmt.Fprintf(os.Stderr, "started run %s\n", runID)

	done := o.Done()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastMessage string
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		case <-ticker.C:
		}
		if p := o.Snapshot().Progress; p != nil && p.Message != lastMessage {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", p.Progress, p.Message)
			lastMessage = p.Message
		}
	}

	status := o.Snapshot()
	if status.Phase != domain.PhaseCompleted {
		log.Fatalf("run %s: %s", status.Phase, status.Error)
	}

	fmt.Println(status.Result.Text)
	for _, link := range status.Result.MediaLinks {
		fmt.Fprintf(os.Stderr, "media: %s\n", link)
	}
}

func cmdNormalize(args []string) {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	file := fs.String("file", "", "terminal payload file, - for stdin (required)")
	cfgFile := fs.String("config", "", "YAML config file for limit overrides")
	_ = fs.Parse(args)

	if *file == "" {
		fs.Usage()
		os.Exit(1)
	}

	var data []byte
	var err error
	if *file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		log.Fatalf("failed to read payload: %v", err)
	}

	limits := config.DefaultLimits()
	if *cfgFile != "" {
		limits = loadConfig(*cfgFile).Limits
	}

	payload := normalize.FromRaw(data)
	outcome := normalize.Normalize(payload, normalize.Options{
		MinMatchLen: limits.MinRegexMatchLen,
		TruncateLen: limits.TruncateLen,
	})
	graph := project.Graph(payload)

	out, err := json.MarshalIndent(map[string]any{
		"result":        outcome.Result,
		"text_strategy": outcome.TextStrategy,
		"graph":         graph,
	}, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}
	fmt.Println(string(out))
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	apiURL := fs.String("api", "http://localhost:8080", "API server base URL")
	runID := fs.String("run-id", "", "run ID (empty lists all runs)")
	_ = fs.Parse(args)

	path := "/api/v1/runs"
	if *runID != "" {
		path += "/" + *runID
	}
	fetchAndPrint(*apiURL + path)
}

func cmdResult(args []string) {
	fs := flag.NewFlagSet("result", flag.ExitOnError)
	apiURL := fs.String("api", "http://localhost:8080", "API server base URL")
	runID := fs.String("run-id", "", "run ID (required)")
	_ = fs.Parse(args)

	if *runID == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := http.Get(*apiURL + "/api/v1/runs/" + *runID)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var status domain.RunStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		log.Fatalf("failed to decode status: %v", err)
	}
	if status.Result == nil {
		log.Fatalf("run %s has no result (phase %s)", *runID, status.Phase)
	}
	fmt.Println(status.Result.Text)
}

func fetchAndPrint(url string) {
	resp, err := http.Get(url)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		log.Fatalf("failed to decode response: %v", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal response: %v", err)
	}
	fmt.Println(string(out))
}
