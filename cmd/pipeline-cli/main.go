/*-------------------------------------------------------------------------
 *
 * main.go
 *    Command line pipeline runner
 *
 * Runs one full pipeline to completion and prints a summary. With
 * --dry-run the run uses the in-memory store and scripted crews, so no
 * database or LLM credentials are needed.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/cmd/pipeline-cli/main.go
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/verticallabs/pipeline/internal/config"
	"github.com/verticallabs/pipeline/internal/crew"
	"github.com/verticallabs/pipeline/internal/db"
	"github.com/verticallabs/pipeline/internal/metrics"
	"github.com/verticallabs/pipeline/internal/monitor"
	"github.com/verticallabs/pipeline/internal/orchestrator"
	"github.com/verticallabs/pipeline/internal/results"
	"github.com/verticallabs/pipeline/internal/tools"
)

func main() {
	var (
		configPath = flag.String("c", "", "Path to configuration file")
		domain     = flag.String("domain", "", "Override pipeline domain")
		audience   = flag.String("audience", "", "Override target audience")
		goals      = flag.String("goals", "", "Override content goals")
		topology   = flag.String("topology", "", "Override stage topology")
		failFast   = flag.Bool("fail-fast", false, "Abort the stage on the first fan-out failure")
		dryRun     = flag.Bool("dry-run", false, "Run with the in-memory store and scripted crews")
		exportJSON = flag.Bool("export", false, "Print the workflow export as JSON on success")
	)
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	config.LoadFromEnv(cfg)

	if *domain != "" {
		cfg.Pipeline.Domain = *domain
	}
	if *audience != "" {
		cfg.Pipeline.TargetAudience = *audience
	}
	if *goals != "" {
		cfg.Pipeline.ContentGoals = *goals
	}
	if *topology != "" {
		cfg.Pipeline.Topology = *topology
	}
	if *failFast {
		cfg.Pipeline.FailFast = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	metrics.InitLogging(cfg.Logging.Level, "console")

	var store results.Store
	var runner crew.Runner

	if *dryRun {
		store = results.NewMemoryStore()
		runner = scriptedRunner()
	} else {
		database, err := db.NewDB(cfg.Database.ConnString(), db.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: Failed to connect to database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()

		if runner, err = buildRunner(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize crew runners: %v\n", err)
			os.Exit(1)
		}

		queries := db.NewQueries(database.DB)
		queries.SetConnInfoFunc(database.GetConnInfoString)
		store = results.NewPostgresStore(queries)
	}

	mon := monitor.NewPerformanceMonitor()
	publisher := crew.PublisherInfo{
		Name:        cfg.Publisher.Name,
		URL:         cfg.Publisher.URL,
		Categories:  cfg.Publisher.Categories,
		Audience:    cfg.Publisher.Audience,
		Locations:   cfg.Publisher.Locations,
		Preferences: cfg.Publisher.Preferences,
	}

	orch, err := orchestrator.NewOrchestrator(runner, store, mon, cfg.Pipeline, publisher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	if !*dryRun {
		orch.SetScraper(tools.NewScraper(15 * time.Second))
	}

	ctx := context.Background()
	state, runErr := orch.RunFullPipeline(ctx)

	fmt.Printf("Workflow:      %s\n", orch.WorkflowID())
	fmt.Printf("Phase:         %s\n", orch.Phase())
	fmt.Printf("Topics:        %d\n", len(state.Topics()))
	fmt.Printf("Content items: %d\n", len(state.ContentItems()))
	fmt.Printf("Pitches:       %d\n", len(state.Pitches()))

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Pipeline failed: %v\n", runErr)
		os.Exit(1)
	}

	if *exportJSON {
		export, err := store.ExportWorkflowResults(ctx, orch.WorkflowID())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(export); err != nil {
			fmt.Fprintf(os.Stderr, "Export encoding failed: %v\n", err)
			os.Exit(1)
		}
	}
}

/* buildRunner wires one OpenAI-backed runner per crew type */
func buildRunner(cfg *config.Config) (crew.Runner, error) {
	mux := crew.NewMuxRunner()
	crews := map[string]config.CrewConfig{
		crew.TypeTopics:  cfg.Crews.Topics,
		crew.TypePitch:   cfg.Crews.Pitch,
		crew.TypeContent: cfg.Crews.Content,
	}
	for crewType, crewCfg := range crews {
		runner, err := crew.NewOpenAIRunner(crew.Settings{
			Model:   crewCfg.Model,
			APIKey:  cfg.Crews.APIKey,
			BaseURL: cfg.Crews.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		mux.Register(crewType, runner)
	}
	return mux, nil
}

/* scriptedRunner returns canned crew outputs for dry runs */
func scriptedRunner() crew.Runner {
	mock := crew.NewMockRunner()
	mock.ScriptOutput(crew.TypeTopics, &crew.Output{
		Topics: []crew.Topic{
			{Title: "Sample Topic A", Description: "First sample topic", Keywords: []string{"sample"}},
			{Title: "Sample Topic B", Description: "Second sample topic", Keywords: []string{"demo"}},
		},
		TokensUsed: 100,
	})
	mock.ScriptOutput(crew.TypeContent, &crew.Output{
		ContentItems: []crew.ContentItem{
			{Title: "Sample Article", Content: "# Sample\n\nGenerated body.", Metadata: map[string]interface{}{"word_count": 3}},
		},
		TokensUsed: 200,
	})
	mock.ScriptOutput(crew.TypePitch, &crew.Output{
		Pitches: []crew.Pitch{
			{Title: "Sample Pitch", Pitch: "Why this matters now.", TargetAudience: "editors"},
		},
		TokensUsed: 50,
	})
	return mock
}
