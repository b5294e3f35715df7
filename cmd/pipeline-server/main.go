/*-------------------------------------------------------------------------
 *
 * main.go
 *    Main entry point for the pipeline server
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/cmd/pipeline-server/main.go
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/verticallabs/pipeline/internal/api"
	"github.com/verticallabs/pipeline/internal/config"
	"github.com/verticallabs/pipeline/internal/crew"
	"github.com/verticallabs/pipeline/internal/db"
	"github.com/verticallabs/pipeline/internal/metrics"
	"github.com/verticallabs/pipeline/internal/monitor"
	"github.com/verticallabs/pipeline/internal/results"
	"github.com/verticallabs/pipeline/internal/tools"
)

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("c", "", "Path to configuration file")
		showHelp    = flag.Bool("help", false, "Show help message")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Pipeline Server - content pipeline orchestration service\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                    Start server with default configuration\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c config.yaml     Start server with custom config file\n", os.Args[0])
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("pipeline-server version %s\n", version)
		fmt.Printf("Build date: %s\n", buildDate)
		fmt.Printf("Git commit: %s\n", gitCommit)
		os.Exit(0)
	}
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	/* Load configuration */
	cfg := config.DefaultConfig()
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath != "" {
		var err error
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	/* Initialize logging */
	metrics.InitLogging(cfg.Logging.Level, cfg.Logging.Format)

	/* Connect to database */
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

	/* Run migrations */
	migrationRunner, err := db.NewMigrationRunner(database.DB, "./migrations")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Migration setup failed: %v\n", err)
		os.Exit(1)
	}
	if err := migrationRunner.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Migration failed: %v\n", err)
		os.Exit(1)
	}

	/* Initialize components */
	queries := db.NewQueries(database.DB)
	queries.SetConnInfoFunc(database.GetConnInfoString)
	store := results.NewPostgresStore(queries)
	mon := monitor.NewPerformanceMonitor()

	runner, err := buildRunner(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize crew runners: %v\n", err)
		os.Exit(1)
	}

	/* Initialize API */
	handlers := api.NewHandlers(store, mon, runner, cfg, database.HealthCheck)
	handlers.SetScraper(tools.NewScraper(15 * time.Second))
	router := api.NewRouter(handlers)

	/* Export pool stats */
	poolTicker := time.NewTicker(15 * time.Second)
	defer poolTicker.Stop()
	go func() {
		for range poolTicker.C {
			open, idle, inUse := database.GetPoolStats()
			metrics.RecordDBPoolStats(cfg.Database.Database, open, idle, inUse)
		}
	}()

	/* Start server */
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	/* Graceful shutdown */
	go func() {
		fmt.Printf("Server starting on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "FATAL: Server failed to start on %s: %v\n", addr, err)
			os.Exit(1)
		}
	}()

	/* Wait for interrupt signal */
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		fmt.Printf("Server forced to shutdown: %v\n", err)
	}

	fmt.Println("Server exited")
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
