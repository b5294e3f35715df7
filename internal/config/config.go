/*-------------------------------------------------------------------------
 *
 * config.go
 *    Configuration loading for the content pipeline
 *
 * Provides YAML file and environment variable configuration for the
 * server, database pool, logging, pipeline topology, and crew LLMs.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/config/config.go
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Crews     CrewsConfig     `yaml:"crews"`
	Publisher PublisherConfig `yaml:"publisher"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

/* PipelineConfig controls the flow controller and workflow executor */
type PipelineConfig struct {
	/* Stage order; supported values: "topics,content,pitch" and "topics,pitch,content" */
	Topology          string        `yaml:"topology"`
	MaxConcurrency    int           `yaml:"max_concurrency"`
	InvocationTimeout time.Duration `yaml:"invocation_timeout"`
	FailFast          bool          `yaml:"fail_fast"`
	Domain            string        `yaml:"domain"`
	TargetAudience    string        `yaml:"target_audience"`
	ContentGoals      string        `yaml:"content_goals"`
}

type CrewsConfig struct {
	Topics  CrewConfig `yaml:"topics"`
	Pitch   CrewConfig `yaml:"pitch"`
	Content CrewConfig `yaml:"content"`
	APIKey  string     `yaml:"api_key"`
	BaseURL string     `yaml:"base_url"`
}

/* CrewConfig holds the per-crew LLM selector, passed opaquely to the runner */
type CrewConfig struct {
	Model string `yaml:"model"`
}

type PublisherConfig struct {
	Name        string                 `yaml:"name"`
	URL         string                 `yaml:"url"`
	Categories  []string               `yaml:"categories"`
	Audience    string                 `yaml:"audience"`
	Locations   []string               `yaml:"locations"`
	Preferences map[string]interface{} `yaml:"preferences"`
}

/* DefaultConfig returns the default configuration */
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "pipeline",
			Database:        "pipeline",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Pipeline: PipelineConfig{
			Topology:          "topics,content,pitch",
			MaxConcurrency:    3,
			InvocationTimeout: 5 * time.Minute,
			FailFast:          false,
		},
		Crews: CrewsConfig{
			Topics:  CrewConfig{Model: "gpt-4"},
			Pitch:   CrewConfig{Model: "gpt-4"},
			Content: CrewConfig{Model: "gpt-4"},
		},
	}
}

/* LoadConfig loads configuration from a YAML file, applying defaults first */
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file read failed: path='%s', error=%w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config file parse failed: path='%s', error=%w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

/* LoadFromEnv overrides configuration from environment variables */
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PIPELINE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PIPELINE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PIPELINE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PIPELINE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PIPELINE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PIPELINE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PIPELINE_DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("PIPELINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PIPELINE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PIPELINE_TOPOLOGY"); v != "" {
		cfg.Pipeline.Topology = v
	}
	if v := os.Getenv("PIPELINE_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Pipeline.MaxConcurrency = n
		}
	}
	if v := os.Getenv("PIPELINE_INVOCATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.InvocationTimeout = d
		}
	}
	if v := os.Getenv("PIPELINE_FAIL_FAST"); v != "" {
		cfg.Pipeline.FailFast = v == "true" || v == "1"
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Crews.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Crews.BaseURL = v
	}
}

/* Validate checks configuration invariants */
func (c *Config) Validate() error {
	if _, err := c.Pipeline.Stages(); err != nil {
		return err
	}
	if c.Pipeline.MaxConcurrency < 1 {
		return fmt.Errorf("config validation failed: max_concurrency=%d, must be >= 1", c.Pipeline.MaxConcurrency)
	}
	if c.Pipeline.InvocationTimeout <= 0 {
		return fmt.Errorf("config validation failed: invocation_timeout=%s, must be positive", c.Pipeline.InvocationTimeout)
	}
	return nil
}

/* Stages parses the topology string into an ordered stage list */
func (p PipelineConfig) Stages() ([]string, error) {
	parts := strings.Split(p.Topology, ",")
	stages := make([]string, 0, len(parts))
	seen := make(map[string]bool)
	for _, part := range parts {
		stage := strings.TrimSpace(part)
		switch stage {
		case "topics", "pitch", "content":
		default:
			return nil, fmt.Errorf("config validation failed: unknown pipeline stage '%s' in topology '%s'", stage, p.Topology)
		}
		if seen[stage] {
			return nil, fmt.Errorf("config validation failed: duplicate pipeline stage '%s' in topology '%s'", stage, p.Topology)
		}
		seen[stage] = true
		stages = append(stages, stage)
	}
	if len(stages) != 3 || stages[0] != "topics" {
		return nil, fmt.Errorf("config validation failed: topology '%s' must list all three stages starting with topics", p.Topology)
	}
	return stages, nil
}

/* ConnString builds a lib/pq connection string */
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, sslMode)
}
