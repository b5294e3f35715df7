/*-------------------------------------------------------------------------
 *
 * migrations.go
 *    SQL migration runner for the content pipeline
 *
 * Applies .sql files from a migrations directory in lexical order,
 * tracking applied versions in pipeline.schema_migrations.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/db/migrations.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/verticallabs/pipeline/internal/metrics"
)

const createMigrationsTableQuery = `
	CREATE SCHEMA IF NOT EXISTS pipeline;
	CREATE TABLE IF NOT EXISTS pipeline.schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

type MigrationRunner struct {
	db  *sqlx.DB
	dir string
}

/* NewMigrationRunner creates a migration runner for the given directory */
func NewMigrationRunner(db *sqlx.DB, dir string) (*MigrationRunner, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migrations directory not accessible: dir='%s', error=%w", dir, err)
	}
	return &MigrationRunner{db: db, dir: dir}, nil
}

/* Run applies all pending migrations in lexical order */
func (m *MigrationRunner) Run(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createMigrationsTableQuery); err != nil {
		return fmt.Errorf("migration bookkeeping setup failed: error=%w", err)
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("migrations directory read failed: dir='%s', error=%w", m.dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		applied, err := m.isApplied(ctx, file)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.dir, file))
		if err != nil {
			return fmt.Errorf("migration read failed: file='%s', error=%w", file, err)
		}

		tx, err := m.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration transaction begin failed: file='%s', error=%w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration apply failed: file='%s', error=%w", file, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO pipeline.schema_migrations (version) VALUES ($1)`, file); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration bookkeeping insert failed: file='%s', error=%w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration commit failed: file='%s', error=%w", file, err)
		}

		metrics.InfoWithContext(ctx, "Migration applied", map[string]interface{}{
			"version": file,
		})
	}

	return nil
}

func (m *MigrationRunner) isApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := m.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM pipeline.schema_migrations WHERE version = $1)`, version)
	if err != nil {
		return false, fmt.Errorf("migration lookup failed: version='%s', error=%w", version, err)
	}
	return exists, nil
}
