/*-------------------------------------------------------------------------
 *
 * queries.go
 *    Database queries for the content pipeline
 *
 * Provides database query functions for crew runs, results, and
 * provenance relationships.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/db/queries.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

/* Run queries */
const (
	createRunQuery = `
		INSERT INTO pipeline.runs (run_id, workflow_id, crew_type, status, metadata, started_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, NOW())
		ON CONFLICT (run_id) DO NOTHING`

	getRunQuery = `SELECT * FROM pipeline.runs WHERE run_id = $1`

	updateRunStatusQuery = `
		UPDATE pipeline.runs
		SET status = $2,
			completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN NOW() ELSE completed_at END
		WHERE run_id = $1`

	listRunsByWorkflowQuery = `
		SELECT * FROM pipeline.runs
		WHERE workflow_id = $1
		ORDER BY started_at ASC`
)

/* Result queries */
const (
	createResultQuery = `
		INSERT INTO pipeline.results (result_id, run_id, crew_type, content, created_at)
		VALUES ($1, $2, $3, $4::jsonb, NOW())`

	getResultQuery = `SELECT * FROM pipeline.results WHERE result_id = $1`

	resultExistsQuery = `SELECT EXISTS(SELECT 1 FROM pipeline.results WHERE result_id = $1)`
)

/* Relationship queries */
const (
	createRelationshipQuery = `
		INSERT INTO pipeline.relationships (source_id, target_id, relation_type, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (source_id, target_id, relation_type) DO NOTHING`

	getRelatedResultsQuery = `
		SELECT r.* FROM pipeline.results r
		JOIN pipeline.relationships rel ON r.result_id = rel.target_id
		WHERE rel.source_id = $1
		AND ($2::text IS NULL OR rel.relation_type = $2)
		ORDER BY r.created_at ASC`

	listRelationshipsByRunsQuery = `
		SELECT rel.* FROM pipeline.relationships rel
		JOIN pipeline.results src ON src.result_id = rel.source_id
		WHERE src.run_id = ANY($1)
		ORDER BY rel.created_at ASC`
)

type Queries struct {
	DB       *sqlx.DB
	connInfo func() string
}

func NewQueries(db *sqlx.DB) *Queries {
	return &Queries{
		DB: db,
		connInfo: func() string {
			return "unknown database connection"
		},
	}
}

/* SetConnInfoFunc sets a function to retrieve connection info for error messages */
func (q *Queries) SetConnInfoFunc(fn func() string) {
	q.connInfo = fn
}

/* getConnInfoString returns connection info string */
func (q *Queries) getConnInfoString() string {
	if q.connInfo != nil {
		return q.connInfo()
	}
	return "unknown database connection"
}

/* formatQueryError formats a detailed query error message */
func (q *Queries) formatQueryError(operation string, table string, err error) error {
	return fmt.Errorf("query execution failed on %s: operation=%s, table='%s', error=%w",
		q.getConnInfoString(), operation, table, err)
}

/* Run methods */

/* CreateRun inserts a run; a repeat insert of the same run_id is a no-op */
func (q *Queries) CreateRun(ctx context.Context, run *Run) (bool, error) {
	res, err := q.DB.ExecContext(ctx, createRunQuery,
		run.RunID, run.WorkflowID, run.CrewType, run.Status, run.Metadata)
	if err != nil {
		return false, q.formatQueryError("INSERT", "pipeline.runs", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, q.formatQueryError("INSERT", "pipeline.runs", err)
	}
	return rows > 0, nil
}

/* GetRun fetches a run by id; returns nil when absent */
func (q *Queries) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := q.DB.GetContext(ctx, &run, getRunQuery, runID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, q.formatQueryError("SELECT", "pipeline.runs", err)
	}
	return &run, nil
}

/* UpdateRunStatus updates a run status, stamping completed_at on terminal statuses */
func (q *Queries) UpdateRunStatus(ctx context.Context, runID, status string) (bool, error) {
	res, err := q.DB.ExecContext(ctx, updateRunStatusQuery, runID, status)
	if err != nil {
		return false, q.formatQueryError("UPDATE", "pipeline.runs", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, q.formatQueryError("UPDATE", "pipeline.runs", err)
	}
	return rows > 0, nil
}

/* ListRunsByWorkflow lists all runs belonging to a workflow, oldest first */
func (q *Queries) ListRunsByWorkflow(ctx context.Context, workflowID string) ([]Run, error) {
	var runs []Run
	err := q.DB.SelectContext(ctx, &runs, listRunsByWorkflowQuery, workflowID)
	if err != nil {
		return nil, q.formatQueryError("SELECT", "pipeline.runs", err)
	}
	return runs, nil
}

/* Result methods */

func (q *Queries) CreateResult(ctx context.Context, result *Result) error {
	_, err := q.DB.ExecContext(ctx, createResultQuery,
		result.ResultID, result.RunID, result.CrewType, result.Content)
	if err != nil {
		return q.formatQueryError("INSERT", "pipeline.results", err)
	}
	return nil
}

func (q *Queries) GetResult(ctx context.Context, resultID string) (*Result, error) {
	var result Result
	err := q.DB.GetContext(ctx, &result, getResultQuery, resultID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, q.formatQueryError("SELECT", "pipeline.results", err)
	}
	return &result, nil
}

func (q *Queries) ResultExists(ctx context.Context, resultID string) (bool, error) {
	var exists bool
	err := q.DB.GetContext(ctx, &exists, resultExistsQuery, resultID)
	if err != nil {
		return false, q.formatQueryError("SELECT", "pipeline.results", err)
	}
	return exists, nil
}

/* GetResultsFiltered selects results with optional conjunctive run_id and
 * crew_type filters. Filters are assembled with squirrel so the unfiltered
 * scan and every filter combination share one code path. */
func (q *Queries) GetResultsFiltered(ctx context.Context, runID, crewType *string) ([]Result, error) {
	builder := sq.Select("*").
		From("pipeline.results").
		OrderBy("created_at ASC").
		PlaceholderFormat(sq.Dollar)

	if runID != nil && *runID != "" {
		builder = builder.Where(sq.Eq{"run_id": *runID})
	}
	if crewType != nil && *crewType != "" {
		builder = builder.Where(sq.Eq{"crew_type": *crewType})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("result filter query build failed: error=%w", err)
	}

	var results []Result
	if err := q.DB.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, q.formatQueryError("SELECT", "pipeline.results", err)
	}
	return results, nil
}

/* Relationship methods */

func (q *Queries) CreateRelationship(ctx context.Context, rel *Relationship) error {
	_, err := q.DB.ExecContext(ctx, createRelationshipQuery,
		rel.SourceID, rel.TargetID, rel.RelationType)
	if err != nil {
		return q.formatQueryError("INSERT", "pipeline.relationships", err)
	}
	return nil
}

/* GetRelatedResults returns results one directed hop from sourceID */
func (q *Queries) GetRelatedResults(ctx context.Context, sourceID string, relationType *string) ([]Result, error) {
	var results []Result
	err := q.DB.SelectContext(ctx, &results, getRelatedResultsQuery, sourceID, relationType)
	if err != nil {
		return nil, q.formatQueryError("SELECT", "pipeline.results", err)
	}
	return results, nil
}

/* ListRelationshipsByRuns lists relationships whose source result belongs to one of the runs */
func (q *Queries) ListRelationshipsByRuns(ctx context.Context, runIDs []string) ([]Relationship, error) {
	var rels []Relationship
	err := q.DB.SelectContext(ctx, &rels, listRelationshipsByRunsQuery, pq.Array(runIDs))
	if err != nil {
		return nil, q.formatQueryError("SELECT", "pipeline.relationships", err)
	}
	return rels, nil
}
