/*-------------------------------------------------------------------------
 *
 * store.go
 *    Results store contract for the content pipeline
 *
 * Defines the persistent record of crew runs, their results, and the
 * provenance relationships between results.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/results/store.go
 *
 *-------------------------------------------------------------------------
 */

package results

import (
	"context"
	"errors"
	"time"
)

/* Run statuses */
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

/* Relation types */
const (
	RelationDerivedFrom = "derived_from"
)

var (
	/* ErrUnknownRun is returned when a run_id was never stored */
	ErrUnknownRun = errors.New("unknown run")

	/* ErrUnknownResult is returned when a relationship references a result that does not exist */
	ErrUnknownResult = errors.New("unknown result")

	/* ErrDuplicateRun is returned when a run_id is stored again with a different crew type */
	ErrDuplicateRun = errors.New("duplicate run with conflicting crew type")
)

/* Run is one crew invocation record */
type Run struct {
	RunID       string                 `json:"run_id"`
	WorkflowID  string                 `json:"workflow_id,omitempty"`
	CrewType    string                 `json:"crew_type"`
	Status      string                 `json:"status"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

/* Result is one discrete crew output */
type Result struct {
	ResultID  string                 `json:"result_id"`
	RunID     string                 `json:"run_id"`
	CrewType  string                 `json:"crew_type"`
	Content   map[string]interface{} `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
}

/* Relationship is a directed provenance edge between two results */
type Relationship struct {
	SourceID     string `json:"source_id"`
	TargetID     string `json:"target_id"`
	RelationType string `json:"relation_type"`
}

/* Filter narrows GetResults; nil fields match everything, set fields are conjunctive */
type Filter struct {
	RunID    *string
	CrewType *string
}

/* ExportedRun bundles one run with its results for a workflow export */
type ExportedRun struct {
	Run     Run      `json:"run"`
	Results []Result `json:"results"`
}

/* WorkflowExport is the full audit bundle for one workflow */
type WorkflowExport struct {
	WorkflowID    string         `json:"workflow_id"`
	Runs          []ExportedRun  `json:"runs"`
	Relationships []Relationship `json:"relationships"`
}

/* Store is the persistent record of pipeline outputs. Implementations must
 * be safe for concurrent use; writes are immediately visible to subsequent
 * reads. */
type Store interface {
	/* StoreRun creates a run. A repeat call with identical crew type is a
	 * no-op; a repeat call with a different crew type fails with
	 * ErrDuplicateRun. */
	StoreRun(ctx context.Context, runID, crewType, workflowID string, metadata map[string]interface{}) error

	/* UpdateRunStatus transitions a run's status; terminal statuses stamp
	 * the completion time. Fails with ErrUnknownRun for unstored runs. */
	UpdateRunStatus(ctx context.Context, runID, status string) error

	/* GetRun fetches a run. Fails with ErrUnknownRun when absent. */
	GetRun(ctx context.Context, runID string) (*Run, error)

	/* StoreResult persists one crew output under an existing run and
	 * returns the generated result id. Fails with ErrUnknownRun when the
	 * run was never stored; it never creates the run implicitly. */
	StoreResult(ctx context.Context, runID, crewType string, content map[string]interface{}) (string, error)

	/* StoreRelationship records a directed provenance edge. Fails with
	 * ErrUnknownResult when either endpoint is not a stored result. */
	StoreRelationship(ctx context.Context, sourceID, targetID, relationType string) error

	/* GetResults returns results matching the filter, oldest first. */
	GetResults(ctx context.Context, filter Filter) ([]Result, error)

	/* GetRelatedResults returns results exactly one directed hop from
	 * resultID, optionally restricted to a relation type. Fails with
	 * ErrUnknownResult when resultID is not a stored result. */
	GetRelatedResults(ctx context.Context, resultID string, relationType *string) ([]Result, error)

	/* ExportWorkflowResults bundles all runs, results, and relationships
	 * of a workflow into one exportable document. */
	ExportWorkflowResults(ctx context.Context, workflowID string) (*WorkflowExport, error)
}
