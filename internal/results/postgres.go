/*-------------------------------------------------------------------------
 *
 * postgres.go
 *    PostgreSQL-backed results store
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/results/postgres.go
 *
 *-------------------------------------------------------------------------
 */

package results

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/verticallabs/pipeline/internal/db"
	"github.com/verticallabs/pipeline/internal/metrics"
)

/* PostgresStore persists pipeline outputs in PostgreSQL */
type PostgresStore struct {
	queries *db.Queries
}

/* NewPostgresStore creates a Postgres-backed store */
func NewPostgresStore(queries *db.Queries) *PostgresStore {
	return &PostgresStore{queries: queries}
}

func (s *PostgresStore) StoreRun(ctx context.Context, runID, crewType, workflowID string, metadata map[string]interface{}) error {
	var wf *string
	if workflowID != "" {
		wf = &workflowID
	}

	inserted, err := s.queries.CreateRun(ctx, &db.Run{
		RunID:      runID,
		WorkflowID: wf,
		CrewType:   crewType,
		Status:     RunStatusRunning,
		Metadata:   db.FromMap(metadata),
	})
	if err != nil {
		return fmt.Errorf("run storage failed: run_id='%s', crew_type='%s', error=%w", runID, crewType, err)
	}
	if inserted {
		return nil
	}

	/* Insert was a no-op; the run already exists. Idempotent only when the
	 * crew type matches. */
	existing, err := s.queries.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("run lookup failed: run_id='%s', error=%w", runID, err)
	}
	if existing != nil && existing.CrewType != crewType {
		return fmt.Errorf("run storage rejected: run_id='%s', stored_crew_type='%s', requested_crew_type='%s', error=%w",
			runID, existing.CrewType, crewType, ErrDuplicateRun)
	}
	return nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID, status string) error {
	updated, err := s.queries.UpdateRunStatus(ctx, runID, status)
	if err != nil {
		return fmt.Errorf("run status update failed: run_id='%s', status='%s', error=%w", runID, status, err)
	}
	if !updated {
		return fmt.Errorf("run status update rejected: run_id='%s', error=%w", runID, ErrUnknownRun)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	run, err := s.queries.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("run retrieval failed: run_id='%s', error=%w", runID, err)
	}
	if run == nil {
		return nil, fmt.Errorf("run retrieval failed: run_id='%s', error=%w", runID, ErrUnknownRun)
	}
	return toRun(run), nil
}

func (s *PostgresStore) StoreResult(ctx context.Context, runID, crewType string, content map[string]interface{}) (string, error) {
	run, err := s.queries.GetRun(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("result storage failed: run_id='%s', error=%w", runID, err)
	}
	if run == nil {
		return "", fmt.Errorf("result storage rejected: run_id='%s', error=%w", runID, ErrUnknownRun)
	}

	resultID := uuid.New().String()
	if err := s.queries.CreateResult(ctx, &db.Result{
		ResultID: resultID,
		RunID:    runID,
		CrewType: crewType,
		Content:  db.FromMap(content),
	}); err != nil {
		return "", fmt.Errorf("result storage failed: run_id='%s', result_id='%s', error=%w", runID, resultID, err)
	}

	metrics.RecordResultStored(crewType)
	return resultID, nil
}

func (s *PostgresStore) StoreRelationship(ctx context.Context, sourceID, targetID, relationType string) error {
	for _, id := range []string{sourceID, targetID} {
		exists, err := s.queries.ResultExists(ctx, id)
		if err != nil {
			return fmt.Errorf("relationship storage failed: result_id='%s', error=%w", id, err)
		}
		if !exists {
			return fmt.Errorf("relationship storage rejected: result_id='%s', error=%w", id, ErrUnknownResult)
		}
	}

	if err := s.queries.CreateRelationship(ctx, &db.Relationship{
		SourceID:     sourceID,
		TargetID:     targetID,
		RelationType: relationType,
	}); err != nil {
		return fmt.Errorf("relationship storage failed: source_id='%s', target_id='%s', relation_type='%s', error=%w",
			sourceID, targetID, relationType, err)
	}
	return nil
}

func (s *PostgresStore) GetResults(ctx context.Context, filter Filter) ([]Result, error) {
	rows, err := s.queries.GetResultsFiltered(ctx, filter.RunID, filter.CrewType)
	if err != nil {
		return nil, fmt.Errorf("result query failed: error=%w", err)
	}
	out := make([]Result, 0, len(rows))
	for i := range rows {
		out = append(out, *toResult(&rows[i]))
	}
	return out, nil
}

func (s *PostgresStore) GetRelatedResults(ctx context.Context, resultID string, relationType *string) ([]Result, error) {
	exists, err := s.queries.ResultExists(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("related result query failed: result_id='%s', error=%w", resultID, err)
	}
	if !exists {
		return nil, fmt.Errorf("related result query rejected: result_id='%s', error=%w", resultID, ErrUnknownResult)
	}

	rows, err := s.queries.GetRelatedResults(ctx, resultID, relationType)
	if err != nil {
		return nil, fmt.Errorf("related result query failed: result_id='%s', error=%w", resultID, err)
	}
	out := make([]Result, 0, len(rows))
	for i := range rows {
		out = append(out, *toResult(&rows[i]))
	}
	return out, nil
}

func (s *PostgresStore) ExportWorkflowResults(ctx context.Context, workflowID string) (*WorkflowExport, error) {
	runs, err := s.queries.ListRunsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow export failed: workflow_id='%s', error=%w", workflowID, err)
	}

	export := &WorkflowExport{WorkflowID: workflowID, Runs: make([]ExportedRun, 0, len(runs))}
	runIDs := make([]string, 0, len(runs))

	for i := range runs {
		runID := runs[i].RunID
		runIDs = append(runIDs, runID)
		rows, err := s.queries.GetResultsFiltered(ctx, &runID, nil)
		if err != nil {
			return nil, fmt.Errorf("workflow export failed: workflow_id='%s', run_id='%s', error=%w", workflowID, runID, err)
		}
		exported := ExportedRun{Run: *toRun(&runs[i]), Results: make([]Result, 0, len(rows))}
		for j := range rows {
			exported.Results = append(exported.Results, *toResult(&rows[j]))
		}
		export.Runs = append(export.Runs, exported)
	}

	if len(runIDs) > 0 {
		rels, err := s.queries.ListRelationshipsByRuns(ctx, runIDs)
		if err != nil {
			return nil, fmt.Errorf("workflow export failed: workflow_id='%s', error=%w", workflowID, err)
		}
		for i := range rels {
			export.Relationships = append(export.Relationships, Relationship{
				SourceID:     rels[i].SourceID,
				TargetID:     rels[i].TargetID,
				RelationType: rels[i].RelationType,
			})
		}
	}

	attachRenderedContent(export)
	return export, nil
}

func toRun(r *db.Run) *Run {
	workflowID := ""
	if r.WorkflowID != nil {
		workflowID = *r.WorkflowID
	}
	return &Run{
		RunID:       r.RunID,
		WorkflowID:  workflowID,
		CrewType:    r.CrewType,
		Status:      r.Status,
		Metadata:    r.Metadata.ToMap(),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

func toResult(r *db.Result) *Result {
	return &Result{
		ResultID:  r.ResultID,
		RunID:     r.RunID,
		CrewType:  r.CrewType,
		Content:   r.Content.ToMap(),
		CreatedAt: r.CreatedAt,
	}
}
