/*-------------------------------------------------------------------------
 *
 * memory.go
 *    In-memory results store
 *
 * Honors the same contract as the Postgres store. Used in tests and for
 * dry runs without a database; it does not survive a restart.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/results/memory.go
 *
 *-------------------------------------------------------------------------
 */

package results

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

/* MemoryStore keeps all records in process memory behind one mutex */
type MemoryStore struct {
	mu            sync.RWMutex
	runs          map[string]*Run
	runOrder      []string
	results       map[string]*Result
	resultOrder   []string
	relationships []Relationship
	/* edges indexes relationships by source result id */
	edges map[string][]int
}

/* NewMemoryStore creates an empty in-memory store */
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]*Run),
		results: make(map[string]*Result),
		edges:   make(map[string][]int),
	}
}

func (s *MemoryStore) StoreRun(ctx context.Context, runID, crewType, workflowID string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.runs[runID]; ok {
		if existing.CrewType != crewType {
			return fmt.Errorf("run storage rejected: run_id='%s', stored_crew_type='%s', requested_crew_type='%s', error=%w",
				runID, existing.CrewType, crewType, ErrDuplicateRun)
		}
		return nil
	}

	s.runs[runID] = &Run{
		RunID:      runID,
		WorkflowID: workflowID,
		CrewType:   crewType,
		Status:     RunStatusRunning,
		Metadata:   metadata,
		StartedAt:  time.Now(),
	}
	s.runOrder = append(s.runOrder, runID)
	return nil
}

func (s *MemoryStore) UpdateRunStatus(ctx context.Context, runID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run status update rejected: run_id='%s', error=%w", runID, ErrUnknownRun)
	}
	run.Status = status
	if status == RunStatusCompleted || status == RunStatusFailed {
		now := time.Now()
		run.CompletedAt = &now
	}
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run retrieval failed: run_id='%s', error=%w", runID, ErrUnknownRun)
	}
	copied := *run
	return &copied, nil
}

func (s *MemoryStore) StoreResult(ctx context.Context, runID, crewType string, content map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return "", fmt.Errorf("result storage rejected: run_id='%s', error=%w", runID, ErrUnknownRun)
	}

	resultID := uuid.New().String()
	s.results[resultID] = &Result{
		ResultID:  resultID,
		RunID:     runID,
		CrewType:  crewType,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.resultOrder = append(s.resultOrder, resultID)
	return resultID, nil
}

func (s *MemoryStore) StoreRelationship(ctx context.Context, sourceID, targetID, relationType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []string{sourceID, targetID} {
		if _, ok := s.results[id]; !ok {
			return fmt.Errorf("relationship storage rejected: result_id='%s', error=%w", id, ErrUnknownResult)
		}
	}

	/* Repeat edges collapse, matching the Postgres ON CONFLICT DO NOTHING */
	for _, idx := range s.edges[sourceID] {
		rel := s.relationships[idx]
		if rel.TargetID == targetID && rel.RelationType == relationType {
			return nil
		}
	}

	s.relationships = append(s.relationships, Relationship{
		SourceID:     sourceID,
		TargetID:     targetID,
		RelationType: relationType,
	})
	s.edges[sourceID] = append(s.edges[sourceID], len(s.relationships)-1)
	return nil
}

func (s *MemoryStore) GetResults(ctx context.Context, filter Filter) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Result, 0)
	for _, id := range s.resultOrder {
		r := s.results[id]
		if filter.RunID != nil && *filter.RunID != "" && r.RunID != *filter.RunID {
			continue
		}
		if filter.CrewType != nil && *filter.CrewType != "" && r.CrewType != *filter.CrewType {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *MemoryStore) GetRelatedResults(ctx context.Context, resultID string, relationType *string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.results[resultID]; !ok {
		return nil, fmt.Errorf("related result query rejected: result_id='%s', error=%w", resultID, ErrUnknownResult)
	}

	out := make([]Result, 0)
	for _, idx := range s.edges[resultID] {
		rel := s.relationships[idx]
		if relationType != nil && *relationType != "" && rel.RelationType != *relationType {
			continue
		}
		if target, ok := s.results[rel.TargetID]; ok {
			out = append(out, *target)
		}
	}
	return out, nil
}

func (s *MemoryStore) ExportWorkflowResults(ctx context.Context, workflowID string) (*WorkflowExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	export := &WorkflowExport{WorkflowID: workflowID, Runs: make([]ExportedRun, 0)}
	inWorkflow := make(map[string]bool)

	for _, runID := range s.runOrder {
		run := s.runs[runID]
		if run.WorkflowID != workflowID {
			continue
		}
		inWorkflow[runID] = true
		exported := ExportedRun{Run: *run, Results: make([]Result, 0)}
		for _, resultID := range s.resultOrder {
			if r := s.results[resultID]; r.RunID == runID {
				exported.Results = append(exported.Results, *r)
			}
		}
		export.Runs = append(export.Runs, exported)
	}

	for _, rel := range s.relationships {
		src, ok := s.results[rel.SourceID]
		if ok && inWorkflow[src.RunID] {
			export.Relationships = append(export.Relationships, rel)
		}
	}

	attachRenderedContent(export)
	return export, nil
}
