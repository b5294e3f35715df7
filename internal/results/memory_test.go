/*-------------------------------------------------------------------------
 *
 * memory_test.go
 *    Tests for the in-memory results store contract
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/results/memory_test.go
 *
 *-------------------------------------------------------------------------
 */

package results

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

/* TestStoreRunIdempotent repeats a run write with the same crew type */
func TestStoreRunIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.StoreRun(ctx, "run-1", "topics", "wf-1", map[string]interface{}{"k": "v"}); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}
	if err := store.StoreRun(ctx, "run-1", "topics", "wf-1", nil); err != nil {
		t.Fatalf("Expected idempotent repeat to succeed, got %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != RunStatusRunning {
		t.Errorf("Expected running status, got %s", run.Status)
	}
	if run.Metadata["k"] != "v" {
		t.Errorf("Expected original metadata preserved, got %v", run.Metadata)
	}
}

/* TestStoreRunCrewTypeConflict rejects a repeat with a different crew type */
func TestStoreRunCrewTypeConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.StoreRun(ctx, "run-1", "topics", "wf-1", nil); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}
	err := store.StoreRun(ctx, "run-1", "content", "wf-1", nil)
	if !errors.Is(err, ErrDuplicateRun) {
		t.Fatalf("Expected ErrDuplicateRun, got %v", err)
	}
}

/* TestUpdateRunStatusStampsCompletion stamps completion time on terminal
 * statuses only */
func TestUpdateRunStatusStampsCompletion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.StoreRun(ctx, "run-1", "topics", "wf-1", nil); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}

	if err := store.UpdateRunStatus(ctx, "run-1", RunStatusCompleted); err != nil {
		t.Fatalf("UpdateRunStatus failed: %v", err)
	}
	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != RunStatusCompleted {
		t.Errorf("Expected completed, got %s", run.Status)
	}
	if run.CompletedAt == nil {
		t.Error("Expected completion time on terminal status")
	}

	if err := store.UpdateRunStatus(ctx, "missing", RunStatusFailed); !errors.Is(err, ErrUnknownRun) {
		t.Errorf("Expected ErrUnknownRun, got %v", err)
	}
}

/* TestStoreResultRequiresRun never creates the run implicitly */
func TestStoreResultRequiresRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.StoreResult(ctx, "missing", "topics", map[string]interface{}{"title": "x"}); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("Expected ErrUnknownRun, got %v", err)
	}
	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("Expected ErrUnknownRun from GetRun, got %v", err)
	}
}

/* TestResultIDsUnique generates distinct ids under concurrent writes */
func TestResultIDsUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.StoreRun(ctx, "run-1", "topics", "wf-1", nil); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}

	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := store.StoreResult(ctx, "run-1", "topics", map[string]interface{}{"i": i})
			if err != nil {
				t.Errorf("StoreResult failed: %v", err)
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("Duplicate result id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("Expected %d results, got %d", n, len(seen))
	}
}

/* TestGetResultsFilters applies conjunctive run and crew type filters */
func TestGetResultsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, runID := range []string{"run-1", "run-2"} {
		crewType := "topics"
		if runID == "run-2" {
			crewType = "content"
		}
		if err := store.StoreRun(ctx, runID, crewType, "wf-1", nil); err != nil {
			t.Fatalf("StoreRun failed: %v", err)
		}
		for i := 0; i < 2; i++ {
			if _, err := store.StoreResult(ctx, runID, crewType, map[string]interface{}{"i": i}); err != nil {
				t.Fatalf("StoreResult failed: %v", err)
			}
		}
	}

	all, err := store.GetResults(ctx, Filter{})
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("Expected 4 results, got %d", len(all))
	}

	runID := "run-1"
	byRun, err := store.GetResults(ctx, Filter{RunID: &runID})
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	if len(byRun) != 2 {
		t.Errorf("Expected 2 results for run-1, got %d", len(byRun))
	}

	crewType := "content"
	both, err := store.GetResults(ctx, Filter{RunID: &runID, CrewType: &crewType})
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	if len(both) != 0 {
		t.Errorf("Expected conjunctive filter to match nothing, got %d", len(both))
	}
}

/* TestRelationships stores directed edges, rejects unknown endpoints, and
 * traverses exactly one hop */
func TestRelationships(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.StoreRun(ctx, "run-1", "topics", "wf-1", nil); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}

	topicID, err := store.StoreResult(ctx, "run-1", "topics", map[string]interface{}{"title": "t"})
	if err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}
	contentID, err := store.StoreResult(ctx, "run-1", "content", map[string]interface{}{"title": "c"})
	if err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}
	pitchID, err := store.StoreResult(ctx, "run-1", "pitch", map[string]interface{}{"title": "p"})
	if err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}

	if err := store.StoreRelationship(ctx, contentID, topicID, RelationDerivedFrom); err != nil {
		t.Fatalf("StoreRelationship failed: %v", err)
	}
	if err := store.StoreRelationship(ctx, pitchID, contentID, RelationDerivedFrom); err != nil {
		t.Fatalf("StoreRelationship failed: %v", err)
	}
	/* Repeat edge collapses */
	if err := store.StoreRelationship(ctx, contentID, topicID, RelationDerivedFrom); err != nil {
		t.Fatalf("Repeat StoreRelationship failed: %v", err)
	}

	if err := store.StoreRelationship(ctx, contentID, "ghost", RelationDerivedFrom); !errors.Is(err, ErrUnknownResult) {
		t.Fatalf("Expected ErrUnknownResult, got %v", err)
	}

	/* One directed hop from content: the topic, never the pitch */
	related, err := store.GetRelatedResults(ctx, contentID, nil)
	if err != nil {
		t.Fatalf("GetRelatedResults failed: %v", err)
	}
	if len(related) != 1 || related[0].ResultID != topicID {
		t.Fatalf("Expected exactly the topic result, got %v", related)
	}

	other := "other_relation"
	filtered, err := store.GetRelatedResults(ctx, contentID, &other)
	if err != nil {
		t.Fatalf("GetRelatedResults failed: %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("Expected no results for unmatched relation type, got %d", len(filtered))
	}

	if _, err := store.GetRelatedResults(ctx, "ghost", nil); !errors.Is(err, ErrUnknownResult) {
		t.Errorf("Expected ErrUnknownResult for unknown source, got %v", err)
	}
}

/* TestExportWorkflowResults bundles runs, results, and relationships, and
 * renders content bodies to HTML */
func TestExportWorkflowResults(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.StoreRun(ctx, "run-t", "topics", "wf-1", nil); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}
	if err := store.StoreRun(ctx, "run-c", "content", "wf-1", nil); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}
	if err := store.StoreRun(ctx, "run-x", "topics", "wf-other", nil); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}

	topicID, err := store.StoreResult(ctx, "run-t", "topics", map[string]interface{}{"title": "t"})
	if err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}
	contentID, err := store.StoreResult(ctx, "run-c", "content", map[string]interface{}{
		"title":   "c",
		"content": "# Heading\n\nbody",
	})
	if err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}
	if err := store.StoreRelationship(ctx, contentID, topicID, RelationDerivedFrom); err != nil {
		t.Fatalf("StoreRelationship failed: %v", err)
	}

	export, err := store.ExportWorkflowResults(ctx, "wf-1")
	if err != nil {
		t.Fatalf("ExportWorkflowResults failed: %v", err)
	}
	if len(export.Runs) != 2 {
		t.Fatalf("Expected 2 runs in export, got %d", len(export.Runs))
	}
	if len(export.Relationships) != 1 {
		t.Fatalf("Expected 1 relationship in export, got %d", len(export.Relationships))
	}

	var rendered string
	for _, run := range export.Runs {
		for _, r := range run.Results {
			if r.ResultID == contentID {
				rendered, _ = r.Content["content_html"].(string)
			}
		}
	}
	if !strings.Contains(rendered, "<h1") {
		t.Errorf("Expected rendered HTML heading, got %q", rendered)
	}

	/* The stored result keeps its original content */
	found, err := store.GetResults(ctx, Filter{})
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	for _, r := range found {
		if r.ResultID == contentID {
			if _, ok := r.Content["content_html"]; ok {
				t.Error("Expected rendering to stay out of the stored record")
			}
		}
	}
}

/* TestConcurrentWritesVisible reads back records written by concurrent
 * goroutines without loss */
func TestConcurrentWritesVisible(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runID := fmt.Sprintf("run-%d", i)
			if err := store.StoreRun(ctx, runID, "topics", "wf-1", nil); err != nil {
				t.Errorf("StoreRun failed: %v", err)
				return
			}
			if _, err := store.StoreResult(ctx, runID, "topics", map[string]interface{}{"i": i}); err != nil {
				t.Errorf("StoreResult failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	all, err := store.GetResults(ctx, Filter{})
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	if len(all) != n {
		t.Errorf("Expected %d results, got %d", n, len(all))
	}
}
