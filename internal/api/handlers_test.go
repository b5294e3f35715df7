/*-------------------------------------------------------------------------
 *
 * handlers_test.go
 *    Tests for the pipeline API handlers
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/api/handlers_test.go
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/verticallabs/pipeline/internal/config"
	"github.com/verticallabs/pipeline/internal/crew"
	"github.com/verticallabs/pipeline/internal/monitor"
	"github.com/verticallabs/pipeline/internal/results"
)

func testServer(t *testing.T) (*httptest.Server, *results.MemoryStore, *monitor.PerformanceMonitor) {
	t.Helper()

	store := results.NewMemoryStore()
	mon := monitor.NewPerformanceMonitor()

	mock := crew.NewMockRunner()
	mock.ScriptOutput(crew.TypeTopics, &crew.Output{
		Topics: []crew.Topic{{Title: "Solar", Description: "Trends", Keywords: []string{"solar"}}},
	})
	mock.ScriptOutput(crew.TypeContent, &crew.Output{
		ContentItems: []crew.ContentItem{{Title: "Article", Content: "Body"}},
	})
	mock.ScriptOutput(crew.TypePitch, &crew.Output{
		Pitches: []crew.Pitch{{Title: "Pitch", Pitch: "Why now"}},
	})

	cfg := config.DefaultConfig()
	cfg.Pipeline.Domain = "energy"
	cfg.Pipeline.InvocationTimeout = time.Second

	handlers := NewHandlers(store, mon, mock, cfg, nil)
	srv := httptest.NewServer(NewRouter(handlers))
	t.Cleanup(srv.Close)
	return srv, store, mon
}

func getJSON(t *testing.T, url string, wantStatus int, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected %d, got %d", url, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decode failed: %v", url, err)
		}
	}
}

/* TestHealthEndpoint reports ok without a database check configured */
func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)

	var health HealthResponse
	getJSON(t, srv.URL+"/health", http.StatusOK, &health)
	if health.Status != "ok" {
		t.Errorf("Expected ok, got %s", health.Status)
	}
}

/* TestGetRunResults returns stored results and 404 for unknown runs */
func TestGetRunResults(t *testing.T) {
	srv, store, _ := testServer(t)
	ctx := context.Background()

	if err := store.StoreRun(ctx, "run-1", "topics", "wf-1", nil); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}
	if _, err := store.StoreResult(ctx, "run-1", "topics", map[string]interface{}{"title": "t"}); err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}

	var found []results.Result
	getJSON(t, srv.URL+"/api/v1/runs/run-1/results", http.StatusOK, &found)
	if len(found) != 1 {
		t.Errorf("Expected 1 result, got %d", len(found))
	}

	getJSON(t, srv.URL+"/api/v1/runs/ghost/results", http.StatusNotFound, nil)

	/* Crew type filter excludes everything */
	var filtered []results.Result
	getJSON(t, srv.URL+"/api/v1/runs/run-1/results?crew_type=content", http.StatusOK, &filtered)
	if len(filtered) != 0 {
		t.Errorf("Expected no content results, got %d", len(filtered))
	}
}

/* TestGetRelatedResults traverses provenance one hop */
func TestGetRelatedResults(t *testing.T) {
	srv, store, _ := testServer(t)
	ctx := context.Background()

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
	if err := store.StoreRelationship(ctx, contentID, topicID, results.RelationDerivedFrom); err != nil {
		t.Fatalf("StoreRelationship failed: %v", err)
	}

	var related []results.Result
	getJSON(t, srv.URL+"/api/v1/results/"+contentID+"/related?relation_type=derived_from", http.StatusOK, &related)
	if len(related) != 1 || related[0].ResultID != topicID {
		t.Errorf("Expected the topic result, got %v", related)
	}
}

/* TestGetCrewStats validates the crew type and returns aggregates */
func TestGetCrewStats(t *testing.T) {
	srv, _, mon := testServer(t)
	ctx := context.Background()

	mon.StartMonitoring(ctx, "run-1", "topics", 1)
	if err := mon.LogTaskCompletion(ctx, "run-1", "t0", true, 100, 0.01); err != nil {
		t.Fatalf("LogTaskCompletion failed: %v", err)
	}

	var stats monitor.CrewStats
	getJSON(t, srv.URL+"/api/v1/stats/topics?days=7", http.StatusOK, &stats)
	if stats.NumRuns != 1 {
		t.Errorf("Expected 1 run, got %d", stats.NumRuns)
	}

	getJSON(t, srv.URL+"/api/v1/stats/bogus", http.StatusBadRequest, nil)
}

/* TestRunPipelineEndpoint accepts a run and completes it in the background */
func TestRunPipelineEndpoint(t *testing.T) {
	srv, store, _ := testServer(t)

	body := strings.NewReader(`{"domain": "fintech", "fail_fast": false}`)
	resp, err := http.Post(srv.URL+"/api/v1/pipeline", "application/json", body)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	var ack PipelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ack.WorkflowID == "" {
		t.Fatal("Expected a workflow id")
	}

	/* Poll the store until the background run lands all three stages */
	deadline := time.Now().Add(5 * time.Second)
	for {
		export, err := store.ExportWorkflowResults(context.Background(), ack.WorkflowID)
		if err == nil && len(export.Runs) == 3 {
			done := true
			for _, run := range export.Runs {
				if run.Run.Status != results.RunStatusCompleted {
					done = false
				}
			}
			if done {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("Pipeline run did not complete in time")
		}
		time.Sleep(20 * time.Millisecond)
	}

	/* The export is served over the API too */
	var export results.WorkflowExport
	getJSON(t, srv.URL+"/api/v1/workflows/"+ack.WorkflowID+"/export", http.StatusOK, &export)
	if len(export.Runs) != 3 {
		t.Errorf("Expected 3 runs in export, got %d", len(export.Runs))
	}
}

/* TestRunPipelineRejectsBadTopology fails fast on configuration errors */
func TestRunPipelineRejectsBadTopology(t *testing.T) {
	srv, _, _ := testServer(t)

	body := strings.NewReader(`{"topology": "pitch,topics,content"}`)
	resp, err := http.Post(srv.URL+"/api/v1/pipeline", "application/json", body)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}
}

/* TestRequestIDPropagation echoes the inbound request id */
func TestRequestIDPropagation(t *testing.T) {
	srv, _, _ := testServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("X-Request-ID", "req-abc")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-abc" {
		t.Errorf("Expected request id echoed, got %q", got)
	}
}
