/*-------------------------------------------------------------------------
 *
 * manager_test.go
 *    Tests for dependency-ordered task execution
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/workflow/manager_test.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

/* TestRunWorkflowRespectsDependencies runs a diamond graph and checks every
 * task observed its dependencies' outputs */
func TestRunWorkflowRespectsDependencies(t *testing.T) {
	var mu sync.Mutex
	finished := make(map[string]time.Time)

	mgr := NewManager(func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error) {
		for _, dep := range task.Dependencies {
			if _, ok := outputs[dep]; !ok {
				return nil, fmt.Errorf("missing dependency output: %s", dep)
			}
		}
		mu.Lock()
		finished[task.ID] = time.Now()
		mu.Unlock()
		return task.ID + "-output", nil
	}, 4)

	if err := mgr.AddTask("a", "stage", nil); err != nil {
		t.Fatalf("AddTask(a) failed: %v", err)
	}
	if err := mgr.AddTask("b", "stage", nil, "a"); err != nil {
		t.Fatalf("AddTask(b) failed: %v", err)
	}
	if err := mgr.AddTask("c", "stage", nil, "a"); err != nil {
		t.Fatalf("AddTask(c) failed: %v", err)
	}
	if err := mgr.AddTask("d", "stage", nil, "b", "c"); err != nil {
		t.Fatalf("AddTask(d) failed: %v", err)
	}

	results, err := mgr.RunWorkflow(context.Background())
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	for id, r := range results {
		if r.Status != StatusDone {
			t.Errorf("Task %s: expected done, got %s (err=%v)", id, r.Status, r.Err)
		}
		if r.Output != id+"-output" {
			t.Errorf("Task %s: unexpected output %v", id, r.Output)
		}
	}
	if !finished["a"].Before(finished["d"]) {
		t.Error("Expected a to finish before d")
	}
}

/* TestAddTaskDuplicate rejects a second registration of the same id */
func TestAddTaskDuplicate(t *testing.T) {
	mgr := NewManager(func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error) {
		return nil, nil
	}, 1)

	if err := mgr.AddTask("a", "stage", nil); err != nil {
		t.Fatalf("AddTask(a) failed: %v", err)
	}
	err := mgr.AddTask("a", "stage", nil)
	var dup *DuplicateTaskError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateTaskError, got %v", err)
	}
	if dup.TaskID != "a" {
		t.Errorf("Expected task id a, got %s", dup.TaskID)
	}
}

/* TestRunWorkflowUnknownDependency fails pre-flight before any execution */
func TestRunWorkflowUnknownDependency(t *testing.T) {
	var executed int32
	mgr := NewManager(func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error) {
		atomic.AddInt32(&executed, 1)
		return nil, nil
	}, 1)

	if err := mgr.AddTask("a", "stage", nil, "ghost"); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	_, err := mgr.RunWorkflow(context.Background())
	var unknown *UnknownDependencyError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownDependencyError, got %v", err)
	}
	if unknown.Dependency != "ghost" {
		t.Errorf("Expected dependency ghost, got %s", unknown.Dependency)
	}
	if atomic.LoadInt32(&executed) != 0 {
		t.Error("Expected no task execution after pre-flight failure")
	}
}

/* TestRunWorkflowCycle fails pre-flight on a dependency cycle */
func TestRunWorkflowCycle(t *testing.T) {
	var executed int32
	mgr := NewManager(func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error) {
		atomic.AddInt32(&executed, 1)
		return nil, nil
	}, 1)

	if err := mgr.AddTask("a", "stage", nil, "b"); err != nil {
		t.Fatalf("AddTask(a) failed: %v", err)
	}
	if err := mgr.AddTask("b", "stage", nil, "a"); err != nil {
		t.Fatalf("AddTask(b) failed: %v", err)
	}

	_, err := mgr.RunWorkflow(context.Background())
	var cyclic *CyclicDependencyError
	if !errors.As(err, &cyclic) {
		t.Fatalf("Expected CyclicDependencyError, got %v", err)
	}
	if len(cyclic.Remaining) != 2 {
		t.Errorf("Expected 2 tasks in cycle, got %v", cyclic.Remaining)
	}
	if atomic.LoadInt32(&executed) != 0 {
		t.Error("Expected no task execution after pre-flight failure")
	}
}

/* TestRunWorkflowFailurePropagation fails transitive dependents without
 * aborting independent branches */
func TestRunWorkflowFailurePropagation(t *testing.T) {
	boom := errors.New("boom")
	mgr := NewManager(func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error) {
		if task.ID == "a" {
			return nil, boom
		}
		return task.ID, nil
	}, 2)

	if err := mgr.AddTask("a", "stage", nil); err != nil {
		t.Fatalf("AddTask(a) failed: %v", err)
	}
	if err := mgr.AddTask("b", "stage", nil, "a"); err != nil {
		t.Fatalf("AddTask(b) failed: %v", err)
	}
	if err := mgr.AddTask("c", "stage", nil, "b"); err != nil {
		t.Fatalf("AddTask(c) failed: %v", err)
	}
	if err := mgr.AddTask("d", "stage", nil); err != nil {
		t.Fatalf("AddTask(d) failed: %v", err)
	}

	results, err := mgr.RunWorkflow(context.Background())
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}

	if results["a"].Status != StatusFailed || !errors.Is(results["a"].Err, boom) {
		t.Errorf("Task a: expected failed with cause, got %s %v", results["a"].Status, results["a"].Err)
	}
	for _, id := range []string{"b", "c"} {
		if results[id].Status != StatusFailed {
			t.Errorf("Task %s: expected failed, got %s", id, results[id].Status)
		}
		var depErr *DependencyFailedError
		if !errors.As(results[id].Err, &depErr) {
			t.Errorf("Task %s: expected DependencyFailedError, got %v", id, results[id].Err)
		}
	}
	if results["d"].Status != StatusDone {
		t.Errorf("Task d: expected done, got %s", results["d"].Status)
	}
}

/* TestRunWorkflowConcurrencyBound never exceeds the configured parallelism */
func TestRunWorkflowConcurrencyBound(t *testing.T) {
	var current, peak int32
	mgr := NewManager(func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil, nil
	}, 2)

	for i := 0; i < 6; i++ {
		if err := mgr.AddTask(fmt.Sprintf("t%d", i), "stage", nil); err != nil {
			t.Fatalf("AddTask failed: %v", err)
		}
	}

	if _, err := mgr.RunWorkflow(context.Background()); err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("Expected at most 2 concurrent tasks, observed %d", p)
	}
}

/* TestWorkflowStatusSnapshot reports terminal statuses after the run */
func TestWorkflowStatusSnapshot(t *testing.T) {
	mgr := NewManager(func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error) {
		if task.ID == "bad" {
			return nil, errors.New("induced")
		}
		return nil, nil
	}, 2)

	if err := mgr.AddTask("good", "stage", nil); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if err := mgr.AddTask("bad", "stage", nil); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if got := mgr.TaskStatus("good"); got != StatusPending {
		t.Errorf("Expected pending before run, got %s", got)
	}

	if _, err := mgr.RunWorkflow(context.Background()); err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}

	snapshot := mgr.WorkflowStatus()
	if snapshot["good"] != StatusDone {
		t.Errorf("Expected good done, got %s", snapshot["good"])
	}
	if snapshot["bad"] != StatusFailed {
		t.Errorf("Expected bad failed, got %s", snapshot["bad"])
	}
	if got := mgr.TaskStatus("missing"); got != "" {
		t.Errorf("Expected empty status for unknown task, got %s", got)
	}
}

/* TestRunWorkflowSecondRunRejected rejects re-running a started workflow */
func TestRunWorkflowSecondRunRejected(t *testing.T) {
	mgr := NewManager(func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error) {
		return nil, nil
	}, 1)
	if err := mgr.AddTask("a", "stage", nil); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if _, err := mgr.RunWorkflow(context.Background()); err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if _, err := mgr.RunWorkflow(context.Background()); err == nil {
		t.Error("Expected error on second RunWorkflow call")
	}
}

/* TestRunWorkflowReportsStalledTasks surfaces tasks the scheduler can never
 * launch instead of exiting cleanly without running them */
func TestRunWorkflowReportsStalledTasks(t *testing.T) {
	executed := 0
	mgr := NewManager(func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error) {
		executed++
		return nil, nil
	}, 1)
	if err := mgr.AddTask("a", "stage", nil); err != nil {
		t.Fatalf("AddTask(a) failed: %v", err)
	}
	if err := mgr.AddTask("b", "stage", nil, "a"); err != nil {
		t.Fatalf("AddTask(b) failed: %v", err)
	}

	/* Park the dependency outside the terminal states so its dependent can
	 * never become ready */
	mgr.tasks["a"].Status = StatusRunning

	_, err := mgr.RunWorkflow(context.Background())
	if err == nil {
		t.Fatal("Expected error for a stalled workflow")
	}
	if !strings.Contains(err.Error(), "b") {
		t.Errorf("Expected the stalled task id in the error, got %v", err)
	}
	if executed != 0 {
		t.Errorf("Expected no task execution, got %d", executed)
	}
}
