/*-------------------------------------------------------------------------
 *
 * manager.go
 *    Dependency-ordered task execution
 *
 * The manager holds a set of named tasks with declared dependencies and
 * runs them as a DAG: pre-flight validates the graph, then tasks execute
 * in waves with bounded concurrency. A failed task fails its transitive
 * dependents without retrying; independent branches keep running.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/workflow/manager.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/verticallabs/pipeline/internal/metrics"
)

/* Task statuses */
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

/* Task is one unit of work in a workflow */
type Task struct {
	ID           string
	Type         string
	Inputs       map[string]interface{}
	Dependencies []string
	Status       string
}

/* TaskResult is the terminal outcome of one task */
type TaskResult struct {
	TaskID   string
	Status   string
	Output   interface{}
	Err      error
	Duration time.Duration
}

/* TaskFunc executes one task. The outputs map carries the results of the
 * task's dependencies keyed by task id. */
type TaskFunc func(ctx context.Context, task Task, outputs map[string]interface{}) (interface{}, error)

/* Manager owns a workflow's task set and executes it */
type Manager struct {
	mu             sync.Mutex
	tasks          map[string]*Task
	order          []string
	results        map[string]*TaskResult
	run            TaskFunc
	maxConcurrency int
	started        bool
}

/* NewManager creates a manager executing tasks with fn, at most
 * maxConcurrency tasks in flight at once */
func NewManager(fn TaskFunc, maxConcurrency int) *Manager {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Manager{
		tasks:          make(map[string]*Task),
		results:        make(map[string]*TaskResult),
		run:            fn,
		maxConcurrency: maxConcurrency,
	}
}

/* AddTask registers a task. Dependencies may reference tasks registered
 * later; they are validated at RunWorkflow pre-flight. */
func (m *Manager) AddTask(id, taskType string, inputs map[string]interface{}, dependencies ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[id]; exists {
		return &DuplicateTaskError{TaskID: id}
	}

	m.tasks[id] = &Task{
		ID:           id,
		Type:         taskType,
		Inputs:       inputs,
		Dependencies: append([]string(nil), dependencies...),
		Status:       StatusPending,
	}
	m.order = append(m.order, id)
	return nil
}

/* TaskStatus returns the current status of a task, or "" if unknown */
func (m *Manager) TaskStatus(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		return t.Status
	}
	return ""
}

/* WorkflowStatus returns a snapshot of every task's status keyed by id */
func (m *Manager) WorkflowStatus() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]string, len(m.tasks))
	for id, t := range m.tasks {
		snapshot[id] = t.Status
	}
	return snapshot
}

/* RunWorkflow validates the graph and executes every task. It returns the
 * terminal result of each task; a structural error aborts before any task
 * launches. */
func (m *Manager) RunWorkflow(ctx context.Context) (map[string]TaskResult, error) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil, fmt.Errorf("workflow execution failed: reason=already started")
	}
	m.started = true
	taskCount := len(m.tasks)
	m.mu.Unlock()

	if err := m.validateGraph(); err != nil {
		return nil, err
	}

	metrics.InfoWithContext(ctx, "workflow execution starting", map[string]interface{}{
		"task_count":      taskCount,
		"max_concurrency": m.maxConcurrency,
	})

	sem := make(chan struct{}, m.maxConcurrency)

	for {
		ready, pending := m.nextWave()
		if len(ready) == 0 {
			if len(pending) > 0 {
				/* Unreachable on a validated graph; surfaced rather than
				 * silently dropped so a scheduling regression cannot pass
				 * as a clean exit. */
				sort.Strings(pending)
				return nil, fmt.Errorf("workflow execution stalled: tasks=[%s]", strings.Join(pending, ", "))
			}
			break
		}

		var wg sync.WaitGroup
		for _, id := range ready {
			wg.Add(1)
			go func(taskID string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				m.execute(ctx, taskID)
			}(id)
		}
		wg.Wait()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]TaskResult, len(m.results))
	for id, r := range m.results {
		out[id] = *r
	}
	return out, nil
}

/* validateGraph checks for unknown dependencies and cycles using Kahn's
 * algorithm */
func (m *Manager) validateGraph() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inDegree := make(map[string]int, len(m.tasks))
	dependents := make(map[string][]string, len(m.tasks))

	for id, t := range m.tasks {
		inDegree[id] = len(t.Dependencies)
		for _, dep := range t.Dependencies {
			if _, ok := m.tasks[dep]; !ok {
				return &UnknownDependencyError{TaskID: id, Dependency: dep}
			}
			dependents[dep] = append(dependents[dep], id)
		}
	}

	queue := make([]string, 0, len(m.tasks))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(m.tasks) {
		remaining := make([]string, 0, len(m.tasks)-visited)
		for id, deg := range inDegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return &CyclicDependencyError{Remaining: remaining}
	}
	return nil
}

/* nextWave resolves dependency failures and returns the ids of tasks ready
 * to launch plus the ids of tasks still pending afterwards. Failure
 * propagation iterates until a fixpoint so transitive dependents settle in
 * one call. */
func (m *Manager) nextWave() (ready, pending []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for changed := true; changed; {
		changed = false
		for _, id := range m.order {
			t := m.tasks[id]
			if t.Status != StatusPending {
				continue
			}
			for _, dep := range t.Dependencies {
				if m.tasks[dep].Status == StatusFailed {
					t.Status = StatusFailed
					m.results[id] = &TaskResult{
						TaskID: id,
						Status: StatusFailed,
						Err:    &DependencyFailedError{TaskID: id, Dependency: dep},
					}
					metrics.RecordWorkflowTaskFinished(t.Type, StatusFailed)
					changed = true
					break
				}
			}
		}
	}

	for _, id := range m.order {
		t := m.tasks[id]
		if t.Status != StatusPending {
			continue
		}
		launchable := true
		for _, dep := range t.Dependencies {
			if m.tasks[dep].Status != StatusDone {
				launchable = false
				break
			}
		}
		if launchable {
			t.Status = StatusRunning
			ready = append(ready, id)
		} else {
			pending = append(pending, id)
		}
	}
	return ready, pending
}

/* execute runs a single task and records its terminal result */
func (m *Manager) execute(ctx context.Context, id string) {
	m.mu.Lock()
	t := m.tasks[id]
	task := *t
	task.Dependencies = append([]string(nil), t.Dependencies...)
	outputs := make(map[string]interface{}, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		if r, ok := m.results[dep]; ok {
			outputs[dep] = r.Output
		}
	}
	m.mu.Unlock()

	taskCtx := metrics.WithLogContext(ctx, "", "", "", "", id)
	metrics.RecordWorkflowTaskStarted()
	metrics.DebugWithContext(taskCtx, "workflow task starting", map[string]interface{}{
		"task_type": task.Type,
	})

	started := time.Now()
	output, err := m.run(taskCtx, task, outputs)
	elapsed := time.Since(started)

	m.mu.Lock()
	defer m.mu.Unlock()

	result := &TaskResult{TaskID: id, Output: output, Err: err, Duration: elapsed}
	if err != nil {
		t.Status = StatusFailed
		result.Status = StatusFailed
		metrics.ErrorWithContext(taskCtx, "workflow task failed", err, map[string]interface{}{
			"task_type":   task.Type,
			"duration_ms": elapsed.Milliseconds(),
		})
	} else {
		t.Status = StatusDone
		result.Status = StatusDone
		metrics.DebugWithContext(taskCtx, "workflow task completed", map[string]interface{}{
			"task_type":   task.Type,
			"duration_ms": elapsed.Milliseconds(),
		})
	}
	m.results[id] = result
	metrics.RecordWorkflowTaskFinished(task.Type, result.Status)
}
