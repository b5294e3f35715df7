/*-------------------------------------------------------------------------
 *
 * monitor.go
 *    Crew performance monitoring
 *
 * Tracks per-run task completion, token usage, and cost, and aggregates
 * historical statistics per crew type over a trailing window.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/monitor/monitor.go
 *
 *-------------------------------------------------------------------------
 */

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/verticallabs/pipeline/internal/metrics"
)

/* ErrUnknownRun is returned when a run was never started */
var ErrUnknownRun = errors.New("unknown monitored run")

/* Metrics is the live snapshot for one monitored run */
type Metrics struct {
	RunID       string     `json:"run_id"`
	CrewType    string     `json:"crew_type"`
	NumTasks    int        `json:"num_tasks"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	TotalTokens int        `json:"total_tokens"`
	TotalCost   float64    `json:"total_cost"`
	Errors      []string   `json:"errors,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

/* Finished reports whether every task reached a terminal state */
func (m *Metrics) Finished() bool {
	return m.EndTime != nil
}

/* SuccessRate returns completed / num_tasks, zero for empty runs */
func (m *Metrics) SuccessRate() float64 {
	if m.NumTasks == 0 {
		return 0
	}
	return float64(m.Completed) / float64(m.NumTasks)
}

/* Duration returns the run duration, zero while the run is live */
func (m *Metrics) Duration() time.Duration {
	if m.EndTime == nil {
		return 0
	}
	return m.EndTime.Sub(m.StartTime)
}

/* CrewStats aggregates finished runs of one crew type */
type CrewStats struct {
	CrewType       string        `json:"crew_type"`
	NumRuns        int           `json:"num_runs"`
	AvgSuccessRate float64       `json:"avg_success_rate"`
	AvgDuration    time.Duration `json:"avg_duration"`
	TotalTokens    int           `json:"total_tokens"`
	TotalCost      float64       `json:"total_cost"`
	ErrorRate      float64       `json:"error_rate"`
}

/* PerformanceMonitor tracks metrics for crew runs. Safe for concurrent use;
 * distinct run ids never contend on each other's counters. */
type PerformanceMonitor struct {
	mu   sync.RWMutex
	runs map[string]*Metrics
}

/* NewPerformanceMonitor creates an empty monitor */
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		runs: make(map[string]*Metrics),
	}
}

/* StartMonitoring begins tracking a crew run */
func (p *PerformanceMonitor) StartMonitoring(ctx context.Context, runID, crewType string, numTasks int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs[runID] = &Metrics{
		RunID:     runID,
		CrewType:  crewType,
		NumTasks:  numTasks,
		StartTime: time.Now(),
	}

	metrics.InfoWithContext(metrics.WithRunLogContext(ctx, runID, crewType), "Started monitoring run", map[string]interface{}{
		"num_tasks": numTasks,
	})
}

/* LogTaskCompletion records one task reaching a terminal state. When every
 * task has completed or failed the run is finished; no explicit stop call
 * exists. */
func (p *PerformanceMonitor) LogTaskCompletion(ctx context.Context, runID, taskID string, success bool, tokens int, cost float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.runs[runID]
	if !ok {
		return fmt.Errorf("task completion rejected: run_id='%s', task_id='%s', error=%w", runID, taskID, ErrUnknownRun)
	}

	if success {
		m.Completed++
	} else {
		m.Failed++
	}
	m.TotalTokens += tokens
	m.TotalCost += cost

	if m.Completed+m.Failed >= m.NumTasks && m.EndTime == nil {
		now := time.Now()
		m.EndTime = &now
	}

	metrics.InfoWithContext(metrics.WithLogContext(ctx, "", "", runID, m.CrewType, taskID), "Task completed", map[string]interface{}{
		"success": success,
		"tokens":  tokens,
		"cost":    cost,
	})
	return nil
}

/* LogError attaches an error message to a run */
func (p *PerformanceMonitor) LogError(ctx context.Context, runID, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.runs[runID]
	if !ok {
		return fmt.Errorf("error logging rejected: run_id='%s', error=%w", runID, ErrUnknownRun)
	}
	m.Errors = append(m.Errors, message)

	metrics.ErrorWithContext(metrics.WithRunLogContext(ctx, runID, m.CrewType), "Run error recorded", nil, map[string]interface{}{
		"message": message,
	})
	return nil
}

/* GetMetrics returns a copy of the current, possibly still live, snapshot */
func (p *PerformanceMonitor) GetMetrics(runID string) (*Metrics, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m, ok := p.runs[runID]
	if !ok {
		return nil, fmt.Errorf("metrics retrieval failed: run_id='%s', error=%w", runID, ErrUnknownRun)
	}

	copied := *m
	copied.Errors = append([]string(nil), m.Errors...)
	return &copied, nil
}

/* GetCrewStats aggregates finished runs of a crew type whose start time
 * falls within the trailing window. Live runs are excluded even when their
 * start time qualifies. */
func (p *PerformanceMonitor) GetCrewStats(crewType string, days int) CrewStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	stats := CrewStats{CrewType: crewType}

	var totalRate float64
	var totalDuration time.Duration
	var runsWithErrors int

	for _, m := range p.runs {
		if m.CrewType != crewType || m.EndTime == nil || m.StartTime.Before(cutoff) {
			continue
		}
		stats.NumRuns++
		stats.TotalTokens += m.TotalTokens
		stats.TotalCost += m.TotalCost
		totalRate += m.SuccessRate()
		totalDuration += m.Duration()
		if len(m.Errors) > 0 || m.Failed > 0 {
			runsWithErrors++
		}
	}

	if stats.NumRuns > 0 {
		stats.AvgSuccessRate = totalRate / float64(stats.NumRuns)
		stats.AvgDuration = totalDuration / time.Duration(stats.NumRuns)
		stats.ErrorRate = float64(runsWithErrors) / float64(stats.NumRuns)
	}
	return stats
}
