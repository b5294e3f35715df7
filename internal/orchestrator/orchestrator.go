/*-------------------------------------------------------------------------
 *
 * orchestrator.go
 *    Pipeline flow controller
 *
 * Drives the three-stage content pipeline in configured topology order.
 * Each stage invokes one crew (the content stage fans out one invocation
 * per topic through the workflow manager), appends validated entities to
 * FlowState, and persists runs, results, and provenance relationships to
 * the results store. Stage boundaries advance a phase machine; no stage
 * re-enters, and a run is not resumable across process restarts.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/orchestrator/orchestrator.go
 *
 *-------------------------------------------------------------------------
 */

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/verticallabs/pipeline/internal/config"
	"github.com/verticallabs/pipeline/internal/crew"
	"github.com/verticallabs/pipeline/internal/metrics"
	"github.com/verticallabs/pipeline/internal/monitor"
	"github.com/verticallabs/pipeline/internal/results"
	"github.com/verticallabs/pipeline/internal/tools"
	"github.com/verticallabs/pipeline/internal/workflow"
)

/* Pipeline phases; stage phases are derived from the stage name */
const (
	PhaseCreated      = "created"
	PhasePipelineDone = "pipeline_done"
	PhaseFailed       = "failed"
)

/* RunningPhase returns the running phase name for a stage */
func RunningPhase(stage string) string { return stage + "_running" }

/* DonePhase returns the done phase name for a stage */
func DonePhase(stage string) string { return stage + "_done" }

/* Orchestrator drives one pipeline run. Not safe for concurrent stage
 * invocations; create one orchestrator per run. */
type Orchestrator struct {
	runner    crew.Runner
	store     results.Store
	monitor   *monitor.PerformanceMonitor
	cfg       config.PipelineConfig
	publisher crew.PublisherInfo
	scraper   *tools.Scraper

	stages     []string
	workflowID string

	mu    sync.Mutex
	phase string
	state *FlowState

	/* provenance bookkeeping: topic result ids in discovery order, index
	 * aligned with the state's topics, and the result ids of the most
	 * recently completed stage */
	topicResultIDs []string
	lastStageIDs   []string
}

/* NewOrchestrator creates an orchestrator for one pipeline run */
func NewOrchestrator(runner crew.Runner, store results.Store, mon *monitor.PerformanceMonitor,
	cfg config.PipelineConfig, publisher crew.PublisherInfo) (*Orchestrator, error) {

	stages, err := cfg.Stages()
	if err != nil {
		return nil, err
	}
	if runner == nil || store == nil || mon == nil {
		return nil, fmt.Errorf("orchestrator setup failed: reason=missing collaborator")
	}

	return &Orchestrator{
		runner:     runner,
		store:      store,
		monitor:    mon,
		cfg:        cfg,
		publisher:  publisher,
		stages:     stages,
		workflowID: uuid.New().String(),
		phase:      PhaseCreated,
		state:      NewFlowState(cfg.Domain, cfg.TargetAudience, cfg.ContentGoals),
	}, nil
}

/* SetScraper enables best-effort publisher site enrichment for the topics stage */
func (o *Orchestrator) SetScraper(s *tools.Scraper) {
	o.scraper = s
}

/* WorkflowID returns the identifier grouping this run's persisted records */
func (o *Orchestrator) WorkflowID() string { return o.workflowID }

/* Phase returns the current pipeline phase */
func (o *Orchestrator) Phase() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

/* State returns the run's FlowState */
func (o *Orchestrator) State() *FlowState { return o.state }

/* enterStage transitions to a stage's running phase. A stage may only start
 * from its predecessor's done phase (or created, for the first stage). */
func (o *Orchestrator) enterStage(stage string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	expected := PhaseCreated
	for i, s := range o.stages {
		if s == stage && i > 0 {
			expected = DonePhase(o.stages[i-1])
		}
	}
	if o.phase != expected {
		return &PhaseError{Current: o.phase, Target: RunningPhase(stage)}
	}
	o.phase = RunningPhase(stage)
	return nil
}

/* completeStage transitions a running stage to done */
func (o *Orchestrator) completeStage(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == RunningPhase(stage) {
		o.phase = DonePhase(stage)
	}
}

/* failRun transitions to the terminal failed phase */
func (o *Orchestrator) failRun() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phase = PhaseFailed
}

/* RunFullPipeline runs every stage in topology order and returns the final
 * FlowState. On failure the state holds whatever earlier stages produced;
 * persisted results are never rolled back. */
func (o *Orchestrator) RunFullPipeline(ctx context.Context) (*FlowState, error) {
	ctx = metrics.WithWorkflowLogContext(ctx, o.workflowID)
	metrics.InfoWithContext(ctx, "Pipeline run starting", map[string]interface{}{
		"topology":  o.cfg.Topology,
		"fail_fast": o.cfg.FailFast,
	})

	started := time.Now()
	for _, stage := range o.stages {
		stageStart := time.Now()
		var err error
		switch stage {
		case crew.TypeTopics:
			_, err = o.RunTopicsGeneration(ctx)
		case crew.TypePitch:
			_, err = o.RunPitchGeneration(ctx)
		case crew.TypeContent:
			_, err = o.RunContentGeneration(ctx)
		}
		metrics.RecordPipelineStage(stage, time.Since(stageStart))
		if err != nil {
			metrics.RecordPipelineRun("failed")
			metrics.ErrorWithContext(ctx, "Pipeline run failed", err, map[string]interface{}{
				"stage":       stage,
				"duration_ms": time.Since(started).Milliseconds(),
			})
			return o.state, err
		}
	}

	o.mu.Lock()
	o.phase = PhasePipelineDone
	o.mu.Unlock()

	metrics.RecordPipelineRun("completed")
	metrics.InfoWithContext(ctx, "Pipeline run completed", map[string]interface{}{
		"topics":        len(o.state.Topics()),
		"content_items": len(o.state.ContentItems()),
		"pitches":       len(o.state.Pitches()),
		"duration_ms":   time.Since(started).Milliseconds(),
	})
	return o.state, nil
}

/* RunTopicsGeneration invokes the topics crew once and persists one result
 * per discovered topic */
func (o *Orchestrator) RunTopicsGeneration(ctx context.Context) ([]crew.Topic, error) {
	if err := o.enterStage(crew.TypeTopics); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	rctx := metrics.WithRunLogContext(metrics.WithWorkflowLogContext(ctx, o.workflowID), runID, crew.TypeTopics)

	if err := o.store.StoreRun(ctx, runID, crew.TypeTopics, o.workflowID, map[string]interface{}{
		"domain":    o.state.Domain,
		"publisher": o.publisher.Name,
	}); err != nil {
		o.failRun()
		return nil, &StageError{Stage: crew.TypeTopics, Err: err}
	}
	o.monitor.StartMonitoring(rctx, runID, crew.TypeTopics, 1)

	out, err := o.invoke(ctx, crew.TypeTopics, o.topicsPayload(ctx))
	if err != nil {
		o.recordStageFailure(rctx, runID, crew.TypeTopics, err)
		return nil, &StageError{Stage: crew.TypeTopics, Err: err}
	}

	ids := make([]string, 0, len(out.Topics))
	for i := range out.Topics {
		content, merr := crew.ToMap(&out.Topics[i])
		if merr != nil {
			o.recordStageFailure(rctx, runID, crew.TypeTopics, merr)
			return nil, &StageError{Stage: crew.TypeTopics, Err: merr}
		}
		id, serr := o.store.StoreResult(ctx, runID, crew.TypeTopics, content)
		if serr != nil {
			o.recordStageFailure(rctx, runID, crew.TypeTopics, serr)
			return nil, &StageError{Stage: crew.TypeTopics, Err: serr}
		}
		ids = append(ids, id)
	}
	o.topicResultIDs = ids

	if err := o.monitor.LogTaskCompletion(rctx, runID, crew.TypeTopics, true, out.TokensUsed, out.Cost); err != nil {
		metrics.WarnWithContext(rctx, "Task completion logging failed", map[string]interface{}{"error": err.Error()})
	}
	if err := o.store.UpdateRunStatus(ctx, runID, results.RunStatusCompleted); err != nil {
		metrics.WarnWithContext(rctx, "Run status update failed", map[string]interface{}{"error": err.Error()})
	}

	o.state.AppendTopics(out.Topics...)
	o.lastStageIDs = ids
	o.completeStage(crew.TypeTopics)

	metrics.InfoWithContext(rctx, "Topics stage completed", map[string]interface{}{
		"topics": len(out.Topics),
	})
	return out.Topics, nil
}

/* RunPitchGeneration invokes the pitch crew once over the accumulated
 * prior-stage outputs and links each pitch to the results it consumed */
func (o *Orchestrator) RunPitchGeneration(ctx context.Context) ([]crew.Pitch, error) {
	if err := o.enterStage(crew.TypePitch); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	rctx := metrics.WithRunLogContext(metrics.WithWorkflowLogContext(ctx, o.workflowID), runID, crew.TypePitch)

	if err := o.store.StoreRun(ctx, runID, crew.TypePitch, o.workflowID, map[string]interface{}{
		"domain": o.state.Domain,
	}); err != nil {
		o.failRun()
		return nil, &StageError{Stage: crew.TypePitch, Err: err}
	}
	o.monitor.StartMonitoring(rctx, runID, crew.TypePitch, 1)

	out, err := o.invoke(ctx, crew.TypePitch, o.pitchPayload())
	if err != nil {
		o.recordStageFailure(rctx, runID, crew.TypePitch, err)
		return nil, &StageError{Stage: crew.TypePitch, Err: err}
	}

	sources := append([]string(nil), o.lastStageIDs...)
	ids := make([]string, 0, len(out.Pitches))
	for i := range out.Pitches {
		content, merr := crew.ToMap(&out.Pitches[i])
		if merr != nil {
			o.recordStageFailure(rctx, runID, crew.TypePitch, merr)
			return nil, &StageError{Stage: crew.TypePitch, Err: merr}
		}
		id, serr := o.store.StoreResult(ctx, runID, crew.TypePitch, content)
		if serr != nil {
			o.recordStageFailure(rctx, runID, crew.TypePitch, serr)
			return nil, &StageError{Stage: crew.TypePitch, Err: serr}
		}
		for _, src := range sources {
			if rerr := o.store.StoreRelationship(ctx, id, src, results.RelationDerivedFrom); rerr != nil {
				metrics.WarnWithContext(rctx, "Relationship write failed", map[string]interface{}{"error": rerr.Error()})
			}
		}
		ids = append(ids, id)
	}

	if err := o.monitor.LogTaskCompletion(rctx, runID, crew.TypePitch, true, out.TokensUsed, out.Cost); err != nil {
		metrics.WarnWithContext(rctx, "Task completion logging failed", map[string]interface{}{"error": err.Error()})
	}
	if err := o.store.UpdateRunStatus(ctx, runID, results.RunStatusCompleted); err != nil {
		metrics.WarnWithContext(rctx, "Run status update failed", map[string]interface{}{"error": err.Error()})
	}

	o.state.AppendPitches(out.Pitches...)
	o.lastStageIDs = ids
	o.completeStage(crew.TypePitch)

	metrics.InfoWithContext(rctx, "Pitch stage completed", map[string]interface{}{
		"pitches": len(out.Pitches),
	})
	return out.Pitches, nil
}

/* RunContentGeneration fans out one content crew invocation per accumulated
 * topic through the workflow manager. The fan-in barrier waits for every
 * sibling; a single topic's failure is recorded and excluded unless the
 * fail-fast policy is set. */
func (o *Orchestrator) RunContentGeneration(ctx context.Context) ([]crew.ContentItem, error) {
	if err := o.enterStage(crew.TypeContent); err != nil {
		return nil, err
	}

	topics := o.state.Topics()
	runID := uuid.New().String()
	rctx := metrics.WithRunLogContext(metrics.WithWorkflowLogContext(ctx, o.workflowID), runID, crew.TypeContent)

	if err := o.store.StoreRun(ctx, runID, crew.TypeContent, o.workflowID, map[string]interface{}{
		"domain":    o.state.Domain,
		"num_tasks": len(topics),
	}); err != nil {
		o.failRun()
		return nil, &StageError{Stage: crew.TypeContent, Err: err}
	}
	o.monitor.StartMonitoring(rctx, runID, crew.TypeContent, len(topics))

	if len(topics) == 0 {
		err := fmt.Errorf("content stage has no topics to fan out")
		o.recordStageFailure(rctx, runID, crew.TypeContent, err)
		return nil, &StageError{Stage: crew.TypeContent, Err: err}
	}

	fanCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.FailFast {
		fanCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	var firstMu sync.Mutex
	var firstErr error
	var firstUnit string

	mgr := workflow.NewManager(func(taskCtx context.Context, task workflow.Task, _ map[string]interface{}) (interface{}, error) {
		out, err := o.invoke(taskCtx, crew.TypeContent, task.Inputs)
		if err != nil {
			if o.cfg.FailFast {
				firstMu.Lock()
				if firstErr == nil {
					firstErr = err
					firstUnit, _ = task.Inputs["topic"].(string)
					cancel()
				}
				firstMu.Unlock()
			}
			return nil, err
		}
		return out, nil
	}, o.cfg.MaxConcurrency)

	taskTopics := make(map[string]crew.Topic, len(topics))
	for i, topic := range topics {
		taskID := fmt.Sprintf("content-%d", i)
		taskTopics[taskID] = topic
		if err := mgr.AddTask(taskID, crew.TypeContent, o.contentPayload(topic)); err != nil {
			o.recordStageFailure(rctx, runID, crew.TypeContent, err)
			return nil, &StageError{Stage: crew.TypeContent, Err: err}
		}
	}

	taskResults, err := mgr.RunWorkflow(fanCtx)
	if err != nil {
		o.recordStageFailure(rctx, runID, crew.TypeContent, err)
		return nil, &StageError{Stage: crew.TypeContent, Err: err}
	}

	var items []crew.ContentItem
	var ids []string
	failed := 0

	/* fan-in: iterate tasks in registration order for stable persistence */
	for i := range topics {
		taskID := fmt.Sprintf("content-%d", i)
		topic := taskTopics[taskID]
		tr := taskResults[taskID]

		if tr.Err != nil {
			failed++
			if lerr := o.monitor.LogTaskCompletion(rctx, runID, taskID, false, 0, 0); lerr != nil {
				metrics.WarnWithContext(rctx, "Task completion logging failed", map[string]interface{}{"error": lerr.Error()})
			}
			if lerr := o.monitor.LogError(rctx, runID, tr.Err.Error()); lerr != nil {
				metrics.WarnWithContext(rctx, "Error logging failed", map[string]interface{}{"error": lerr.Error()})
			}
			continue
		}

		out, ok := tr.Output.(*crew.Output)
		if !ok {
			failed++
			continue
		}
		if lerr := o.monitor.LogTaskCompletion(rctx, runID, taskID, true, out.TokensUsed, out.Cost); lerr != nil {
			metrics.WarnWithContext(rctx, "Task completion logging failed", map[string]interface{}{"error": lerr.Error()})
		}

		for j := range out.ContentItems {
			content, merr := crew.ToMap(&out.ContentItems[j])
			if merr != nil {
				o.recordStageFailure(rctx, runID, crew.TypeContent, merr)
				return nil, &StageError{Stage: crew.TypeContent, Unit: topic.Title, Err: merr}
			}
			id, serr := o.store.StoreResult(ctx, runID, crew.TypeContent, content)
			if serr != nil {
				o.recordStageFailure(rctx, runID, crew.TypeContent, serr)
				return nil, &StageError{Stage: crew.TypeContent, Unit: topic.Title, Err: serr}
			}
			/* Topics may share a title; lineage is by position, never by name */
			if i < len(o.topicResultIDs) {
				if rerr := o.store.StoreRelationship(ctx, id, o.topicResultIDs[i], results.RelationDerivedFrom); rerr != nil {
					metrics.WarnWithContext(rctx, "Relationship write failed", map[string]interface{}{"error": rerr.Error()})
				}
			}
			ids = append(ids, id)
		}
		items = append(items, out.ContentItems...)
	}

	if o.cfg.FailFast && firstErr != nil {
		o.recordStageFailure(rctx, runID, crew.TypeContent, firstErr)
		return nil, &StageError{Stage: crew.TypeContent, Unit: firstUnit, Err: firstErr}
	}
	if len(items) == 0 {
		err := fmt.Errorf("content stage produced nothing: topics=%d, failed=%d", len(topics), failed)
		o.recordStageFailure(rctx, runID, crew.TypeContent, err)
		return nil, &StageError{Stage: crew.TypeContent, Err: err}
	}

	if err := o.store.UpdateRunStatus(ctx, runID, results.RunStatusCompleted); err != nil {
		metrics.WarnWithContext(rctx, "Run status update failed", map[string]interface{}{"error": err.Error()})
	}

	o.state.AppendContentItems(items...)
	o.lastStageIDs = ids
	o.completeStage(crew.TypeContent)

	metrics.InfoWithContext(rctx, "Content stage completed", map[string]interface{}{
		"content_items": len(items),
		"failed_topics": failed,
	})
	return items, nil
}

/* invoke runs one crew invocation under the configured per-invocation
 * timeout; a fired timeout surfaces as a failure, never retried here */
func (o *Orchestrator) invoke(ctx context.Context, crewType string, payload map[string]interface{}) (*crew.Output, error) {
	if o.cfg.InvocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.InvocationTimeout)
		defer cancel()
	}
	out, err := o.runner.Invoke(ctx, crew.Input{CrewType: crewType, Payload: payload})
	if err != nil {
		return nil, err
	}
	/* Crew output is duck-typed at the wire; re-validate at this boundary
	 * instead of trusting the collaborator */
	if verr := out.Validate(crewType); verr != nil {
		return nil, crew.NewExecutionError(crewType, verr)
	}
	return out, nil
}

/* recordStageFailure marks the run failed in the monitor and store and
 * moves the pipeline to the failed phase */
func (o *Orchestrator) recordStageFailure(ctx context.Context, runID, stage string, cause error) {
	if err := o.monitor.LogError(ctx, runID, cause.Error()); err != nil {
		metrics.WarnWithContext(ctx, "Error logging failed", map[string]interface{}{"error": err.Error()})
	}
	if err := o.store.UpdateRunStatus(ctx, runID, results.RunStatusFailed); err != nil {
		metrics.WarnWithContext(ctx, "Run status update failed", map[string]interface{}{"error": err.Error()})
	}
	o.failRun()
	metrics.ErrorWithContext(ctx, "Pipeline stage failed", cause, map[string]interface{}{
		"stage": stage,
	})
}

/* topicsPayload builds the topics crew input from the publisher profile and
 * brand context, enriched with a best-effort site scrape when configured */
func (o *Orchestrator) topicsPayload(ctx context.Context) map[string]interface{} {
	payload := map[string]interface{}{
		"publisher":       o.publisher,
		"domain":          o.state.Domain,
		"target_audience": o.state.TargetAudience,
		"content_goals":   o.state.ContentGoals,
	}
	if o.scraper != nil && o.publisher.URL != "" {
		if profile, err := o.scraper.ScrapePublisher(ctx, o.publisher.URL); err == nil {
			payload["site_profile"] = profile
		} else {
			metrics.WarnWithContext(ctx, "Publisher scrape skipped", map[string]interface{}{
				"url":   o.publisher.URL,
				"error": err.Error(),
			})
		}
	}
	return payload
}

/* pitchPayload builds the pitch crew input from everything produced so far */
func (o *Orchestrator) pitchPayload() map[string]interface{} {
	return map[string]interface{}{
		"topics":          o.state.Topics(),
		"content_items":   o.state.ContentItems(),
		"domain":          o.state.Domain,
		"target_audience": o.state.TargetAudience,
		"content_goals":   o.state.ContentGoals,
	}
}

/* contentPayload builds the per-topic content crew input */
func (o *Orchestrator) contentPayload(topic crew.Topic) map[string]interface{} {
	return map[string]interface{}{
		"topic":           topic.Title,
		"description":     topic.Description,
		"keywords":        topic.Keywords,
		"pitches":         o.state.Pitches(),
		"domain":          o.state.Domain,
		"target_audience": o.state.TargetAudience,
		"content_goals":   o.state.ContentGoals,
	}
}
