/*-------------------------------------------------------------------------
 *
 * handlers.go
 *    API handlers for the content pipeline
 *
 * Provides HTTP handlers for pipeline runs, results, provenance lookups,
 * workflow exports, and crew statistics.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/api/handlers.go
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/verticallabs/pipeline/internal/config"
	"github.com/verticallabs/pipeline/internal/crew"
	"github.com/verticallabs/pipeline/internal/metrics"
	"github.com/verticallabs/pipeline/internal/monitor"
	"github.com/verticallabs/pipeline/internal/orchestrator"
	"github.com/verticallabs/pipeline/internal/results"
	"github.com/verticallabs/pipeline/internal/tools"
)

/* HealthFunc probes a backing service */
type HealthFunc func(ctx context.Context) error

type Handlers struct {
	store   results.Store
	monitor *monitor.PerformanceMonitor
	runner  crew.Runner
	cfg     *config.Config
	dbCheck HealthFunc
	scraper *tools.Scraper
}

func NewHandlers(store results.Store, mon *monitor.PerformanceMonitor, runner crew.Runner,
	cfg *config.Config, dbCheck HealthFunc) *Handlers {
	return &Handlers{
		store:   store,
		monitor: mon,
		runner:  runner,
		cfg:     cfg,
		dbCheck: dbCheck,
	}
}

/* SetScraper enables publisher site enrichment for triggered pipeline runs */
func (h *Handlers) SetScraper(s *tools.Scraper) {
	h.scraper = s
}

/* Health */

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.dbCheck != nil {
		if err := h.dbCheck(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}
	respondJSON(w, http.StatusOK, resp)
}

/* Results */

func (h *Handlers) GetRunResults(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := GetRequestID(r.Context())
	runID := vars["id"]

	if _, err := h.store.GetRun(r.Context(), runID); err != nil {
		if errors.Is(err, results.ErrUnknownRun) {
			respondError(w, WrapError(ErrNotFound, requestID))
			return
		}
		respondError(w, WrapError(NewError(http.StatusInternalServerError, "run lookup failed", err), requestID))
		return
	}

	var filter results.Filter
	filter.RunID = &runID
	if ct := r.URL.Query().Get("crew_type"); ct != "" {
		filter.CrewType = &ct
	}

	found, err := h.store.GetResults(r.Context(), filter)
	if err != nil {
		respondError(w, WrapError(NewError(http.StatusInternalServerError, "results retrieval failed", err), requestID))
		return
	}
	respondJSON(w, http.StatusOK, found)
}

func (h *Handlers) GetRelatedResults(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := GetRequestID(r.Context())

	var relationType *string
	if rt := r.URL.Query().Get("relation_type"); rt != "" {
		relationType = &rt
	}

	related, err := h.store.GetRelatedResults(r.Context(), vars["id"], relationType)
	if err != nil {
		if errors.Is(err, results.ErrUnknownResult) {
			respondError(w, WrapError(ErrNotFound, requestID))
			return
		}
		respondError(w, WrapError(NewError(http.StatusInternalServerError, "related results retrieval failed", err), requestID))
		return
	}
	respondJSON(w, http.StatusOK, related)
}

/* Workflows */

func (h *Handlers) ExportWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := GetRequestID(r.Context())

	export, err := h.store.ExportWorkflowResults(r.Context(), vars["id"])
	if err != nil {
		respondError(w, WrapError(NewError(http.StatusInternalServerError, "workflow export failed", err), requestID))
		return
	}
	respondJSON(w, http.StatusOK, export)
}

/* Monitoring */

func (h *Handlers) GetRunMetrics(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := GetRequestID(r.Context())

	m, err := h.monitor.GetMetrics(vars["id"])
	if err != nil {
		respondError(w, WrapError(ErrNotFound, requestID))
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *Handlers) GetCrewStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := GetRequestID(r.Context())
	crewType := vars["crew_type"]

	switch crewType {
	case crew.TypeTopics, crew.TypePitch, crew.TypeContent:
	default:
		respondError(w, WrapError(NewError(http.StatusBadRequest, "unknown crew type", nil), requestID))
		return
	}

	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			days = n
		}
	}

	respondJSON(w, http.StatusOK, h.monitor.GetCrewStats(crewType, days))
}

/* Pipeline */

func (h *Handlers) RunPipeline(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var req PipelineRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, WrapError(NewError(http.StatusBadRequest, "request body parsing error", err), requestID))
			return
		}
	}

	pipelineCfg := h.cfg.Pipeline
	if req.Domain != "" {
		pipelineCfg.Domain = req.Domain
	}
	if req.TargetAudience != "" {
		pipelineCfg.TargetAudience = req.TargetAudience
	}
	if req.ContentGoals != "" {
		pipelineCfg.ContentGoals = req.ContentGoals
	}
	if req.Topology != "" {
		pipelineCfg.Topology = req.Topology
	}
	if req.FailFast != nil {
		pipelineCfg.FailFast = *req.FailFast
	}

	publisher := crew.PublisherInfo{
		Name:        h.cfg.Publisher.Name,
		URL:         h.cfg.Publisher.URL,
		Categories:  h.cfg.Publisher.Categories,
		Audience:    h.cfg.Publisher.Audience,
		Locations:   h.cfg.Publisher.Locations,
		Preferences: h.cfg.Publisher.Preferences,
	}

	orch, err := orchestrator.NewOrchestrator(h.runner, h.store, h.monitor, pipelineCfg, publisher)
	if err != nil {
		respondError(w, WrapError(NewError(http.StatusBadRequest, "pipeline configuration invalid", err), requestID))
		return
	}
	if h.scraper != nil {
		orch.SetScraper(h.scraper)
	}

	/* The run outlives the request; completion is observable through the
	 * workflow export and stats endpoints. */
	go func() {
		ctx := metrics.WithLogContext(context.Background(), requestID, orch.WorkflowID(), "", "", "")
		if _, err := orch.RunFullPipeline(ctx); err != nil {
			metrics.ErrorWithContext(ctx, "Background pipeline run failed", err, nil)
		}
	}()

	respondJSON(w, http.StatusAccepted, PipelineResponse{
		WorkflowID: orch.WorkflowID(),
		Phase:      orch.Phase(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err *APIError) {
	response := ErrorResponse{
		Error: err.Message,
		Code:  err.Code,
	}
	if err.Err != nil {
		response.Message = err.Err.Error()
	}
	if err.RequestID != "" {
		w.Header().Set("X-Request-ID", err.RequestID)
	}
	respondJSON(w, err.Code, response)
}
