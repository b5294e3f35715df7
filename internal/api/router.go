/*-------------------------------------------------------------------------
 *
 * router.go
 *    Route registration for the pipeline API
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/api/router.go
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"github.com/gorilla/mux"
	"github.com/verticallabs/pipeline/internal/metrics"
)

/* NewRouter builds the HTTP router with middleware and all routes */
func NewRouter(handlers *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware)
	router.Use(CORSMiddleware)
	router.Use(LoggingMiddleware)

	router.HandleFunc("/health", handlers.Health).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/pipeline", handlers.RunPipeline).Methods("POST")
	apiRouter.HandleFunc("/runs/{id}/results", handlers.GetRunResults).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}/metrics", handlers.GetRunMetrics).Methods("GET")
	apiRouter.HandleFunc("/results/{id}/related", handlers.GetRelatedResults).Methods("GET")
	apiRouter.HandleFunc("/workflows/{id}/export", handlers.ExportWorkflow).Methods("GET")
	apiRouter.HandleFunc("/stats/{crew_type}", handlers.GetCrewStats).Methods("GET")

	return router
}
