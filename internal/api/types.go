/*-------------------------------------------------------------------------
 *
 * types.go
 *    API request and response types
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/api/types.go
 *
 *-------------------------------------------------------------------------
 */

package api

/* ErrorResponse is the JSON error envelope */
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

/* PipelineRequest optionally overrides the configured pipeline parameters */
type PipelineRequest struct {
	Domain         string `json:"domain,omitempty"`
	TargetAudience string `json:"target_audience,omitempty"`
	ContentGoals   string `json:"content_goals,omitempty"`
	Topology       string `json:"topology,omitempty"`
	FailFast       *bool  `json:"fail_fast,omitempty"`
}

/* PipelineResponse acknowledges an accepted pipeline run */
type PipelineResponse struct {
	WorkflowID string `json:"workflow_id"`
	Phase      string `json:"phase"`
}

/* HealthResponse reports service health */
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
