/*-------------------------------------------------------------------------
 *
 * logging.go
 *    Structured logging helpers for the content pipeline
 *
 * Provides zerolog initialization and helpers for consistent structured
 * logging with request_id, workflow_id, run_id, crew_type, and task_id
 * fields across all components.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/metrics/logging.go
 *
 *-------------------------------------------------------------------------
 */

package metrics

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	workflowIDKey contextKey = "workflow_id"
	runIDKey      contextKey = "run_id"
	crewTypeKey   contextKey = "crew_type"
	taskIDKey     contextKey = "task_id"
)

/* InitLogging configures the global zerolog logger */
func InitLogging(level, format string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if strings.ToLower(format) == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

/* WithLogContext adds logging fields to context */
func WithLogContext(ctx context.Context, requestID, workflowID, runID, crewType, taskID string) context.Context {
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}
	if workflowID != "" {
		ctx = context.WithValue(ctx, workflowIDKey, workflowID)
	}
	if runID != "" {
		ctx = context.WithValue(ctx, runIDKey, runID)
	}
	if crewType != "" {
		ctx = context.WithValue(ctx, crewTypeKey, crewType)
	}
	if taskID != "" {
		ctx = context.WithValue(ctx, taskIDKey, taskID)
	}
	return ctx
}

/* WithRunLogContext adds run ID and crew type to log context */
func WithRunLogContext(ctx context.Context, runID, crewType string) context.Context {
	ctx = context.WithValue(ctx, runIDKey, runID)
	return context.WithValue(ctx, crewTypeKey, crewType)
}

/* WithWorkflowLogContext adds workflow ID to log context */
func WithWorkflowLogContext(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, workflowIDKey, workflowID)
}

/* GetRequestIDFromContext gets request ID from context */
func GetRequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

/* GetRunIDFromContext gets run ID from context */
func GetRunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

/* GetWorkflowIDFromContext gets workflow ID from context */
func GetWorkflowIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(workflowIDKey).(string); ok {
		return id
	}
	return ""
}

/* GetCrewTypeFromContext gets crew type from context */
func GetCrewTypeFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(crewTypeKey).(string); ok {
		return t
	}
	return ""
}

/* GetTaskIDFromContext gets task ID from context */
func GetTaskIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(taskIDKey).(string); ok {
		return id
	}
	return ""
}

/* LoggerFromContext creates a zerolog logger with fields from context */
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	logger := log.Logger

	requestID := GetRequestIDFromContext(ctx)
	workflowID := GetWorkflowIDFromContext(ctx)
	runID := GetRunIDFromContext(ctx)
	crewType := GetCrewTypeFromContext(ctx)
	taskID := GetTaskIDFromContext(ctx)

	if requestID != "" {
		logger = logger.With().Str("request_id", requestID).Logger()
	}
	if workflowID != "" {
		logger = logger.With().Str("workflow_id", workflowID).Logger()
	}
	if runID != "" {
		logger = logger.With().Str("run_id", runID).Logger()
	}
	if crewType != "" {
		logger = logger.With().Str("crew_type", crewType).Logger()
	}
	if taskID != "" {
		logger = logger.With().Str("task_id", taskID).Logger()
	}

	return logger
}

/* LogWithContext logs a message with context fields */
func LogWithContext(ctx context.Context, level zerolog.Level, message string, fields map[string]interface{}) {
	logger := LoggerFromContext(ctx)
	event := logger.WithLevel(level)

	for key, value := range fields {
		event = event.Interface(key, value)
	}

	event.Msg(message)
}

/* DebugWithContext logs a debug message with context */
func DebugWithContext(ctx context.Context, message string, fields map[string]interface{}) {
	LogWithContext(ctx, zerolog.DebugLevel, message, fields)
}

/* InfoWithContext logs an info message with context */
func InfoWithContext(ctx context.Context, message string, fields map[string]interface{}) {
	LogWithContext(ctx, zerolog.InfoLevel, message, fields)
}

/* WarnWithContext logs a warning message with context */
func WarnWithContext(ctx context.Context, message string, fields map[string]interface{}) {
	LogWithContext(ctx, zerolog.WarnLevel, message, fields)
}

/* ErrorWithContext logs an error message with context */
func ErrorWithContext(ctx context.Context, message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogWithContext(ctx, zerolog.ErrorLevel, message, fields)
}
