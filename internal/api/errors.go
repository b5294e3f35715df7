/*-------------------------------------------------------------------------
 *
 * errors.go
 *    API error envelope
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/api/errors.go
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"fmt"
	"net/http"
)

/* APIError carries an HTTP status, a client-safe message, and the cause */
type APIError struct {
	Code      int
	Message   string
	Err       error
	RequestID string
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error: code=%d, message='%s', error=%v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("api error: code=%d, message='%s'", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

/* NewError creates an APIError */
func NewError(code int, message string, err error) *APIError {
	return &APIError{Code: code, Message: message, Err: err}
}

/* WrapError attaches a request id for response correlation */
func WrapError(err *APIError, requestID string) *APIError {
	wrapped := *err
	wrapped.RequestID = requestID
	return &wrapped
}

/* Common errors */
var (
	ErrNotFound   = NewError(http.StatusNotFound, "resource not found", nil)
	ErrBadRequest = NewError(http.StatusBadRequest, "invalid request", nil)
)
