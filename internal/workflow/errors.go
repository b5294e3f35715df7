/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Workflow structural errors
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/workflow/errors.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"fmt"
	"strings"
)

/* DuplicateTaskError is returned when a task id is registered twice */
type DuplicateTaskError struct {
	TaskID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task registration failed: task_id='%s', reason=already registered", e.TaskID)
}

/* UnknownDependencyError is returned at pre-flight when a declared
 * dependency was never registered */
type UnknownDependencyError struct {
	TaskID     string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("workflow pre-flight failed: task_id='%s', dependency='%s', reason=dependency not registered",
		e.TaskID, e.Dependency)
}

/* CyclicDependencyError is returned at pre-flight when the dependency
 * graph contains a cycle */
type CyclicDependencyError struct {
	Remaining []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("workflow pre-flight failed: reason=dependency cycle, tasks=[%s]",
		strings.Join(e.Remaining, ", "))
}

/* DependencyFailedError marks a task that was never launched because a
 * dependency reached the failed state */
type DependencyFailedError struct {
	TaskID     string
	Dependency string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("task skipped: task_id='%s', failed_dependency='%s'", e.TaskID, e.Dependency)
}
