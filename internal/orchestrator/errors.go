/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Pipeline stage failure
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/orchestrator/errors.go
 *
 *-------------------------------------------------------------------------
 */

package orchestrator

import "fmt"

/* StageError reports which pipeline stage failed, the fan-out unit when the
 * failure came from a single per-topic invocation, and the underlying cause */
type StageError struct {
	Stage string
	Unit  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("pipeline stage failed: stage='%s', unit='%s', error=%v", e.Stage, e.Unit, e.Err)
	}
	return fmt.Sprintf("pipeline stage failed: stage='%s', error=%v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

/* PhaseError reports an attempted transition violating the run state machine */
type PhaseError struct {
	Current string
	Target  string
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("pipeline phase transition rejected: current='%s', target='%s'", e.Current, e.Target)
}
