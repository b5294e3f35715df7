/*-------------------------------------------------------------------------
 *
 * runner.go
 *    Crew runner contract
 *
 * A crew is an opaque collaborator: it takes a structured input, runs its
 * internal agent collaboration, and returns structured entities or a
 * failure. Latency is unbounded; the caller owns timeouts.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/crew/runner.go
 *
 *-------------------------------------------------------------------------
 */

package crew

import (
	"context"
	"encoding/json"
	"fmt"
)

/* Input is the structured payload handed to a crew invocation */
type Input struct {
	CrewType string
	Payload  map[string]interface{}
}

/* Output is the validated result of one crew invocation */
type Output struct {
	Topics       []Topic       `json:"topics,omitempty"`
	Pitches      []Pitch       `json:"pitches,omitempty"`
	ContentItems []ContentItem `json:"content_items,omitempty"`
	TokensUsed   int           `json:"tokens_used"`
	Cost         float64       `json:"cost"`
}

/* Runner executes one crew invocation. Implementations must distinguish
 * failure from a slow success; an empty output is a failure, never a
 * silent success. */
type Runner interface {
	Invoke(ctx context.Context, in Input) (*Output, error)
}

/* ExecutionError wraps any crew collaborator failure, including malformed
 * or schema-invalid output */
type ExecutionError struct {
	CrewType string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("crew execution failed: crew_type='%s', error=%v", e.CrewType, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

/* NewExecutionError wraps an underlying failure for a crew type */
func NewExecutionError(crewType string, err error) *ExecutionError {
	return &ExecutionError{CrewType: crewType, Err: err}
}

/* DecodeOutput parses raw crew output into a validated Output. Any decode
 * or schema failure maps to ExecutionError. */
func DecodeOutput(crewType string, raw []byte) (*Output, error) {
	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, NewExecutionError(crewType, fmt.Errorf("output decode failed: error=%w", err))
	}

	if err := out.Validate(crewType); err != nil {
		return nil, NewExecutionError(crewType, err)
	}
	return &out, nil
}

/* Validate checks that the output carries schema-valid entities for the
 * crew type that produced it */
func (o *Output) Validate(crewType string) error {
	switch crewType {
	case TypeTopics:
		if len(o.Topics) == 0 {
			return fmt.Errorf("output validation failed: crew_type='%s', reason=no topics", crewType)
		}
		for i := range o.Topics {
			if err := o.Topics[i].Validate(); err != nil {
				return err
			}
		}
	case TypePitch:
		if len(o.Pitches) == 0 {
			return fmt.Errorf("output validation failed: crew_type='%s', reason=no pitches", crewType)
		}
		for i := range o.Pitches {
			if err := o.Pitches[i].Validate(); err != nil {
				return err
			}
		}
	case TypeContent:
		if len(o.ContentItems) == 0 {
			return fmt.Errorf("output validation failed: crew_type='%s', reason=no content items", crewType)
		}
		for i := range o.ContentItems {
			if err := o.ContentItems[i].Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("output validation failed: unknown crew_type='%s'", crewType)
	}
	return nil
}
