/*-------------------------------------------------------------------------
 *
 * mux.go
 *    Per-crew-type runner dispatch
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/crew/mux.go
 *
 *-------------------------------------------------------------------------
 */

package crew

import (
	"context"
	"fmt"
)

/* MuxRunner dispatches each invocation to the runner registered for its
 * crew type. Lets each crew carry its own model configuration. */
type MuxRunner struct {
	runners map[string]Runner
}

/* NewMuxRunner creates an empty mux */
func NewMuxRunner() *MuxRunner {
	return &MuxRunner{runners: make(map[string]Runner)}
}

/* Register binds a runner to a crew type */
func (m *MuxRunner) Register(crewType string, r Runner) {
	m.runners[crewType] = r
}

func (m *MuxRunner) Invoke(ctx context.Context, in Input) (*Output, error) {
	r, ok := m.runners[in.CrewType]
	if !ok {
		return nil, NewExecutionError(in.CrewType, fmt.Errorf("no runner registered: crew_type='%s'", in.CrewType))
	}
	return r.Invoke(ctx, in)
}
