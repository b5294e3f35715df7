/*-------------------------------------------------------------------------
 *
 * mock.go
 *    Scripted crew runner for tests and dry runs
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/crew/mock.go
 *
 *-------------------------------------------------------------------------
 */

package crew

import (
	"context"
	"fmt"
	"sync"
	"time"
)

/* MockRunner returns scripted outputs per crew type. Failures and latency
 * can be induced per invocation key to exercise error paths. */
type MockRunner struct {
	mu      sync.Mutex
	outputs map[string]*Output
	/* failures maps crew type or "crewType:title" keys to induced errors */
	failures map[string]error
	/* delays maps the same keys to induced latency */
	delays      map[string]time.Duration
	invocations []Input
}

/* NewMockRunner creates an empty mock */
func NewMockRunner() *MockRunner {
	return &MockRunner{
		outputs:  make(map[string]*Output),
		failures: make(map[string]error),
		delays:   make(map[string]time.Duration),
	}
}

/* ScriptOutput registers the output returned for a crew type */
func (m *MockRunner) ScriptOutput(crewType string, out *Output) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[crewType] = out
}

/* ScriptFailure induces a failure for a crew type or "crewType:title" key */
func (m *MockRunner) ScriptFailure(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key] = err
}

/* ScriptDelay induces latency for a crew type or "crewType:title" key */
func (m *MockRunner) ScriptDelay(key string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[key] = d
}

/* Invocations returns a copy of every recorded input */
func (m *MockRunner) Invocations() []Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Input(nil), m.invocations...)
}

/* InvocationCount returns how many invocations were recorded for a crew type */
func (m *MockRunner) InvocationCount(crewType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, in := range m.invocations {
		if in.CrewType == crewType {
			n++
		}
	}
	return n
}

func (m *MockRunner) Invoke(ctx context.Context, in Input) (*Output, error) {
	m.mu.Lock()
	m.invocations = append(m.invocations, in)
	keys := []string{in.CrewType}
	if title, ok := in.Payload["topic"].(string); ok {
		keys = append([]string{in.CrewType + ":" + title}, keys...)
	}
	var delay time.Duration
	var failure error
	for _, key := range keys {
		if d, ok := m.delays[key]; ok && delay == 0 {
			delay = d
		}
		if err, ok := m.failures[key]; ok && failure == nil {
			failure = err
		}
	}
	out := m.outputs[in.CrewType]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, NewExecutionError(in.CrewType, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, NewExecutionError(in.CrewType, err)
	}
	if failure != nil {
		return nil, NewExecutionError(in.CrewType, failure)
	}
	if out == nil {
		return nil, NewExecutionError(in.CrewType, fmt.Errorf("no scripted output: crew_type='%s'", in.CrewType))
	}

	copied := *out
	return &copied, nil
}
