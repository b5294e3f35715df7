/*-------------------------------------------------------------------------
 *
 * runner_test.go
 *    Tests for crew output decoding and scripted runners
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/crew/runner_test.go
 *
 *-------------------------------------------------------------------------
 */

package crew

import (
	"context"
	"errors"
	"testing"
	"time"
)

/* TestDecodeOutputTopics decodes and validates a well-formed topics payload */
func TestDecodeOutputTopics(t *testing.T) {
	raw := []byte(`{"topics": [{"title": "Solar", "description": "Trends", "keywords": ["solar"]}]}`)

	out, err := DecodeOutput(TypeTopics, raw)
	if err != nil {
		t.Fatalf("DecodeOutput failed: %v", err)
	}
	if len(out.Topics) != 1 || out.Topics[0].Title != "Solar" {
		t.Errorf("Unexpected decode result: %+v", out)
	}
}

/* TestDecodeOutputRejectsMalformed maps decode and schema failures to
 * ExecutionError */
func TestDecodeOutputRejectsMalformed(t *testing.T) {
	cases := []struct {
		name     string
		crewType string
		raw      string
	}{
		{"invalid json", TypeTopics, `{"topics": [`},
		{"empty entity list", TypeTopics, `{"topics": []}`},
		{"wrong entity kind", TypePitch, `{"topics": [{"title": "t", "description": "d"}]}`},
		{"missing required field", TypeContent, `{"content_items": [{"title": "t"}]}`},
		{"unknown crew type", "mystery", `{}`},
	}

	for _, tc := range cases {
		_, err := DecodeOutput(tc.crewType, []byte(tc.raw))
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			t.Errorf("%s: expected ExecutionError, got %v", tc.name, err)
		}
	}
}

/* TestStripFences unwraps fenced model output */
func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                          "{\"a\":1}",
		"```json\n{\"a\":1}\n```":            "{\"a\":1}",
		"```\n{\"a\":1}\n```":                "{\"a\":1}",
		"  ```json\n{\"a\":1}\n```  ":        "{\"a\":1}",
		"no fences at all, plain text":       "no fences at all, plain text",
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

/* TestEstimateCost uses the per-model table with a default fallback */
func TestEstimateCost(t *testing.T) {
	if got := EstimateCost("gpt-4", 1000, 1000); got != 0.06 {
		t.Errorf("Expected 0.06 for gpt-4, got %f", got)
	}
	if got := EstimateCost("unknown-model", 500, 500); got != 0.01 {
		t.Errorf("Expected default rate for unknown model, got %f", got)
	}
}

/* TestNewOpenAIRunnerSettings rejects incomplete settings and builds the
 * shared client up front for valid ones */
func TestNewOpenAIRunnerSettings(t *testing.T) {
	if _, err := NewOpenAIRunner(Settings{Model: "gpt-4"}); err == nil {
		t.Error("Expected error for missing api key")
	}
	if _, err := NewOpenAIRunner(Settings{APIKey: "sk-test"}); err == nil {
		t.Error("Expected error for missing model")
	}

	runner, err := NewOpenAIRunner(Settings{Model: "gpt-4", APIKey: "sk-test", BaseURL: "http://localhost:9999"})
	if err != nil {
		t.Fatalf("NewOpenAIRunner failed: %v", err)
	}
	if runner.model != "gpt-4" {
		t.Errorf("Expected model gpt-4, got %s", runner.model)
	}
}

/* TestMockRunnerScripting returns scripted outputs and induced failures */
func TestMockRunnerScripting(t *testing.T) {
	ctx := context.Background()
	induced := errors.New("induced")

	mock := NewMockRunner()
	mock.ScriptOutput(TypeTopics, &Output{Topics: []Topic{{Title: "t", Description: "d"}}})
	mock.ScriptFailure(TypeContent+":bad topic", induced)
	mock.ScriptOutput(TypeContent, &Output{ContentItems: []ContentItem{{Title: "a", Content: "b"}}})

	out, err := mock.Invoke(ctx, Input{CrewType: TypeTopics})
	if err != nil || len(out.Topics) != 1 {
		t.Fatalf("Expected scripted topics output, got %v %v", out, err)
	}

	if _, err := mock.Invoke(ctx, Input{CrewType: TypeContent, Payload: map[string]interface{}{"topic": "bad topic"}}); !errors.Is(err, induced) {
		t.Errorf("Expected induced failure for keyed invocation, got %v", err)
	}
	if _, err := mock.Invoke(ctx, Input{CrewType: TypeContent, Payload: map[string]interface{}{"topic": "good topic"}}); err != nil {
		t.Errorf("Expected unkeyed invocation to succeed, got %v", err)
	}

	if _, err := mock.Invoke(ctx, Input{CrewType: TypePitch}); err == nil {
		t.Error("Expected failure for unscripted crew type")
	}

	if got := mock.InvocationCount(TypeContent); got != 2 {
		t.Errorf("Expected 2 content invocations recorded, got %d", got)
	}
}

/* TestMockRunnerHonorsContext turns an expired context into a failure */
func TestMockRunnerHonorsContext(t *testing.T) {
	mock := NewMockRunner()
	mock.ScriptOutput(TypeTopics, &Output{Topics: []Topic{{Title: "t", Description: "d"}}})
	mock.ScriptDelay(TypeTopics, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mock.Invoke(ctx, Input{CrewType: TypeTopics})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Expected ExecutionError wrapper, got %v", err)
	}
}

/* TestMuxRunnerDispatch routes by crew type and rejects unregistered types */
func TestMuxRunnerDispatch(t *testing.T) {
	ctx := context.Background()

	topicsMock := NewMockRunner()
	topicsMock.ScriptOutput(TypeTopics, &Output{Topics: []Topic{{Title: "t", Description: "d"}}})

	mux := NewMuxRunner()
	mux.Register(TypeTopics, topicsMock)

	out, err := mux.Invoke(ctx, Input{CrewType: TypeTopics})
	if err != nil || len(out.Topics) != 1 {
		t.Fatalf("Expected dispatch to topics runner, got %v %v", out, err)
	}

	_, err = mux.Invoke(ctx, Input{CrewType: TypeContent})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Expected ExecutionError for unregistered type, got %v", err)
	}
}

/* TestEntityValidation enforces the required fields per entity */
func TestEntityValidation(t *testing.T) {
	if err := (&Topic{Title: "t", Description: "d"}).Validate(); err != nil {
		t.Errorf("Expected valid topic, got %v", err)
	}
	if err := (&Topic{Description: "d"}).Validate(); err == nil {
		t.Error("Expected error for missing title")
	}
	if err := (&Pitch{Title: "t"}).Validate(); err == nil {
		t.Error("Expected error for missing pitch body")
	}
	if err := (&ContentItem{Title: "t", Content: "body"}).Validate(); err != nil {
		t.Errorf("Expected valid content item, got %v", err)
	}
}
