/*-------------------------------------------------------------------------
 *
 * openai.go
 *    OpenAI-backed crew runner
 *
 * Runs a crew as a single structured chat completion: the crew's agent
 * configuration becomes the system prompt, the invocation payload becomes
 * the user message, and the model must answer with strict JSON matching
 * the crew output schema.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/crew/openai.go
 *
 *-------------------------------------------------------------------------
 */

package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/verticallabs/pipeline/internal/metrics"
)

/* Settings holds the opaque per-crew LLM selector and transport options */
type Settings struct {
	Model   string
	APIKey  string
	BaseURL string
}

/* OpenAIRunner implements Runner using the official openai-go SDK. One
 * client is built at construction and shared by every invocation. */
type OpenAIRunner struct {
	model  string
	client openai.Client
}

/* NewOpenAIRunner creates a runner from settings */
func NewOpenAIRunner(cfg Settings) (*OpenAIRunner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai runner setup failed: api_key=missing")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai runner setup failed: model=missing")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIRunner{model: cfg.Model, client: openai.NewClient(opts...)}, nil
}

func (r *OpenAIRunner) Invoke(ctx context.Context, in Input) (*Output, error) {
	system, err := systemPrompt(in.CrewType)
	if err != nil {
		return nil, NewExecutionError(in.CrewType, err)
	}

	payload, err := json.Marshal(in.Payload)
	if err != nil {
		return nil, NewExecutionError(in.CrewType, fmt.Errorf("input serialization failed: error=%w", err))
	}

	started := time.Now()
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(string(payload)),
		},
	})
	if err != nil {
		metrics.RecordCrewInvocation(in.CrewType, "failed", time.Since(started))
		return nil, NewExecutionError(in.CrewType, err)
	}
	if len(resp.Choices) == 0 {
		metrics.RecordCrewInvocation(in.CrewType, "failed", time.Since(started))
		return nil, NewExecutionError(in.CrewType, fmt.Errorf("empty completion: model='%s'", r.model))
	}

	out, err := DecodeOutput(in.CrewType, []byte(stripFences(resp.Choices[0].Message.Content)))
	if err != nil {
		metrics.RecordCrewInvocation(in.CrewType, "failed", time.Since(started))
		return nil, err
	}

	out.TokensUsed = int(resp.Usage.TotalTokens)
	out.Cost = EstimateCost(r.model, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))

	metrics.RecordCrewInvocation(in.CrewType, "completed", time.Since(started))
	metrics.RecordLLMUsage(in.CrewType, out.TokensUsed, out.Cost)
	return out, nil
}

/* systemPrompt returns the agent configuration text for a crew type */
func systemPrompt(crewType string) (string, error) {
	switch crewType {
	case TypeTopics:
		return `You are a team of content strategists discovering article topics for a publisher.
Given the publisher profile and domain context in the user message, respond with strict JSON:
{"topics": [{"title": "...", "description": "...", "keywords": ["..."]}]}
No prose outside the JSON.`, nil
	case TypePitch:
		return `You are a team of media-relations specialists writing editorial pitches.
Given the topics, content, and brand context in the user message, respond with strict JSON:
{"pitches": [{"title": "...", "pitch": "...", "target_audience": "..."}]}
No prose outside the JSON.`, nil
	case TypeContent:
		return `You are a team of writers and editors producing a publication-ready article.
Given the topic, keywords, and content goals in the user message, respond with strict JSON:
{"content_items": [{"title": "...", "content": "<markdown body>", "metadata": {"word_count": 0}}]}
No prose outside the JSON.`, nil
	default:
		return "", fmt.Errorf("unknown crew_type='%s'", crewType)
	}
}

/* stripFences removes a Markdown code fence wrapper some models add */
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

/* EstimateCost estimates USD cost for a completion */
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	costPer1K := map[string]float64{
		"gpt-4":         0.03,
		"gpt-4-turbo":   0.01,
		"gpt-4o":        0.005,
		"gpt-3.5-turbo": 0.002,
	}
	rate, ok := costPer1K[model]
	if !ok {
		rate = 0.01
	}
	return float64(promptTokens+completionTokens) / 1000.0 * rate
}
