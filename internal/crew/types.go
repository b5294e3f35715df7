/*-------------------------------------------------------------------------
 *
 * types.go
 *    Crew entity types for the content pipeline
 *
 * Defines the structured outputs crews produce (topics, pitches, content
 * items) and the publisher profile supplied as input. Crew output is
 * duck-typed at the wire; every entity is schema-validated before it
 * enters the pipeline.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/crew/types.go
 *
 *-------------------------------------------------------------------------
 */

package crew

import (
	"encoding/json"
	"fmt"
)

/* Crew types */
const (
	TypeTopics  = "topics"
	TypePitch   = "pitch"
	TypeContent = "content"
)

/* Topic is one content opportunity discovered by the topics crew */
type Topic struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

/* Validate checks the topic schema */
func (t *Topic) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("topic validation failed: field='title', reason=empty")
	}
	if t.Description == "" {
		return fmt.Errorf("topic validation failed: field='description', title='%s', reason=empty", t.Title)
	}
	return nil
}

/* Pitch is one editorial pitch produced by the pitch crew */
type Pitch struct {
	Title          string `json:"title"`
	Pitch          string `json:"pitch"`
	TargetAudience string `json:"target_audience"`
}

/* Validate checks the pitch schema */
func (p *Pitch) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("pitch validation failed: field='title', reason=empty")
	}
	if p.Pitch == "" {
		return fmt.Errorf("pitch validation failed: field='pitch', title='%s', reason=empty", p.Title)
	}
	return nil
}

/* ContentItem is one piece of content produced by the content crew */
type ContentItem struct {
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

/* Validate checks the content item schema */
func (c *ContentItem) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("content validation failed: field='title', reason=empty")
	}
	if c.Content == "" {
		return fmt.Errorf("content validation failed: field='content', title='%s', reason=empty", c.Title)
	}
	return nil
}

/* PublisherInfo is the read-only publisher profile fed to the topics crew */
type PublisherInfo struct {
	Name        string                 `json:"name"`
	URL         string                 `json:"url"`
	Categories  []string               `json:"categories"`
	Audience    string                 `json:"audience"`
	Locations   []string               `json:"locations"`
	Preferences map[string]interface{} `json:"preferences,omitempty"`
}

/* ToMap converts an entity to a generic payload for persistence */
func ToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("entity serialization failed: type=%T, error=%w", v, err)
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("entity serialization failed: type=%T, error=%w", v, err)
	}
	return out, nil
}
