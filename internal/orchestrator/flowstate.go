/*-------------------------------------------------------------------------
 *
 * flowstate.go
 *    In-memory pipeline run state
 *
 * FlowState is the single mutable aggregate threaded through one pipeline
 * run. Collection fields are append-only; appends and snapshot reads are
 * synchronized so concurrent fan-out siblings never observe a torn
 * collection. FlowState is not persisted; the results store is the
 * durable record.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/orchestrator/flowstate.go
 *
 *-------------------------------------------------------------------------
 */

package orchestrator

import (
	"sync"

	"github.com/verticallabs/pipeline/internal/crew"
)

/* FlowState accumulates the outputs of one pipeline run */
type FlowState struct {
	Domain         string
	TargetAudience string
	ContentGoals   string

	mu           sync.Mutex
	topics       []crew.Topic
	contentItems []crew.ContentItem
	pitches      []crew.Pitch
}

/* NewFlowState creates the state for one run */
func NewFlowState(domain, targetAudience, contentGoals string) *FlowState {
	return &FlowState{
		Domain:         domain,
		TargetAudience: targetAudience,
		ContentGoals:   contentGoals,
	}
}

/* AppendTopics appends topics atomically */
func (s *FlowState) AppendTopics(topics ...crew.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topics...)
}

/* AppendContentItems appends content items atomically */
func (s *FlowState) AppendContentItems(items ...crew.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentItems = append(s.contentItems, items...)
}

/* AppendPitches appends pitches atomically */
func (s *FlowState) AppendPitches(pitches ...crew.Pitch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pitches = append(s.pitches, pitches...)
}

/* Topics returns a snapshot copy of accumulated topics */
func (s *FlowState) Topics() []crew.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crew.Topic(nil), s.topics...)
}

/* ContentItems returns a snapshot copy of accumulated content items */
func (s *FlowState) ContentItems() []crew.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crew.ContentItem(nil), s.contentItems...)
}

/* Pitches returns a snapshot copy of accumulated pitches */
func (s *FlowState) Pitches() []crew.Pitch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crew.Pitch(nil), s.pitches...)
}
