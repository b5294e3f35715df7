/*-------------------------------------------------------------------------
 *
 * models.go
 *    Database models for the content pipeline
 *
 * Defines data structures for crew runs, results, and the provenance
 * relationships between results.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/db/models.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

/* JSONBMap maps a Postgres jsonb column to a Go map */
type JSONBMap map[string]interface{}

/* Value implements driver.Valuer */
func (m JSONBMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

/* Scan implements sql.Scanner */
func (m *JSONBMap) Scan(src interface{}) error {
	if src == nil {
		*m = make(JSONBMap)
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb scan failed: unsupported source type %T", src)
	}
	return json.Unmarshal(data, m)
}

/* FromMap converts a plain map into a JSONBMap */
func FromMap(m map[string]interface{}) JSONBMap {
	if m == nil {
		return make(JSONBMap)
	}
	return JSONBMap(m)
}

/* ToMap converts a JSONBMap into a plain map */
func (m JSONBMap) ToMap() map[string]interface{} {
	if m == nil {
		return make(map[string]interface{})
	}
	return map[string]interface{}(m)
}

/* Run is one crew invocation; a full pipeline produces several runs */
type Run struct {
	RunID       string     `db:"run_id"`
	WorkflowID  *string    `db:"workflow_id"`
	CrewType    string     `db:"crew_type"`
	Status      string     `db:"status"`
	Metadata    JSONBMap   `db:"metadata"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

/* Result is one discrete crew output (one topic, one pitch, one content item) */
type Result struct {
	ResultID  string    `db:"result_id"`
	RunID     string    `db:"run_id"`
	CrewType  string    `db:"crew_type"`
	Content   JSONBMap  `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

/* Relationship is a directed provenance edge between two results */
type Relationship struct {
	SourceID     string    `db:"source_id"`
	TargetID     string    `db:"target_id"`
	RelationType string    `db:"relation_type"`
	CreatedAt    time.Time `db:"created_at"`
}
