// Package models defines data structures for part memory and CAD operations.
package models

import (
	"time"
)

// MemoryRecord is one executed feature operation stored in a part's memory
// collection. Records are append-only: once stored they are never updated
// or deleted, even when a later operation supersedes them.
type MemoryRecord struct {
	ID          string         `json:"id"`
	FeatureType FeatureType    `json:"feature_type"`
	Label       string         `json:"label"`
	UserIntent  string         `json:"user_intent"`
	Parameters  map[string]any `json:"parameters"`
	Timestamp   time.Time      `json:"timestamp"`

	// Description is the denormalized summary (feature type + label + intent
	// + parameters) built once at write time. It is the text that gets
	// embedded and is treated as immutable.
	Description string `json:"description"`

	Embedding []float32 `json:"embedding,omitempty"`
}

// ScoredRecord is a memory record returned from similarity search together
// with its cosine similarity to the query vector.
type ScoredRecord struct {
	MemoryRecord
	Similarity float64 `json:"similarity"`
}
