// Package model provides data models for the InsightPDF service.
package model

import (
	"time"
)

// Document represents an uploaded PDF document.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Hash      string    `json:"hash"` // SHA-256 of the raw file content
	SizeBytes int64     `json:"size_bytes"`
	ChunkNum  int       `json:"chunk_num"`
	CharNum   int       `json:"char_num"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkSource represents source information for a retrieved chunk.
type ChunkSource struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Page         int     `json:"page,omitempty"`
	Content      string  `json:"content"`
	Score        float32 `json:"score"`
}

// RouteDecision records which tool the router selected for a question.
type RouteDecision struct {
	Tool     string `json:"tool"`
	Reason   string `json:"reason"`
	Fallback bool   `json:"fallback,omitempty"` // true when selector output could not be parsed
}

// QueryResult represents the answer to a document question.
type QueryResult struct {
	Answer  string         `json:"answer"`
	Route   *RouteDecision `json:"route,omitempty"`
	Sources []ChunkSource  `json:"sources,omitempty"`
	Cached  bool           `json:"cached,omitempty"`
}
