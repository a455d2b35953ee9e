package models

import "time"

// DocumentStatus is the ingestion state of an uploaded document. Transitions
// only move forward through statusRank; "failed" is the terminal state a run
// may jump to from any non-terminal status.
type DocumentStatus string

const (
	StatusUploaded    DocumentStatus = "uploaded"
	StatusDownloading DocumentStatus = "downloading"
	StatusParsing     DocumentStatus = "parsing"
	StatusEmbedding   DocumentStatus = "embedding"
	StatusProcessed   DocumentStatus = "processed"
	StatusFailed      DocumentStatus = "failed"
)

const (
	FailReasonUnsupportedFormat = "unsupported_format"
	FailReasonEmptyText         = "empty_text"
	FailReasonIngestError       = "ingest_error"
)

var statusRank = map[DocumentStatus]int{
	StatusUploaded:    0,
	StatusDownloading: 1,
	StatusParsing:     2,
	StatusEmbedding:   3,
	StatusProcessed:   4,
}

// CanTransition reports whether moving from one status to another keeps the
// ingestion state machine monotonic within a run.
func CanTransition(from, to DocumentStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// Terminal reports whether a status ends the state machine.
func (s DocumentStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

type Document struct {
	DocumentID   string         `json:"document_id"`
	OwnerScope   string         `json:"owner_scope"`
	Name         string         `json:"name"`
	BlobLocation string         `json:"blob_location"`
	ContentType  string         `json:"content_type"`
	Status       DocumentStatus `json:"status"`
	FailReason   string         `json:"fail_reason,omitempty"`
	ChunkCount   int            `json:"chunk_count"`
	CreatedAt    time.Time      `json:"created_at"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
}

// Fragment is the unit of retrieval: a slice of a document's extracted text
// plus its embedding vector. Ordinal is unique within the parent document and
// preserves source order.
type Fragment struct {
	DocumentID string    `json:"document_id"`
	Ordinal    int       `json:"ordinal"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	MessageID  string    `json:"message_id"`
	OwnerScope string    `json:"owner_scope"`
	Role       string    `json:"role"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
