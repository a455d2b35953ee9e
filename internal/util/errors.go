package util

import "errors"

var (
	// Extraction failures; both terminate ingestion for the document.
	ErrUnsupportedFormat = errors.New("unsupported content type")
	ErrEmptyText         = errors.New("no extractable text in document")

	// External service failures.
	ErrEmbedding  = errors.New("embedding request failed")
	ErrGeneration = errors.New("generation request failed")

	// Request-scoped failures.
	ErrEmptyQuery = errors.New("query must not be empty")
	ErrNoContent  = errors.New("no processed documents available")
	ErrNotFound   = errors.New("not found")
)
