package usecase

import "errors"

// Sentinel errors for use case layer
var (
	ErrLLMNotConfigured = errors.New("LLM client is not configured")
	ErrEmptyQuestion    = errors.New("question is empty")
)

// Context keys for error values
const (
	QueryKey    = "query"
	RecordIDKey = "record_id"
)
