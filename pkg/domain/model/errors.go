package model

import "github.com/m-mizutani/goerr/v2"

// Validation and storage errors
var (
	// ErrDimensionMismatch is returned when an embedding length differs
	// from the dimension the store was configured with
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")
	ErrInvalidRecord     = goerr.New("invalid record")
	ErrInvalidWeights    = goerr.New("invalid retrieval weights")
)

// Context keys for error values
const (
	ExpectedDimensionKey = "expected"
	ActualDimensionKey   = "actual"
)
