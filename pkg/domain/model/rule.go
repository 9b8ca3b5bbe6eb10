package model

import (
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// RuleID is a UUID-based identifier for Rule
type RuleID string

// NewRuleID generates a new UUID v4 RuleID
func NewRuleID() RuleID {
	return RuleID(uuid.New().String())
}

// String returns the string representation of RuleID
func (id RuleID) String() string {
	return string(id)
}

// Rule represents a generalized advice principle distilled from past
// cases. Confidence reflects how well its supporting evidence held up.
type Rule struct {
	ID                 RuleID         `json:"id"`
	Principle          string         `json:"principle"`
	Domain             string         `json:"domain"`     // category tag, e.g. "pension_transfer"
	Confidence         float64        `json:"confidence"` // [0, 1]
	SupportingEvidence []CaseID       `json:"supporting_evidence,omitempty"`
	Embedding          []float32      `json:"embedding,omitempty"`
	Meta               map[string]any `json:"meta,omitempty"`
	Seq                int64          `json:"-"`
}

// Validate checks the fields a stored rule must carry.
// SupportingEvidence entries are weak references and are not resolved.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return goerr.Wrap(ErrInvalidRecord, "rule ID is required")
	}
	if r.Principle == "" {
		return goerr.Wrap(ErrInvalidRecord, "rule principle is required", goerr.V("id", r.ID))
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return goerr.Wrap(ErrInvalidRecord, "confidence must be within [0, 1]", goerr.V("confidence", r.Confidence))
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with the original
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	cp := *r
	cp.SupportingEvidence = slices.Clone(r.SupportingEvidence)
	cp.Embedding = slices.Clone(r.Embedding)
	cp.Meta = maps.Clone(r.Meta)
	return &cp
}

// RuleMatch is a similarity search hit for a rule record
type RuleMatch struct {
	Rule       *Rule   `json:"rule"`
	Similarity float64 `json:"similarity"`
}
