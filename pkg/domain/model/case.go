package model

import (
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

// CaseID is a UUID-based identifier for Case
type CaseID string

// NewCaseID generates a new UUID v4 CaseID
func NewCaseID() CaseID {
	return CaseID(uuid.New().String())
}

// String returns the string representation of CaseID
func (id CaseID) String() string {
	return string(id)
}

// Case represents a historical consultation case: the situation a client
// brought, the guidance given, and how it worked out
type Case struct {
	ID        CaseID         `json:"id"`
	TaskType  string         `json:"task_type"` // category tag, e.g. "retirement_planning"
	Situation string         `json:"situation"`
	Guidance  string         `json:"guidance"`
	Outcome   map[string]any `json:"outcome,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
	Meta      CaseMeta       `json:"meta,omitzero"`
	Seq       int64          `json:"-"`
}

// CaseMeta carries optional conversational annotations produced by the
// dialogue analysis pipeline. Absent fields never fail a read; they only
// disable the related ranking boosts.
type CaseMeta struct {
	ConversationalQuality *float64           `json:"conversational_quality,omitempty"` // [0, 1]
	DialogueTechniques    DialogueTechniques `json:"dialogue_techniques,omitzero"`
	Extra                 map[string]any     `json:"extra,omitempty"`
}

// DialogueTechniques describes which consultation phases a case's
// dialogue demonstrates
type DialogueTechniques struct {
	PhasesCovered []types.ConsultationPhase `json:"phases_covered,omitempty"`
}

// Covers reports whether the given phase appears in PhasesCovered
func (d DialogueTechniques) Covers(phase types.ConsultationPhase) bool {
	return slices.Contains(d.PhasesCovered, phase)
}

// Validate checks the fields a stored case must carry
func (c *Case) Validate() error {
	if c.ID == "" {
		return goerr.Wrap(ErrInvalidRecord, "case ID is required")
	}
	if c.Situation == "" {
		return goerr.Wrap(ErrInvalidRecord, "case situation is required", goerr.V("id", c.ID))
	}
	if q := c.Meta.ConversationalQuality; q != nil && (*q < 0 || *q > 1) {
		return goerr.Wrap(ErrInvalidRecord, "conversational quality must be within [0, 1]", goerr.V("quality", *q))
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with the original
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Outcome = maps.Clone(c.Outcome)
	cp.Embedding = slices.Clone(c.Embedding)
	cp.Meta = c.Meta.Clone()
	return &cp
}

// Clone returns a deep copy of the case metadata
func (m CaseMeta) Clone() CaseMeta {
	cp := m
	if m.ConversationalQuality != nil {
		q := *m.ConversationalQuality
		cp.ConversationalQuality = &q
	}
	cp.DialogueTechniques.PhasesCovered = slices.Clone(m.DialogueTechniques.PhasesCovered)
	cp.Extra = maps.Clone(m.Extra)
	return cp
}

// CaseMatch is a similarity search hit for a case record
type CaseMatch struct {
	Case       *Case   `json:"case"`
	Similarity float64 `json:"similarity"`
}
