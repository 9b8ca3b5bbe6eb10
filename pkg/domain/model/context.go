package model

import "github.com/advisim-lab/mnemosyne/pkg/domain/types"

// ConversationContext describes the live conversation state used for
// context-aware case ranking
type ConversationContext struct {
	Phase          types.ConsultationPhase `json:"phase,omitempty"`
	EmotionalState string                  `json:"emotional_state,omitempty"`
	LiteracyLevel  string                  `json:"literacy_level,omitempty"`
}

// MemoryResult is a scored memory retrieval hit. Score is the weighted
// blend of the Recency and Relevance components with the memory's
// importance.
type MemoryResult struct {
	Memory    *Memory `json:"memory"`
	Score     float64 `json:"score"`
	Recency   float64 `json:"recency"`
	Relevance float64 `json:"relevance"`
}

// CaseResult is a ranked case retrieval hit. FinalScore is always
// Similarity + Boost; Boost is 0 when no conversation context was given.
type CaseResult struct {
	Case       *Case   `json:"case"`
	Similarity float64 `json:"similarity"`
	Boost      float64 `json:"boost"`
	FinalScore float64 `json:"final_score"`
}

// RuleResult is a confidence-weighted rule retrieval hit.
// WeightedScore is always Similarity * Confidence.
type RuleResult struct {
	Rule          *Rule   `json:"rule"`
	Similarity    float64 `json:"similarity"`
	WeightedScore float64 `json:"weighted_score"`
}

// ContextBundle is the assembled context for one consultation turn,
// handed to the downstream prompt builder
type ContextBundle struct {
	Memories        []*MemoryResult `json:"memories"`
	Cases           []*CaseResult   `json:"cases"`
	Rules           []*RuleResult   `json:"rules"`
	FCARequirements string          `json:"fca_requirements,omitempty"`
	Rationale       string          `json:"rationale"`
}
