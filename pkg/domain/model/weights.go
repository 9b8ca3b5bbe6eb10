package model

import "github.com/m-mizutani/goerr/v2"

// RetrievalWeights controls the blend of recency, importance, and
// relevance in memory scoring. Weights are not normalized; callers own
// their scale.
type RetrievalWeights struct {
	Recency    float64 `json:"recency" toml:"recency_weight"`
	Importance float64 `json:"importance" toml:"importance_weight"`
	Relevance  float64 `json:"relevance" toml:"relevance_weight"`
}

// DefaultRetrievalWeights returns the neutral weighting applied when no
// profile overrides it
func DefaultRetrievalWeights() RetrievalWeights {
	return RetrievalWeights{
		Recency:    1,
		Importance: 1,
		Relevance:  1,
	}
}

// Validate rejects negative weights
func (w RetrievalWeights) Validate() error {
	if w.Recency < 0 || w.Importance < 0 || w.Relevance < 0 {
		return goerr.Wrap(ErrInvalidWeights, "retrieval weights must be non-negative",
			goerr.V("recency", w.Recency),
			goerr.V("importance", w.Importance),
			goerr.V("relevance", w.Relevance))
	}
	return nil
}
