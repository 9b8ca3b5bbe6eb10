package recall

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

const (
	// qualityBoost rewards cases whose recorded conversation exceeded
	// the quality threshold
	qualityBoost     = 0.2
	qualityThreshold = 0.7
	// phaseBoost rewards cases that covered the current consultation
	// phase
	phaseBoost = 0.1
)

// CaseIndex retrieves past cases by similarity, optionally boosted by
// conversation context
type CaseIndex struct {
	repo interfaces.CaseRepository
}

// NewCaseIndex creates a CaseIndex over the given repository
func NewCaseIndex(repo interfaces.CaseRepository) *CaseIndex {
	return &CaseIndex{repo: repo}
}

// Add validates the case and stores it
func (x *CaseIndex) Add(ctx context.Context, c *model.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return x.repo.Put(ctx, c)
}

// Get retrieves a case by ID, nil when absent
func (x *CaseIndex) Get(ctx context.Context, id model.CaseID) (*model.Case, error) {
	return x.repo.Get(ctx, id)
}

// Delete removes a case by ID
func (x *CaseIndex) Delete(ctx context.Context, id model.CaseID) error {
	return x.repo.Delete(ctx, id)
}

// Retrieve returns the topK cases for the query. Without a
// conversation context the ranking is plain similarity. With one, the
// index over-fetches twice the requested size, boosts candidates that
// showed high conversational quality or covered the current phase,
// and re-ranks by the boosted score.
func (x *CaseIndex) Retrieve(ctx context.Context, query []float32, topK int, opts ...CaseOption) ([]*model.CaseResult, error) {
	if topK <= 0 {
		return []*model.CaseResult{}, nil
	}
	cfg := buildCaseConfig(opts)

	var findOpts []interfaces.FindCasesOption
	if cfg.taskType != nil {
		findOpts = append(findOpts, interfaces.WithTaskType(*cfg.taskType))
	}

	if cfg.conversation == nil {
		matches, err := x.repo.FindByEmbedding(ctx, query, topK, findOpts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to search cases")
		}

		results := make([]*model.CaseResult, 0, len(matches))
		for _, match := range matches {
			results = append(results, &model.CaseResult{
				Case:       match.Case,
				Similarity: match.Similarity,
				FinalScore: match.Similarity,
			})
		}
		return results, nil
	}

	matches, err := x.repo.FindByEmbedding(ctx, query, topK*2, findOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search cases")
	}

	results := make([]*model.CaseResult, 0, len(matches))
	for _, match := range matches {
		boost := conversationBoost(match.Case, cfg.conversation)
		results = append(results, &model.CaseResult{
			Case:       match.Case,
			Similarity: match.Similarity,
			Boost:      boost,
			FinalScore: match.Similarity + boost,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].Case.ID < results[j].Case.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func conversationBoost(c *model.Case, conversation *model.ConversationContext) float64 {
	var boost float64
	if q := c.Meta.ConversationalQuality; q != nil && *q > qualityThreshold {
		boost += qualityBoost
	}
	if conversation.Phase != "" && c.Meta.DialogueTechniques.Covers(conversation.Phase) {
		boost += phaseBoost
	}
	return boost
}
