package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/service/embedding"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
	"github.com/advisim-lab/mnemosyne/pkg/utils/errutil"
	"github.com/m-mizutani/goerr/v2"
)

// ContextUseCase assembles consultation context bundles from the three
// retrieval indexes.
type ContextUseCase struct {
	memories *recall.MemoryIndex
	cases    *recall.CaseIndex
	rules    *recall.RuleIndex
	embedder embedding.Service
	weights  model.RetrievalWeights
}

// AssembleInput parameterizes one bundle assembly. Zero values fall
// back to defaults: TopKEach to 5, Weights to the configured default,
// Now to the wall clock.
type AssembleInput struct {
	QueryEmbedding  []float32
	TopKEach        int
	Weights         *model.RetrievalWeights
	Now             time.Time
	FCARequirements string
	Conversation    *model.ConversationContext
	TaskType        string
	Domain          string
	MinConfidence   float64
}

const defaultTopKEach = 5

// Assemble runs the three retrievals concurrently and merges the hits
// into one ContextBundle. A failing section degrades to an empty one as
// long as another section succeeds; the failure is logged and named in
// the bundle rationale. Only when all three fail does Assemble return
// an error.
func (x *ContextUseCase) Assemble(ctx context.Context, input AssembleInput) (*model.ContextBundle, error) {
	topK := input.TopKEach
	if topK <= 0 {
		topK = defaultTopKEach
	}
	weights := x.weights
	if input.Weights != nil {
		weights = *input.Weights
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	var (
		wg       sync.WaitGroup
		memories []*model.MemoryResult
		cases    []*model.CaseResult
		rules    []*model.RuleResult
		memErr   error
		caseErr  error
		ruleErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		memories, memErr = x.memories.RetrieveAndTouch(ctx, input.QueryEmbedding, topK, weights, now)
	}()
	go func() {
		defer wg.Done()
		var opts []recall.CaseOption
		if input.TaskType != "" {
			opts = append(opts, recall.WithTaskType(input.TaskType))
		}
		if input.Conversation != nil {
			opts = append(opts, recall.WithConversationContext(input.Conversation))
		}
		cases, caseErr = x.cases.Retrieve(ctx, input.QueryEmbedding, topK, opts...)
	}()
	go func() {
		defer wg.Done()
		var opts []recall.RuleOption
		if input.Domain != "" {
			opts = append(opts, recall.WithDomain(input.Domain))
		}
		if input.MinConfidence > 0 {
			opts = append(opts, recall.WithMinConfidence(input.MinConfidence))
		}
		rules, ruleErr = x.rules.Retrieve(ctx, input.QueryEmbedding, topK, opts...)
	}()
	wg.Wait()

	if memErr != nil && caseErr != nil && ruleErr != nil {
		return nil, goerr.Wrap(errors.Join(memErr, caseErr, ruleErr), "all context retrievals failed")
	}

	var failed recall.RetrievalFailures
	if memErr != nil {
		failed.Memories = true
		memories = []*model.MemoryResult{}
		errutil.Handle(ctx, memErr, "memory retrieval failed, assembling without memories")
	}
	if caseErr != nil {
		failed.Cases = true
		cases = []*model.CaseResult{}
		errutil.Handle(ctx, caseErr, "case retrieval failed, assembling without cases")
	}
	if ruleErr != nil {
		failed.Rules = true
		rules = []*model.RuleResult{}
		errutil.Handle(ctx, ruleErr, "rule retrieval failed, assembling without rules")
	}

	return &model.ContextBundle{
		Memories:        memories,
		Cases:           cases,
		Rules:           rules,
		FCARequirements: input.FCARequirements,
		Rationale:       recall.Rationale(memories, cases, rules, failed),
	}, nil
}

// AssembleFromText embeds query and assembles with the resulting
// vector. Any QueryEmbedding already set on input is replaced.
func (x *ContextUseCase) AssembleFromText(ctx context.Context, query string, input AssembleInput) (*model.ContextBundle, error) {
	if x.embedder == nil {
		return nil, goerr.Wrap(ErrLLMNotConfigured, "text queries need an embedding client")
	}

	vector, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query text", goerr.V(QueryKey, query))
	}

	input.QueryEmbedding = vector
	return x.Assemble(ctx, input)
}
