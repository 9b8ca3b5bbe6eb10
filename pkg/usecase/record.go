package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/service/embedding"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// RecordUseCase implements direct record CRUD plus bulk ingest.
type RecordUseCase struct {
	memories *recall.MemoryIndex
	cases    *recall.CaseIndex
	rules    *recall.RuleIndex
	embedder embedding.Service
}

// ingestConcurrency bounds the number of records stored in parallel
// during Ingest, keeping embedding API fan-out in check.
const ingestConcurrency = 8

// AddMemory stores mem. A missing ID and timestamp are filled in, and a
// missing embedding is generated from the description when an embedding
// client is available. The caller sees the assigned fields.
func (x *RecordUseCase) AddMemory(ctx context.Context, mem *model.Memory) error {
	if mem.ID == "" {
		mem.ID = model.NewMemoryID()
	}
	if mem.Timestamp.IsZero() {
		mem.Timestamp = time.Now()
	}
	if len(mem.Embedding) == 0 && x.embedder != nil {
		vector, err := x.embedder.Embed(ctx, mem.Description)
		if err != nil {
			return goerr.Wrap(err, "failed to embed memory description", goerr.V(RecordIDKey, mem.ID))
		}
		mem.Embedding = vector
	}

	return x.memories.Add(ctx, mem)
}

// AddCase stores c, assigning an ID when absent and generating a
// missing embedding from the situation and guidance text.
func (x *RecordUseCase) AddCase(ctx context.Context, c *model.Case) error {
	if c.ID == "" {
		c.ID = model.NewCaseID()
	}
	if len(c.Embedding) == 0 && x.embedder != nil {
		vector, err := x.embedder.Embed(ctx, c.Situation+"\n"+c.Guidance)
		if err != nil {
			return goerr.Wrap(err, "failed to embed case text", goerr.V(RecordIDKey, c.ID))
		}
		c.Embedding = vector
	}

	return x.cases.Add(ctx, c)
}

// AddRule stores rule, assigning an ID when absent and generating a
// missing embedding from the principle text.
func (x *RecordUseCase) AddRule(ctx context.Context, rule *model.Rule) error {
	if rule.ID == "" {
		rule.ID = model.NewRuleID()
	}
	if len(rule.Embedding) == 0 && x.embedder != nil {
		vector, err := x.embedder.Embed(ctx, rule.Principle)
		if err != nil {
			return goerr.Wrap(err, "failed to embed rule principle", goerr.V(RecordIDKey, rule.ID))
		}
		rule.Embedding = vector
	}

	return x.rules.Add(ctx, rule)
}

func (x *RecordUseCase) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	return x.memories.Get(ctx, id)
}

func (x *RecordUseCase) GetCase(ctx context.Context, id model.CaseID) (*model.Case, error) {
	return x.cases.Get(ctx, id)
}

func (x *RecordUseCase) GetRule(ctx context.Context, id model.RuleID) (*model.Rule, error) {
	return x.rules.Get(ctx, id)
}

func (x *RecordUseCase) DeleteMemory(ctx context.Context, id model.MemoryID) error {
	return x.memories.Delete(ctx, id)
}

func (x *RecordUseCase) DeleteCase(ctx context.Context, id model.CaseID) error {
	return x.cases.Delete(ctx, id)
}

func (x *RecordUseCase) DeleteRule(ctx context.Context, id model.RuleID) error {
	return x.rules.Delete(ctx, id)
}

// RecordFile is the bulk import format: one JSON document carrying any
// mix of the three record kinds.
type RecordFile struct {
	Memories []*model.Memory `json:"memories,omitempty"`
	Cases    []*model.Case   `json:"cases,omitempty"`
	Rules    []*model.Rule   `json:"rules,omitempty"`
}

// IngestResult counts the records stored by one Ingest call.
type IngestResult struct {
	Memories int `json:"memories"`
	Cases    int `json:"cases"`
	Rules    int `json:"rules"`
}

// Ingest stores every record in records with bounded concurrency,
// filling in IDs and generating missing embeddings the same way the
// Add methods do. The first failure cancels the remaining work.
func (x *RecordUseCase) Ingest(ctx context.Context, records *RecordFile) (*IngestResult, error) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(ingestConcurrency)

	var memories, cases, rules atomic.Int64
	for _, mem := range records.Memories {
		eg.Go(func() error {
			if err := x.AddMemory(ctx, mem); err != nil {
				return err
			}
			memories.Add(1)
			return nil
		})
	}
	for _, c := range records.Cases {
		eg.Go(func() error {
			if err := x.AddCase(ctx, c); err != nil {
				return err
			}
			cases.Add(1)
			return nil
		})
	}
	for _, rule := range records.Rules {
		eg.Go(func() error {
			if err := x.AddRule(ctx, rule); err != nil {
				return err
			}
			rules.Add(1)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "ingest failed")
	}

	return &IngestResult{
		Memories: int(memories.Load()),
		Cases:    int(cases.Load()),
		Rules:    int(rules.Load()),
	}, nil
}
