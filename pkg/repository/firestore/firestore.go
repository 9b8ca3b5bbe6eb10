package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

type Firestore struct {
	client   *firestore.Client
	memories *memoryRepository
	cases    *caseRepository
	rules    *ruleRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes every collection name, keeping multiple
// deployments apart within one database
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.memories.collectionPrefix = prefix
		f.cases.collectionPrefix = prefix
		f.rules.collectionPrefix = prefix
	}
}

// WithDimension sets the embedding dimension enforced on upsert
func WithDimension(dimension int) Option {
	return func(f *Firestore) {
		f.memories.dimension = dimension
		f.cases.dimension = dimension
		f.rules.dimension = dimension
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:   client,
		memories: newMemoryRepository(client),
		cases:    newCaseRepository(client),
		rules:    newRuleRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Memories() interfaces.MemoryRepository {
	return f.memories
}

func (f *Firestore) Cases() interfaces.CaseRepository {
	return f.cases
}

func (f *Firestore) Rules() interfaces.RuleRepository {
	return f.rules
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func collectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}

// nextSeq allocates the next insertion sequence value from a per-corpus
// counter document. Must run inside a transaction with all reads issued
// before any write.
func nextSeq(tx *firestore.Transaction, counterRef *firestore.DocumentRef) (int64, error) {
	doc, err := tx.Get(counterRef)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			if err := tx.Set(counterRef, map[string]any{"value": int64(1)}); err != nil {
				return 0, goerr.Wrap(err, "failed to initialize seq counter")
			}
			return 1, nil
		}
		return 0, goerr.Wrap(err, "failed to get seq counter")
	}

	currentValue, err := doc.DataAt("value")
	if err != nil {
		return 0, goerr.Wrap(err, "failed to get seq counter value")
	}
	val, ok := currentValue.(int64)
	if !ok {
		return 0, goerr.New("seq counter value is not of type int64", goerr.V("value", currentValue))
	}

	next := val + 1
	if err := tx.Update(counterRef, []firestore.Update{
		{Path: "value", Value: next},
	}); err != nil {
		return 0, goerr.Wrap(err, "failed to update seq counter")
	}
	return next, nil
}

func validateDimension(embedding []float32, dimension int) error {
	if len(embedding) > 0 && len(embedding) != dimension {
		return goerr.Wrap(model.ErrDimensionMismatch, "embedding length does not match store dimension",
			goerr.V(model.ExpectedDimensionKey, dimension),
			goerr.V(model.ActualDimensionKey, len(embedding)))
	}
	return nil
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
