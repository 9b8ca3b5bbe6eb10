package firestore

import (
	"context"
	"math"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

// memoryDoc is the Firestore document representation of model.Memory.
// Embedding is stored as firestore.Vector32 for FindNearest vector
// search; HasEmbedding marks documents eligible for similarity search.
type memoryDoc struct {
	ID           model.MemoryID     `firestore:"id"`
	Description  string             `firestore:"description"`
	Timestamp    time.Time          `firestore:"timestamp"`
	LastAccessed time.Time          `firestore:"last_accessed"`
	Importance   float64            `firestore:"importance"`
	Kind         string             `firestore:"kind"`
	Embedding    firestore.Vector32 `firestore:"embedding,omitempty"`
	HasEmbedding bool               `firestore:"has_embedding"`
	Meta         map[string]any     `firestore:"meta,omitempty"`
	Seq          int64              `firestore:"seq"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	doc := &memoryDoc{
		ID:           m.ID,
		Description:  m.Description,
		Timestamp:    m.Timestamp,
		LastAccessed: m.LastAccessed,
		Importance:   m.Importance,
		Kind:         string(m.Kind),
		Meta:         m.Meta,
		Seq:          m.Seq,
	}
	if len(m.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(m.Embedding)
		doc.HasEmbedding = true
	}
	return doc
}

func fromMemoryDoc(d *memoryDoc) *model.Memory {
	m := &model.Memory{
		ID:           d.ID,
		Description:  d.Description,
		Timestamp:    d.Timestamp,
		LastAccessed: d.LastAccessed,
		Importance:   d.Importance,
		Kind:         types.MemoryKind(d.Kind),
		Meta:         d.Meta,
		Seq:          d.Seq,
	}
	if len(d.Embedding) > 0 {
		m.Embedding = []float32(d.Embedding)
	}
	return m
}

func docToMemory(doc *firestore.DocumentSnapshot) (*model.Memory, error) {
	var d memoryDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromMemoryDoc(&d), nil
}

type memoryRepository struct {
	client           *firestore.Client
	collectionPrefix string
	dimension        int
}

var _ interfaces.MemoryRepository = &memoryRepository{}

func newMemoryRepository(client *firestore.Client) *memoryRepository {
	return &memoryRepository{client: client, dimension: model.DefaultEmbeddingDimension}
}

func (r *memoryRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, "memories"))
}

func (r *memoryRepository) counterRef() *firestore.DocumentRef {
	return r.client.Collection(collectionName(r.collectionPrefix, "counters")).Doc("memories_seq")
}

func (r *memoryRepository) Put(ctx context.Context, mem *model.Memory) error {
	if err := validateDimension(mem.Embedding, r.dimension); err != nil {
		return err
	}

	doc := toMemoryDoc(mem)
	docRef := r.collection().Doc(string(mem.ID))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Get(docRef)
		switch {
		case err == nil:
			current, err := existing.DataAt("seq")
			if err != nil {
				return goerr.Wrap(err, "failed to read current seq")
			}
			seq, ok := current.(int64)
			if !ok {
				return goerr.New("seq is not of type int64", goerr.V("value", current))
			}
			doc.Seq = seq
		case status.Code(err) == codes.NotFound:
			seq, err := nextSeq(tx, r.counterRef())
			if err != nil {
				return err
			}
			doc.Seq = seq
		default:
			return goerr.Wrap(err, "failed to get memory for upsert")
		}
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put memory", goerr.V("id", mem.ID))
	}
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("id", id))
	}

	m, err := docToMemory(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V("id", id))
	}
	return m, nil
}

func (r *memoryRepository) Delete(ctx context.Context, id model.MemoryID) error {
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete memory", goerr.V("id", id))
	}
	return nil
}

func (r *memoryRepository) List(ctx context.Context) ([]*model.Memory, error) {
	iter := r.collection().OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	memories := make([]*model.Memory, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories")
		}

		m, err := docToMemory(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory")
		}
		memories = append(memories, m)
	}

	return memories, nil
}

func (r *memoryRepository) ListByKind(ctx context.Context, kind types.MemoryKind, limit int) ([]*model.Memory, error) {
	q := r.collection().
		Where("kind", "==", string(kind)).
		OrderBy("timestamp", firestore.Desc).
		OrderBy("seq", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	memories := make([]*model.Memory, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories by kind", goerr.V("kind", kind))
		}

		m, err := docToMemory(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory")
		}
		memories = append(memories, m)
	}

	return memories, nil
}

func (r *memoryRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Memory, error) {
	q := r.collection().
		Where("timestamp", ">=", since).
		OrderBy("timestamp", firestore.Desc).
		OrderBy("seq", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	memories := make([]*model.Memory, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories since", goerr.V("since", since))
		}

		m, err := docToMemory(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory")
		}
		memories = append(memories, m)
	}

	return memories, nil
}

func (r *memoryRepository) TouchLastAccessed(ctx context.Context, ids []model.MemoryID, now time.Time) error {
	for _, id := range ids {
		_, err := r.collection().Doc(string(id)).Update(ctx, []firestore.Update{
			{Path: "last_accessed", Value: now},
		})
		if err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return goerr.Wrap(err, "failed to touch memory", goerr.V("id", id))
		}
	}
	return nil
}

func (r *memoryRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*model.MemoryMatch, error) {
	if limit <= 0 {
		return []*model.MemoryMatch{}, nil
	}
	if len(embedding) == 0 || isZeroVector(embedding) {
		return r.findWithoutQuery(ctx, limit)
	}

	vq := r.collection().
		FindNearest("embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{DistanceResultField: "vector_distance"})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	matches := make([]*model.MemoryMatch, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory vector search results")
		}

		m, err := docToMemory(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory from vector search")
		}
		matches = append(matches, &model.MemoryMatch{Memory: m, Similarity: similarityFromDoc(doc)})
	}

	sortMemoryMatches(matches)
	return matches, nil
}

// findWithoutQuery is the deterministic fallback for an absent or
// all-zero query vector: embedded memories in ascending ID order, each
// with similarity 0
func (r *memoryRepository) findWithoutQuery(ctx context.Context, limit int) ([]*model.MemoryMatch, error) {
	iter := r.collection().
		Where("has_embedding", "==", true).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	matches := make([]*model.MemoryMatch, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories")
		}

		m, err := docToMemory(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory")
		}
		matches = append(matches, &model.MemoryMatch{Memory: m, Similarity: 0})
	}

	return matches, nil
}

// similarityFromDoc converts the injected cosine distance into a
// similarity, mapping NaN (zero-magnitude vectors) to 0
func similarityFromDoc(doc *firestore.DocumentSnapshot) float64 {
	dist, ok := doc.Data()["vector_distance"].(float64)
	if !ok || math.IsNaN(dist) {
		return 0
	}
	sim := 1 - dist
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}

func sortMemoryMatches(matches []*model.MemoryMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Memory.ID < matches[j].Memory.ID
	})
}
