package firestore

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

type caseMetaDoc struct {
	ConversationalQuality *float64       `firestore:"conversational_quality,omitempty"`
	PhasesCovered         []string       `firestore:"phases_covered,omitempty"`
	Extra                 map[string]any `firestore:"extra,omitempty"`
}

type caseDoc struct {
	ID           model.CaseID       `firestore:"id"`
	TaskType     string             `firestore:"task_type"`
	Situation    string             `firestore:"situation"`
	Guidance     string             `firestore:"guidance"`
	Outcome      map[string]any     `firestore:"outcome,omitempty"`
	Embedding    firestore.Vector32 `firestore:"embedding,omitempty"`
	HasEmbedding bool               `firestore:"has_embedding"`
	Meta         caseMetaDoc        `firestore:"meta"`
	Seq          int64              `firestore:"seq"`
}

func toCaseDoc(c *model.Case) *caseDoc {
	doc := &caseDoc{
		ID:        c.ID,
		TaskType:  c.TaskType,
		Situation: c.Situation,
		Guidance:  c.Guidance,
		Outcome:   c.Outcome,
		Meta: caseMetaDoc{
			ConversationalQuality: c.Meta.ConversationalQuality,
			Extra:                 c.Meta.Extra,
		},
		Seq: c.Seq,
	}
	for _, phase := range c.Meta.DialogueTechniques.PhasesCovered {
		doc.Meta.PhasesCovered = append(doc.Meta.PhasesCovered, string(phase))
	}
	if len(c.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(c.Embedding)
		doc.HasEmbedding = true
	}
	return doc
}

func fromCaseDoc(d *caseDoc) *model.Case {
	c := &model.Case{
		ID:        d.ID,
		TaskType:  d.TaskType,
		Situation: d.Situation,
		Guidance:  d.Guidance,
		Outcome:   d.Outcome,
		Meta: model.CaseMeta{
			ConversationalQuality: d.Meta.ConversationalQuality,
			Extra:                 d.Meta.Extra,
		},
		Seq: d.Seq,
	}
	for _, phase := range d.Meta.PhasesCovered {
		c.Meta.DialogueTechniques.PhasesCovered = append(c.Meta.DialogueTechniques.PhasesCovered, types.ConsultationPhase(phase))
	}
	if len(d.Embedding) > 0 {
		c.Embedding = []float32(d.Embedding)
	}
	return c
}

func docToCase(doc *firestore.DocumentSnapshot) (*model.Case, error) {
	var d caseDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromCaseDoc(&d), nil
}

type caseRepository struct {
	client           *firestore.Client
	collectionPrefix string
	dimension        int
}

var _ interfaces.CaseRepository = &caseRepository{}

func newCaseRepository(client *firestore.Client) *caseRepository {
	return &caseRepository{client: client, dimension: model.DefaultEmbeddingDimension}
}

func (r *caseRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, "cases"))
}

func (r *caseRepository) counterRef() *firestore.DocumentRef {
	return r.client.Collection(collectionName(r.collectionPrefix, "counters")).Doc("cases_seq")
}

func (r *caseRepository) Put(ctx context.Context, c *model.Case) error {
	if err := validateDimension(c.Embedding, r.dimension); err != nil {
		return err
	}

	doc := toCaseDoc(c)
	docRef := r.collection().Doc(string(c.ID))

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
			return goerr.Wrap(err, "failed to get case for upsert")
		}
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put case", goerr.V("id", c.ID))
	}
	return nil
}

func (r *caseRepository) Get(ctx context.Context, id model.CaseID) (*model.Case, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get case", goerr.V("id", id))
	}

	c, err := docToCase(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal case", goerr.V("id", id))
	}
	return c, nil
}

func (r *caseRepository) Delete(ctx context.Context, id model.CaseID) error {
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete case", goerr.V("id", id))
	}
	return nil
}

func (r *caseRepository) List(ctx context.Context) ([]*model.Case, error) {
	iter := r.collection().OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	cases := make([]*model.Case, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate cases")
		}

		c, err := docToCase(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal case")
		}
		cases = append(cases, c)
	}

	return cases, nil
}

func (r *caseRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int, opts ...interfaces.FindCasesOption) ([]*model.CaseMatch, error) {
	if limit <= 0 {
		return []*model.CaseMatch{}, nil
	}
	taskType := interfaces.BuildFindCasesConfig(opts...).TaskType()

	if len(embedding) == 0 || isZeroVector(embedding) {
		return r.findWithoutQuery(ctx, limit, taskType)
	}

	q := r.collection().Query
	if taskType != nil {
		q = q.Where("task_type", "==", *taskType)
	}
	vq := q.FindNearest("embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: "vector_distance"})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	matches := make([]*model.CaseMatch, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate case vector search results")
		}

		c, err := docToCase(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal case from vector search")
		}
		matches = append(matches, &model.CaseMatch{Case: c, Similarity: similarityFromDoc(doc)})
	}

	sortCaseMatches(matches)
	return matches, nil
}

func (r *caseRepository) findWithoutQuery(ctx context.Context, limit int, taskType *string) ([]*model.CaseMatch, error) {
	q := r.collection().Where("has_embedding", "==", true)
	if taskType != nil {
		q = q.Where("task_type", "==", *taskType)
	}

	iter := q.OrderBy(firestore.DocumentID, firestore.Asc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	matches := make([]*model.CaseMatch, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate cases")
		}

		c, err := docToCase(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal case")
		}
		matches = append(matches, &model.CaseMatch{Case: c, Similarity: 0})
	}

	return matches, nil
}

func sortCaseMatches(matches []*model.CaseMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Case.ID < matches[j].Case.ID
	})
}
