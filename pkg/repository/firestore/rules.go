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
)

type ruleDoc struct {
	ID                 model.RuleID       `firestore:"id"`
	Principle          string             `firestore:"principle"`
	Domain             string             `firestore:"domain"`
	Confidence         float64            `firestore:"confidence"`
	SupportingEvidence []string           `firestore:"supporting_evidence,omitempty"`
	Embedding          firestore.Vector32 `firestore:"embedding,omitempty"`
	HasEmbedding       bool               `firestore:"has_embedding"`
	Meta               map[string]any     `firestore:"meta,omitempty"`
	Seq                int64              `firestore:"seq"`
}

func toRuleDoc(rule *model.Rule) *ruleDoc {
	doc := &ruleDoc{
		ID:         rule.ID,
		Principle:  rule.Principle,
		Domain:     rule.Domain,
		Confidence: rule.Confidence,
		Meta:       rule.Meta,
		Seq:        rule.Seq,
	}
	for _, caseID := range rule.SupportingEvidence {
		doc.SupportingEvidence = append(doc.SupportingEvidence, string(caseID))
	}
	if len(rule.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(rule.Embedding)
		doc.HasEmbedding = true
	}
	return doc
}

func fromRuleDoc(d *ruleDoc) *model.Rule {
	rule := &model.Rule{
		ID:         d.ID,
		Principle:  d.Principle,
		Domain:     d.Domain,
		Confidence: d.Confidence,
		Meta:       d.Meta,
		Seq:        d.Seq,
	}
	for _, caseID := range d.SupportingEvidence {
		rule.SupportingEvidence = append(rule.SupportingEvidence, model.CaseID(caseID))
	}
	if len(d.Embedding) > 0 {
		rule.Embedding = []float32(d.Embedding)
	}
	return rule
}

func docToRule(doc *firestore.DocumentSnapshot) (*model.Rule, error) {
	var d ruleDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromRuleDoc(&d), nil
}

type ruleRepository struct {
	client           *firestore.Client
	collectionPrefix string
	dimension        int
}

var _ interfaces.RuleRepository = &ruleRepository{}

func newRuleRepository(client *firestore.Client) *ruleRepository {
	return &ruleRepository{client: client, dimension: model.DefaultEmbeddingDimension}
}

func (r *ruleRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, "rules"))
}

func (r *ruleRepository) counterRef() *firestore.DocumentRef {
	return r.client.Collection(collectionName(r.collectionPrefix, "counters")).Doc("rules_seq")
}

func (r *ruleRepository) Put(ctx context.Context, rule *model.Rule) error {
	if err := validateDimension(rule.Embedding, r.dimension); err != nil {
		return err
	}

	doc := toRuleDoc(rule)
	docRef := r.collection().Doc(string(rule.ID))

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
			return goerr.Wrap(err, "failed to get rule for upsert")
		}
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put rule", goerr.V("id", rule.ID))
	}
	return nil
}

func (r *ruleRepository) Get(ctx context.Context, id model.RuleID) (*model.Rule, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get rule", goerr.V("id", id))
	}

	rule, err := docToRule(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal rule", goerr.V("id", id))
	}
	return rule, nil
}

func (r *ruleRepository) Delete(ctx context.Context, id model.RuleID) error {
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete rule", goerr.V("id", id))
	}
	return nil
}

func (r *ruleRepository) List(ctx context.Context) ([]*model.Rule, error) {
	iter := r.collection().OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	rules := make([]*model.Rule, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate rules")
		}

		rule, err := docToRule(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal rule")
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func (r *ruleRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int, opts ...interfaces.FindRulesOption) ([]*model.RuleMatch, error) {
	if limit <= 0 {
		return []*model.RuleMatch{}, nil
	}
	domain := interfaces.BuildFindRulesConfig(opts...).Domain()

	if len(embedding) == 0 || isZeroVector(embedding) {
		return r.findWithoutQuery(ctx, limit, domain)
	}

	q := r.collection().Query
	if domain != nil {
		q = q.Where("domain", "==", *domain)
	}
	vq := q.FindNearest("embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: "vector_distance"})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	matches := make([]*model.RuleMatch, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate rule vector search results")
		}

		rule, err := docToRule(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal rule from vector search")
		}
		matches = append(matches, &model.RuleMatch{Rule: rule, Similarity: similarityFromDoc(doc)})
	}

	sortRuleMatches(matches)
	return matches, nil
}

func (r *ruleRepository) findWithoutQuery(ctx context.Context, limit int, domain *string) ([]*model.RuleMatch, error) {
	q := r.collection().Where("has_embedding", "==", true)
	if domain != nil {
		q = q.Where("domain", "==", *domain)
	}

	iter := q.OrderBy(firestore.DocumentID, firestore.Asc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	matches := make([]*model.RuleMatch, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate rules")
		}

		rule, err := docToRule(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal rule")
		}
		matches = append(matches, &model.RuleMatch{Rule: rule, Similarity: 0})
	}

	return matches, nil
}

func sortRuleMatches(matches []*model.RuleMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Rule.ID < matches[j].Rule.ID
	})
}
