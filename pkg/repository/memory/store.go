package memory

import (
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

// recordFuncs adapts one record type to the generic vector store
type recordFuncs[R any] struct {
	id        func(*R) string
	embedding func(*R) []float32
	clone     func(*R) *R
	seq       func(*R) int64
	setSeq    func(*R, int64)
}

// vectorStore is the in-memory engine shared by the three corpora: a
// record map guarded by an RWMutex, insertion sequence assignment, deep
// copies at every boundary, and brute-force cosine search
type vectorStore[R any] struct {
	mu        sync.RWMutex
	rows      map[string]*R
	lastSeq   int64
	dimension int
	fns       recordFuncs[R]
}

func newVectorStore[R any](dimension int, fns recordFuncs[R]) *vectorStore[R] {
	return &vectorStore[R]{
		rows:      make(map[string]*R),
		dimension: dimension,
		fns:       fns,
	}
}

// put inserts or fully replaces a record. The stored copy owns the
// insertion sequence: first insert assigns the next value, replacement
// keeps the previous one. The caller's record is never retained.
func (s *vectorStore[R]) put(rec *R) error {
	if emb := s.fns.embedding(rec); len(emb) > 0 && len(emb) != s.dimension {
		return goerr.Wrap(model.ErrDimensionMismatch, "embedding length does not match store dimension",
			goerr.V(model.ExpectedDimensionKey, s.dimension),
			goerr.V(model.ActualDimensionKey, len(emb)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.fns.clone(rec)
	id := s.fns.id(stored)
	if prev, ok := s.rows[id]; ok {
		s.fns.setSeq(stored, s.fns.seq(prev))
	} else {
		s.lastSeq++
		s.fns.setSeq(stored, s.lastSeq)
	}
	s.rows[id] = stored
	return nil
}

func (s *vectorStore[R]) get(id string) *R {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rows[id]
	if !ok {
		return nil
	}
	return s.fns.clone(rec)
}

func (s *vectorStore[R]) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, id)
}

// list returns clones of all records passing the filter, in insertion order
func (s *vectorStore[R]) list(filter func(*R) bool) []*R {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*R, 0, len(s.rows))
	for _, rec := range s.rows {
		if filter != nil && !filter(rec) {
			continue
		}
		result = append(result, s.fns.clone(rec))
	}

	sort.Slice(result, func(i, j int) bool {
		return s.fns.seq(result[i]) < s.fns.seq(result[j])
	})

	return result
}

// update applies mutate to each stored record among ids; unknown ids are
// skipped
func (s *vectorStore[R]) update(ids []string, mutate func(*R)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if rec, ok := s.rows[id]; ok {
			mutate(rec)
		}
	}
}

type match[R any] struct {
	record     *R
	similarity float64
}

// find scores every record that carries an embedding against the query.
// Results are ordered by similarity descending, ties by ascending ID, and
// truncated to limit.
func (s *vectorStore[R]) find(query []float32, limit int, filter func(*R) bool) []match[R] {
	if limit <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []match[R]
	for _, rec := range s.rows {
		if len(s.fns.embedding(rec)) == 0 {
			continue
		}
		if filter != nil && !filter(rec) {
			continue
		}
		sim := model.CosineSimilarity(query, s.fns.embedding(rec))
		candidates = append(candidates, match[R]{record: s.fns.clone(rec), similarity: sim})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return s.fns.id(candidates[i].record) < s.fns.id(candidates[j].record)
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit]
}
