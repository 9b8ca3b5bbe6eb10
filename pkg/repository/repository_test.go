package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/gt"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/repository/firestore"
	"github.com/advisim-lab/mnemosyne/pkg/repository/memory"
	"github.com/advisim-lab/mnemosyne/pkg/repository/postgres"
)

const testDimension = 8

// testVector pads the given components to testDimension
func testVector(values ...float32) []float32 {
	vec := make([]float32, testDimension)
	copy(vec, values)
	return vec
}

// sameTime compares timestamps with a tolerance covering Firestore's
// microsecond truncation
func sameTime(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < time.Millisecond
}

func newMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	return memory.New(memory.WithDimension(testDimension))
}

// newFirestoreRepository connects to a real Firestore database. The
// collection prefix defaults to "test" and must have been migrated
// beforehand so that vector and composite indexes exist. Documents
// left over from earlier runs are removed through the repository
// interface before each test.
func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	prefix := os.Getenv("TEST_FIRESTORE_PREFIX")
	if prefix == "" {
		prefix = "test"
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID, databaseID,
		firestore.WithCollectionPrefix(prefix),
		firestore.WithDimension(testDimension))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})

	scrubRepository(t, repo)
	return repo
}

func scrubRepository(t *testing.T, repo interfaces.Repository) {
	t.Helper()
	ctx := context.Background()

	memories, err := repo.Memories().List(ctx)
	gt.NoError(t, err).Required()
	for _, m := range memories {
		gt.NoError(t, repo.Memories().Delete(ctx, m.ID))
	}

	cases, err := repo.Cases().List(ctx)
	gt.NoError(t, err).Required()
	for _, c := range cases {
		gt.NoError(t, repo.Cases().Delete(ctx, c.ID))
	}

	rules, err := repo.Rules().List(ctx)
	gt.NoError(t, err).Required()
	for _, rule := range rules {
		gt.NoError(t, repo.Rules().Delete(ctx, rule.ID))
	}
}

func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	repo, err := postgres.New(ctx, dsn, postgres.WithDimension(testDimension))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	gt.NoError(t, repo.Migrate(ctx)).Required()

	pool, err := pgxpool.New(ctx, dsn)
	gt.NoError(t, err).Required()
	defer pool.Close()
	_, err = pool.Exec(ctx, `TRUNCATE memories, cases, rules`)
	gt.NoError(t, err).Required()

	return repo
}
