package config

import (
	"context"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/repository/firestore"
	"github.com/advisim-lab/mnemosyne/pkg/repository/memory"
	"github.com/advisim-lab/mnemosyne/pkg/repository/postgres"
	"github.com/advisim-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for the record store backend
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
	postgresDSN      string
	dimension        int
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (memory, firestore or postgres)",
			Value:       "memory",
			Sources:     cli.EnvVars("MNEMOSYNE_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "collection-prefix",
			Usage:       "Prefix for Firestore collection names",
			Sources:     cli.EnvVars("MNEMOSYNE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "Postgres DSN (required when using postgres backend)",
			Sources:     cli.EnvVars("MNEMOSYNE_POSTGRES_DSN"),
			Destination: &r.postgresDSN,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding dimension enforced by the store",
			Value:       model.DefaultEmbeddingDimension,
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_DIMENSION"),
			Destination: &r.dimension,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// CollectionPrefix returns the Firestore collection name prefix
func (r *Repository) CollectionPrefix() string {
	return r.collectionPrefix
}

// Dimension returns the configured embedding dimension
func (r *Repository) Dimension() int {
	return r.dimension
}

// Configure initializes a repository for the configured backend.
// The caller is responsible for calling Close() on the returned
// repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	if r.dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", r.dimension))
	}

	switch r.backend {
	case "memory":
		logging.Default().Info("Using in-memory repository (records are not persisted)")
		return memory.New(memory.WithDimension(r.dimension)), nil

	case "firestore":
		if r.projectID == "" {
			return nil, goerr.New("firestore-project-id is required when using firestore backend")
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID,
			firestore.WithDimension(r.dimension),
			firestore.WithCollectionPrefix(r.collectionPrefix),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
			"collection_prefix", r.collectionPrefix,
			"dimension", r.dimension,
		)
		return repo, nil

	case "postgres":
		if r.postgresDSN == "" {
			return nil, goerr.New("postgres-dsn is required when using postgres backend")
		}
		repo, err := postgres.New(ctx, r.postgresDSN, postgres.WithDimension(r.dimension))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize postgres repository")
		}
		logging.Default().Info("Using Postgres repository",
			"secret_dsn", r.postgresDSN,
			"dimension", r.dimension,
		)
		return repo, nil

	default:
		return nil, goerr.New("invalid repository backend", goerr.V(BackendKey, r.backend))
	}
}
