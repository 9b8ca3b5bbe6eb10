package cli

import (
	"context"

	"github.com/advisim-lab/mnemosyne/pkg/cli/config"
	"github.com/advisim-lab/mnemosyne/pkg/repository/postgres"
	"github.com/advisim-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var dryRun bool
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying (firestore only)",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create backend indexes and schema",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			switch repoCfg.Backend() {
			case "memory":
				logger.Info("In-memory backend has nothing to migrate")
				return nil

			case "postgres":
				repo, err := repoCfg.Configure(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize repository")
				}
				defer func() {
					if err := repo.Close(); err != nil {
						logger.Error("failed to close repository", "error", err.Error())
					}
				}()

				pg, ok := repo.(*postgres.Postgres)
				if !ok {
					return goerr.New("postgres backend did not yield a postgres repository")
				}
				if err := pg.Migrate(ctx); err != nil {
					return goerr.Wrap(err, "failed to migrate postgres schema")
				}
				logger.Info("Postgres schema migrated", "dimension", repoCfg.Dimension())
				return nil

			case "firestore":
				return migrateFirestore(ctx, &repoCfg, dryRun)

			default:
				return goerr.New("invalid repository backend", goerr.V(config.BackendKey, repoCfg.Backend()))
			}
		},
	}
}

func migrateFirestore(ctx context.Context, repoCfg *config.Repository, dryRun bool) error {
	logger := logging.Default()
	if repoCfg.ProjectID() == "" {
		return goerr.New("firestore-project-id is required when using firestore backend")
	}

	logger.Info("Migrate configuration",
		"projectID", repoCfg.ProjectID(),
		"databaseID", repoCfg.DatabaseID(),
		"dimension", repoCfg.Dimension(),
		"dryRun", dryRun)

	indexConfig := firestoreIndexConfig(repoCfg.CollectionPrefix(), repoCfg.Dimension())

	client, err := fireconf.NewClient(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID())
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	if dryRun {
		logger.Info("Dry run mode - previewing changes")
		plan, err := client.GetMigrationPlan(ctx, indexConfig)
		if err != nil {
			return goerr.Wrap(err, "failed to create migration plan")
		}

		if len(plan.Steps) == 0 {
			logger.Info("No changes required")
			return nil
		}

		for _, step := range plan.Steps {
			logger.Info("Migration step",
				"collection", step.Collection,
				"operation", step.Operation,
				"description", step.Description,
				"destructive", step.Destructive)
		}
		return nil
	}

	logger.Info("Applying migrations")
	if err := client.Migrate(ctx, indexConfig); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("Migrations applied successfully")
	return nil
}

// firestoreIndexConfig declares the composite and vector indexes the
// Firestore backend queries depend on. Collection naming matches the
// repository (prefix + "_" + name).
func firestoreIndexConfig(prefix string, dimension int) *fireconf.Config {
	name := func(base string) string {
		if prefix != "" {
			return prefix + "_" + base
		}
		return base
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: name("memories"),
				Indexes: []fireconf.Index{
					// ListByKind: kind ==, timestamp DESC, seq DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "kind", Order: fireconf.OrderAscending},
							{Path: "timestamp", Order: fireconf.OrderDescending},
							{Path: "seq", Order: fireconf.OrderDescending},
						},
					},
					// ListSince: timestamp range, timestamp DESC, seq DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "timestamp", Order: fireconf.OrderDescending},
							{Path: "seq", Order: fireconf.OrderDescending},
						},
					},
					// FindByEmbedding vector search
					{
						Fields: []fireconf.IndexField{
							{
								Path: "embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
			{
				Name: name("cases"),
				Indexes: []fireconf.Index{
					// FindByEmbedding vector search
					{
						Fields: []fireconf.IndexField{
							{
								Path: "embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
					// FindByEmbedding filtered by task type
					{
						Fields: []fireconf.IndexField{
							{Path: "task_type", Order: fireconf.OrderAscending},
							{
								Path: "embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
			{
				Name: name("rules"),
				Indexes: []fireconf.Index{
					// FindByEmbedding vector search
					{
						Fields: []fireconf.IndexField{
							{
								Path: "embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
					// FindByEmbedding filtered by domain
					{
						Fields: []fireconf.IndexField{
							{Path: "domain", Order: fireconf.OrderAscending},
							{
								Path: "embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
		},
	}
}
