package cli

import (
	"context"
	"fmt"

	"github.com/advisim-lab/mnemosyne/pkg/cli/config"
	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var appCfg config.AppConfig
	var repoCfg config.Repository

	var flags []cli.Flag
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the profile configuration and stored embeddings",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := appCfg.Configure(); err != nil {
				return goerr.Wrap(err, "profile configuration is invalid")
			}

			for _, p := range appCfg.Profiles {
				fmt.Printf("profile %s: recency=%.2f importance=%.2f relevance=%.2f top_k=%d min_confidence=%.2f\n",
					p.ID, p.RecencyWeight, p.ImportanceWeight, p.RelevanceWeight, p.TopK, p.MinConfidence)
			}

			// The in-memory backend starts empty, so only persistent
			// backends are worth scanning.
			if repoCfg.Backend() != "memory" {
				repo, err := repoCfg.Configure(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize repository")
				}
				defer func() {
					if err := repo.Close(); err != nil {
						logging.Default().Error("failed to close repository", "error", err.Error())
					}
				}()

				if err := checkEmbeddingDimensions(ctx, repo, repoCfg.Dimension()); err != nil {
					return err
				}
			}

			sectionColor.Println("Validation passed")
			return nil
		},
	}
}

// checkEmbeddingDimensions scans all three corpora and reports records
// whose embedding length differs from the configured dimension.
func checkEmbeddingDimensions(ctx context.Context, repo interfaces.Repository, dimension int) error {
	logger := logging.Default()
	var mismatches int

	report := func(kind string, id string, got int) {
		mismatches++
		logger.Warn("embedding dimension mismatch",
			"record", kind,
			"id", id,
			"got", got,
			"want", dimension)
	}

	memories, err := repo.Memories().List(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list memories")
	}
	for _, m := range memories {
		if len(m.Embedding) != 0 && len(m.Embedding) != dimension {
			report("memory", string(m.ID), len(m.Embedding))
		}
	}

	cases, err := repo.Cases().List(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list cases")
	}
	for _, c := range cases {
		if len(c.Embedding) != 0 && len(c.Embedding) != dimension {
			report("case", string(c.ID), len(c.Embedding))
		}
	}

	rules, err := repo.Rules().List(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list rules")
	}
	for _, r := range rules {
		if len(r.Embedding) != 0 && len(r.Embedding) != dimension {
			report("rule", string(r.ID), len(r.Embedding))
		}
	}

	logger.Info("Scanned stored embeddings",
		"memories", len(memories),
		"cases", len(cases),
		"rules", len(rules),
		"mismatches", mismatches)

	if mismatches > 0 {
		return goerr.New("stored embeddings do not match the configured dimension",
			goerr.V("mismatches", mismatches),
			goerr.V("dimension", dimension))
	}
	return nil
}
