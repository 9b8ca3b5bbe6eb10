package cli

import (
	"context"
	"fmt"

	"github.com/advisim-lab/mnemosyne/pkg/agent/tool"
	"github.com/advisim-lab/mnemosyne/pkg/cli/config"
	"github.com/advisim-lab/mnemosyne/pkg/usecase"
	"github.com/advisim-lab/mnemosyne/pkg/utils/logging"
	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

var progressColor = color.New(color.FgYellow)

func cmdAssist() *cli.Command {
	var question string
	var profileID string
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "question",
			Usage:       "Question for the assist agent (required)",
			Required:    true,
			Destination: &question,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "Retrieval profile ID",
			Sources:     cli.EnvVars("MNEMOSYNE_PROFILE"),
			Destination: &profileID,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:    "assist",
		Aliases: []string{"a"},
		Usage:   "Ask the assist agent a question over the stored records",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := appCfg.Configure(); err != nil {
				return goerr.Wrap(err, "failed to load profile configuration")
			}
			profile, err := appCfg.Profile(profileID)
			if err != nil {
				return err
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Gemini client")
			}
			if llmClient == nil {
				return goerr.New("gemini-project is required for assist")
			}

			uc, err := usecase.New(repo,
				usecase.WithLLMClient(llmClient),
				usecase.WithEmbeddingDimension(repoCfg.Dimension()),
				usecase.WithDefaultWeights(profile.Weights()),
			)
			if err != nil {
				return err
			}

			// Tool progress lines go straight to the terminal
			ctx = tool.WithNotify(ctx, func(ctx context.Context, message string) {
				progressColor.Printf("* %s\n", message)
			})

			answer, err := uc.Assist.Ask(ctx, question)
			if err != nil {
				return goerr.Wrap(err, "assist failed")
			}

			fmt.Println(answer)
			return nil
		},
	}
}
