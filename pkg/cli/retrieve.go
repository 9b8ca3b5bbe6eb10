package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/advisim-lab/mnemosyne/pkg/cli/config"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
	"github.com/advisim-lab/mnemosyne/pkg/usecase"
	"github.com/advisim-lab/mnemosyne/pkg/utils/logging"
	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

var (
	sectionColor = color.New(color.FgCyan, color.Bold)
	recordColor  = color.New(color.FgHiWhite, color.Bold)
	scoreColor   = color.New(color.Faint)
)

func cmdRetrieve() *cli.Command {
	var query string
	var topK int
	var profileID string
	var taskType string
	var domain string
	var minConfidence float64
	var phase string
	var emotionalState string
	var literacyLevel string
	var fcaRequirements string
	var jsonOutput bool
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Consultation query text (required)",
			Required:    true,
			Destination: &query,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Results per section (overrides the profile value)",
			Destination: &topK,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "Retrieval profile ID",
			Sources:     cli.EnvVars("MNEMOSYNE_PROFILE"),
			Destination: &profileID,
		},
		&cli.StringFlag{
			Name:        "task-type",
			Usage:       "Filter cases by task type",
			Destination: &taskType,
		},
		&cli.StringFlag{
			Name:        "domain",
			Usage:       "Filter rules by domain",
			Destination: &domain,
		},
		&cli.FloatFlag{
			Name:        "min-confidence",
			Usage:       "Minimum rule confidence (overrides the profile value)",
			Destination: &minConfidence,
		},
		&cli.StringFlag{
			Name:        "phase",
			Usage:       "Current consultation phase (e.g. fact_finding)",
			Destination: &phase,
		},
		&cli.StringFlag{
			Name:        "emotional-state",
			Usage:       "Client emotional state for the conversation context",
			Destination: &emotionalState,
		},
		&cli.StringFlag{
			Name:        "literacy-level",
			Usage:       "Client financial literacy level for the conversation context",
			Destination: &literacyLevel,
		},
		&cli.StringFlag{
			Name:        "fca-requirements",
			Usage:       "Regulatory requirement text passed through into the bundle",
			Destination: &fcaRequirements,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Emit the bundle as JSON instead of formatted text",
			Destination: &jsonOutput,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:    "retrieve",
		Aliases: []string{"r"},
		Usage:   "Assemble a context bundle for a consultation query",
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
				return goerr.New("gemini-project is required to embed the query text")
			}

			uc, err := usecase.New(repo,
				usecase.WithLLMClient(llmClient),
				usecase.WithEmbeddingDimension(repoCfg.Dimension()),
				usecase.WithDefaultWeights(profile.Weights()),
			)
			if err != nil {
				return err
			}

			input := usecase.AssembleInput{
				TopKEach:        profile.TopK,
				TaskType:        taskType,
				Domain:          domain,
				MinConfidence:   profile.MinConfidence,
				FCARequirements: fcaRequirements,
			}
			if topK > 0 {
				input.TopKEach = topK
			}
			if minConfidence > 0 {
				input.MinConfidence = minConfidence
			}
			if phase != "" || emotionalState != "" || literacyLevel != "" {
				input.Conversation = &model.ConversationContext{
					Phase:          types.ConsultationPhase(phase),
					EmotionalState: emotionalState,
					LiteracyLevel:  literacyLevel,
				}
			}

			bundle, err := uc.Context.AssembleFromText(ctx, query, input)
			if err != nil {
				return goerr.Wrap(err, "failed to assemble context bundle")
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(bundle); err != nil {
					return goerr.Wrap(err, "failed to encode bundle as JSON")
				}
				return nil
			}

			printBundle(os.Stdout, bundle)
			return nil
		},
	}
}

func printBundle(w io.Writer, bundle *model.ContextBundle) {
	sectionColor.Fprintf(w, "Memories (%d)\n", len(bundle.Memories))
	for _, m := range bundle.Memories {
		fmt.Fprintf(w, "  %s  [%s] %s\n", recordColor.Sprint(m.Memory.ID), m.Memory.Kind, m.Memory.Description)
		scoreColor.Fprintf(w, "      score=%.3f recency=%.3f relevance=%.3f importance=%.2f\n",
			m.Score, m.Recency, m.Relevance, m.Memory.Importance)
	}

	sectionColor.Fprintf(w, "Cases (%d)\n", len(bundle.Cases))
	for _, c := range bundle.Cases {
		fmt.Fprintf(w, "  %s  [%s] %s\n", recordColor.Sprint(c.Case.ID), c.Case.TaskType, c.Case.Situation)
		fmt.Fprintf(w, "      %s\n", c.Case.Guidance)
		scoreColor.Fprintf(w, "      score=%.3f similarity=%.3f boost=%.2f\n", c.FinalScore, c.Similarity, c.Boost)
	}

	sectionColor.Fprintf(w, "Rules (%d)\n", len(bundle.Rules))
	for _, r := range bundle.Rules {
		fmt.Fprintf(w, "  %s  [%s] %s\n", recordColor.Sprint(r.Rule.ID), r.Rule.Domain, r.Rule.Principle)
		scoreColor.Fprintf(w, "      score=%.3f similarity=%.3f confidence=%.2f\n",
			r.WeightedScore, r.Similarity, r.Rule.Confidence)
	}

	if bundle.FCARequirements != "" {
		sectionColor.Fprintln(w, "FCA Requirements")
		fmt.Fprintf(w, "  %s\n", bundle.FCARequirements)
	}

	sectionColor.Fprintln(w, "Rationale")
	fmt.Fprintf(w, "  %s\n", bundle.Rationale)
}
