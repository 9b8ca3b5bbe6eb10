package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/advisim-lab/mnemosyne/pkg/agent/tool/core"
	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/service/embedding"
	"github.com/advisim-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

//go:embed prompt/assist_system.md
var assistSystemTmpl string

var assistSystemPrompt = template.Must(template.New("assist_system").Parse(assistSystemTmpl))

// AssistUseCase answers one-shot operator questions with an agent that
// can call the retrieval tools.
type AssistUseCase struct {
	repo      interfaces.Repository
	llmClient gollem.LLMClient
	embedder  embedding.Service
	weights   model.RetrievalWeights
	dimension int
}

type assistPromptData struct {
	Dimension int
	Weights   model.RetrievalWeights
}

// Ask runs the agent on question until it produces a final answer and
// returns the answer text.
func (x *AssistUseCase) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", goerr.Wrap(ErrEmptyQuestion, "assist needs a question to answer")
	}

	var buf bytes.Buffer
	if err := assistSystemPrompt.Execute(&buf, assistPromptData{
		Dimension: x.dimension,
		Weights:   x.weights,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render assist system prompt")
	}

	logger := logging.From(ctx)
	agent := gollem.New(x.llmClient,
		gollem.WithSystemPrompt(buf.String()),
		gollem.WithTools(core.New(x.repo, x.embedder, x.weights)...),
		gollem.WithToolMiddleware(
			func(next gollem.ToolHandler) gollem.ToolHandler {
				return func(ctx context.Context, req *gollem.ToolExecRequest) (*gollem.ToolExecResponse, error) {
					logger.Debug("assist tool call", "tool", req.Tool.Name)
					resp, err := next(ctx, req)
					if resp != nil && resp.Error != nil {
						logger.Warn("assist tool failed", "tool", req.Tool.Name, "error", resp.Error.Error())
					}
					return resp, err
				}
			},
		),
	)

	resp, err := agent.Execute(ctx, gollem.Text(question))
	if err != nil {
		return "", goerr.Wrap(err, "failed to execute assist agent")
	}

	return strings.Join(resp.Texts, "\n"), nil
}
