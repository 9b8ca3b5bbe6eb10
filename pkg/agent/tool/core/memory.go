package core

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/advisim-lab/mnemosyne/pkg/agent/tool"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
	"github.com/advisim-lab/mnemosyne/pkg/service/embedding"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
)

// addMemoryTool records a new memory with an auto-generated embedding
type addMemoryTool struct {
	memories *recall.MemoryIndex
	embedder embedding.Service
}

func (t *addMemoryTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "core__add_memory",
		Description: "Record a new consultation memory. Use observations for facts noticed during the session, reflections for conclusions drawn afterwards, and plans for follow-up intentions. An embedding is generated from the description for similarity search.",
		Parameters: map[string]*gollem.Parameter{
			"description": {
				Type:        gollem.TypeString,
				Description: "The observation, reflection, or plan to remember",
				Required:    true,
			},
			"kind": {
				Type:        gollem.TypeString,
				Description: "Memory kind: observation, reflection, or plan",
				Required:    true,
			},
			"importance": {
				Type:        gollem.TypeNumber,
				Description: "Importance within [0, 1] (default: 0.5)",
				Required:    false,
			},
		},
	}
}

func (t *addMemoryTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	description, _ := args["description"].(string)
	if description == "" {
		return nil, fmt.Errorf("description is required")
	}

	kindStr, _ := args["kind"].(string)
	kind, err := types.ParseMemoryKind(kindStr)
	if err != nil {
		return nil, err
	}

	importance := 0.5
	if v, err := extractFloat64(args, "importance"); err == nil {
		importance = v
	}

	tool.Update(ctx, "Recording memory...")

	queryEmbedding, err := t.embedder.Embed(ctx, description)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding for memory")
	}

	mem := &model.Memory{
		ID:          model.NewMemoryID(),
		Description: description,
		Timestamp:   time.Now(),
		Importance:  importance,
		Kind:        kind,
		Embedding:   queryEmbedding,
	}

	if err := t.memories.Add(ctx, mem); err != nil {
		return nil, goerr.Wrap(err, "failed to add memory",
			goerr.V("memoryID", mem.ID),
		)
	}

	return map[string]any{
		"id":         string(mem.ID),
		"kind":       kind.String(),
		"importance": importance,
	}, nil
}

// listRecentMemoriesTool lists memories formed within a recent window
// without advancing their last-accessed time
type listRecentMemoriesTool struct {
	memories *recall.MemoryIndex
}

func (t *listRecentMemoriesTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "core__list_recent_memories",
		Description: "List memories formed within the last N hours, newest first. This is a browsing operation and does not affect retrieval scoring.",
		Parameters: map[string]*gollem.Parameter{
			"hours": {
				Type:        gollem.TypeInteger,
				Description: "Window size in hours (default: 24)",
				Required:    false,
			},
			"limit": {
				Type:        gollem.TypeInteger,
				Description: "Maximum number of results to return (default: 20)",
				Required:    false,
			},
		},
	}
}

func (t *listRecentMemoriesTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	hours := int64(24)
	if v, err := extractInt64(args, "hours"); err == nil && v > 0 {
		hours = v
	}
	limit := 20
	if v, err := extractInt64(args, "limit"); err == nil && v > 0 {
		limit = int(v)
	}

	tool.Update(ctx, "Listing recent memories...")

	memories, err := t.memories.RetrieveRecent(ctx, time.Now(), time.Duration(hours)*time.Hour, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list recent memories")
	}

	items := make([]map[string]any, len(memories))
	for i, m := range memories {
		items[i] = map[string]any{
			"id":          string(m.ID),
			"description": m.Description,
			"kind":        m.Kind.String(),
			"importance":  m.Importance,
			"timestamp":   m.Timestamp.Format(time.RFC3339),
		}
	}
	return map[string]any{"memories": items, "count": len(items)}, nil
}
