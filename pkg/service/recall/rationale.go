package recall

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

// RetrievalFailures flags which sections failed while assembling a
// context bundle. Failed sections are reported at the end of the
// rationale instead of silently vanishing.
type RetrievalFailures struct {
	Memories bool
	Cases    bool
	Rules    bool
}

// Rationale renders the deterministic one-line explanation of a context
// bundle. It is built only from the retrieval results themselves so the
// same results always produce the same string.
func Rationale(memories []*model.MemoryResult, cases []*model.CaseResult, rules []*model.RuleResult, failed RetrievalFailures) string {
	var parts []string

	if len(memories) > 0 {
		counts := map[types.MemoryKind]int{}
		for _, m := range memories {
			counts[m.Memory.Kind]++
		}
		var kinds []string
		for _, kind := range types.AllMemoryKinds() {
			if n := counts[kind]; n > 0 {
				kinds = append(kinds, fmt.Sprintf("%s=%d", kind, n))
			}
		}
		parts = append(parts, fmt.Sprintf("%d memories (%s)", len(memories), strings.Join(kinds, ", ")))
	}

	if len(cases) > 0 {
		tags := map[string]struct{}{}
		for _, c := range cases {
			if c.Case.TaskType != "" {
				tags[c.Case.TaskType] = struct{}{}
			}
		}
		taskTypes := slices.Sorted(maps.Keys(tags))
		parts = append(parts, fmt.Sprintf("%d cases covering task types [%s]", len(cases), strings.Join(taskTypes, ", ")))
	}

	if len(rules) > 0 {
		var total float64
		for _, r := range rules {
			total += r.Rule.Confidence
		}
		parts = append(parts, fmt.Sprintf("%d rules (avg confidence %.2f)", len(rules), total/float64(len(rules))))
	}

	var failures []string
	if failed.Memories {
		failures = append(failures, "memory retrieval unavailable")
	}
	if failed.Cases {
		failures = append(failures, "case retrieval unavailable")
	}
	if failed.Rules {
		failures = append(failures, "rule retrieval unavailable")
	}

	if len(parts) == 0 {
		if len(failures) == 0 {
			return "No relevant context found for this consultation."
		}
		return "No context retrieved: " + strings.Join(failures, "; ") + "."
	}

	return "Retrieved " + strings.Join(append(parts, failures...), "; ") + "."
}
