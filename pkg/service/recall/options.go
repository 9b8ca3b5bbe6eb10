package recall

import "github.com/advisim-lab/mnemosyne/pkg/domain/model"

// CaseOption is a functional option for CaseIndex.Retrieve
type CaseOption func(*caseConfig)

type caseConfig struct {
	taskType     *string
	conversation *model.ConversationContext
}

// WithTaskType restricts case retrieval to a task type
func WithTaskType(taskType string) CaseOption {
	return func(c *caseConfig) {
		c.taskType = &taskType
	}
}

// WithConversationContext enables conversation-aware boosting of case
// scores
func WithConversationContext(conversation *model.ConversationContext) CaseOption {
	return func(c *caseConfig) {
		c.conversation = conversation
	}
}

func buildCaseConfig(opts []CaseOption) *caseConfig {
	cfg := &caseConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// RuleOption is a functional option for RuleIndex.Retrieve
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	domain        *string
	minConfidence float64
}

// WithDomain restricts rule retrieval to a domain
func WithDomain(domain string) RuleOption {
	return func(c *ruleConfig) {
		c.domain = &domain
	}
}

// WithMinConfidence drops rules below the given confidence
func WithMinConfidence(minConfidence float64) RuleOption {
	return func(c *ruleConfig) {
		c.minConfidence = minConfidence
	}
}

func buildRuleConfig(opts []RuleOption) *ruleConfig {
	cfg := &ruleConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
