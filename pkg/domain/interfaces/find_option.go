package interfaces

// FindCasesOption is a functional option for filtering case similarity search
type FindCasesOption func(*findCasesConfig)

type findCasesConfig struct {
	taskType *string
}

// WithTaskType filters cases by task type
func WithTaskType(taskType string) FindCasesOption {
	return func(c *findCasesConfig) {
		c.taskType = &taskType
	}
}

// BuildFindCasesConfig builds a findCasesConfig from options
func BuildFindCasesConfig(opts ...FindCasesOption) *findCasesConfig {
	cfg := &findCasesConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// TaskType returns the task type filter value, or nil if not set
func (c *findCasesConfig) TaskType() *string {
	return c.taskType
}

// FindRulesOption is a functional option for filtering rule similarity search
type FindRulesOption func(*findRulesConfig)

type findRulesConfig struct {
	domain *string
}

// WithDomain filters rules by domain
func WithDomain(domain string) FindRulesOption {
	return func(c *findRulesConfig) {
		c.domain = &domain
	}
}

// BuildFindRulesConfig builds a findRulesConfig from options
func BuildFindRulesConfig(opts ...FindRulesOption) *findRulesConfig {
	cfg := &findRulesConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Domain returns the domain filter value, or nil if not set
func (c *findRulesConfig) Domain() *string {
	return c.domain
}
