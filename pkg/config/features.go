package config

// FeatureFlags gates the optional pipeline stages. Each flag has a YAML
// default and an environment override; the override only takes effect when
// the variable is exactly "true" or "false" (case-sensitive). Any other
// value leaves the configured default in place.
type FeatureFlags struct {
	ModuleRouter      bool `yaml:"module_router" env-default:"true"`
	BM25Search        bool `yaml:"bm25_search" env-default:"true"`
	SchemaLinker      bool `yaml:"schema_linker" env-default:"true"`
	Glosses           bool `yaml:"glosses" env-default:"true"`
	JoinPlanner       bool `yaml:"join_planner" env-default:"true"`
	Reranker          bool `yaml:"reranker" env-default:"true"`
	ValueVerification bool `yaml:"value_verification" env-default:"false"`
}

// flagEnvNames maps each flag to its environment variable.
var flagEnvNames = []struct {
	env   string
	field func(*FeatureFlags) *bool
}{
	{"FEATURE_MODULE_ROUTER", func(f *FeatureFlags) *bool { return &f.ModuleRouter }},
	{"FEATURE_BM25_SEARCH", func(f *FeatureFlags) *bool { return &f.BM25Search }},
	{"FEATURE_SCHEMA_LINKER", func(f *FeatureFlags) *bool { return &f.SchemaLinker }},
	{"FEATURE_GLOSSES", func(f *FeatureFlags) *bool { return &f.Glosses }},
	{"FEATURE_JOIN_PLANNER", func(f *FeatureFlags) *bool { return &f.JoinPlanner }},
	{"FEATURE_RERANKER", func(f *FeatureFlags) *bool { return &f.Reranker }},
	{"FEATURE_VALUE_VERIFICATION", func(f *FeatureFlags) *bool { return &f.ValueVerification }},
}

// Resolve applies environment overrides on top of the configured defaults.
// The lookup function is injectable for tests.
func (f *FeatureFlags) Resolve(lookup func(string) string) {
	for _, flag := range flagEnvNames {
		switch lookup(flag.env) {
		case "true":
			*flag.field(f) = true
		case "false":
			*flag.field(f) = false
		}
	}
}
