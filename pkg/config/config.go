package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the engine. Values come from
// config.yaml with environment variable overrides; secrets come from the
// environment only.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3780"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Database  DatabaseConfig  `yaml:"database"`
	Sidecar   SidecarConfig   `yaml:"sidecar"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Planner   PlannerConfig   `yaml:"planner"`
	Validator ValidatorConfig `yaml:"validator"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Features  FeatureFlags    `yaml:"features"`
}

// DatabaseConfig holds PostgreSQL connection settings for the store that
// backs the rag.* contract tables.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"groundline"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"erp"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// SidecarConfig holds the generation sidecar endpoint and timeouts.
type SidecarConfig struct {
	BaseURL          string `yaml:"base_url" env:"SIDECAR_BASE_URL" env-default:"http://localhost:8090"`
	EmbedModel       string `yaml:"embed_model" env:"SIDECAR_EMBED_MODEL" env-default:"nomic-embed-text"`
	EmbedTimeoutSec  int    `yaml:"embed_timeout_sec" env:"SIDECAR_EMBED_TIMEOUT_SEC" env-default:"30"`
	GenerateTimeout  int    `yaml:"generate_timeout_sec" env:"SIDECAR_GENERATE_TIMEOUT_SEC" env-default:"120"`
	BreakerThreshold int    `yaml:"breaker_threshold" env:"SIDECAR_BREAKER_THRESHOLD" env-default:"5"`
	BreakerResetSec  int    `yaml:"breaker_reset_sec" env:"SIDECAR_BREAKER_RESET_SEC" env-default:"30"`
}

// RetrievalConfig holds the knobs of the hybrid retriever and FK expander.
type RetrievalConfig struct {
	TopK             int     `yaml:"top_k" env:"RETRIEVAL_TOP_K" env-default:"40"`
	Threshold        float64 `yaml:"threshold" env:"RETRIEVAL_THRESHOLD" env-default:"0.25"`
	FKExpansionLimit int     `yaml:"fk_expansion_limit" env:"RETRIEVAL_FK_EXPANSION_LIMIT" env-default:"10"`
	HubFKCap         int     `yaml:"hub_fk_cap" env:"RETRIEVAL_HUB_FK_CAP" env-default:"6"`
	MaxTables        int     `yaml:"max_tables" env:"RETRIEVAL_MAX_TABLES" env-default:"40"`
	MaxModules       int     `yaml:"max_modules" env:"RETRIEVAL_MAX_MODULES" env-default:"3"`
	QueryTimeoutSec  int     `yaml:"query_timeout_sec" env:"RETRIEVAL_QUERY_TIMEOUT_SEC" env-default:"5"`
}

// PlannerConfig holds join-planner knobs.
type PlannerConfig struct {
	TopK        int `yaml:"top_k" env:"PLANNER_TOP_K" env-default:"3"`
	DefaultCap  int `yaml:"default_cap" env:"PLANNER_DEFAULT_CAP" env-default:"6"`
	RelevantCap int `yaml:"relevant_cap" env:"PLANNER_RELEVANT_CAP" env-default:"12"`
}

// ValidatorConfig holds the static SQL gate settings.
type ValidatorConfig struct {
	MaxLimit     int  `yaml:"max_limit" env:"VALIDATOR_MAX_LIMIT" env-default:"1000"`
	MaxJoins     int  `yaml:"max_joins" env:"VALIDATOR_MAX_JOINS" env-default:"5"`
	RequireLimit bool `yaml:"require_limit" env:"VALIDATOR_REQUIRE_LIMIT" env-default:"true"`
}

// RerankerConfig holds the additive bonus weights.
type RerankerConfig struct {
	SchemaAdherenceWeight   float64 `yaml:"schema_adherence_weight" env:"RERANK_SCHEMA_ADHERENCE_WEIGHT" env-default:"15"`
	JoinMatchWeight         float64 `yaml:"join_match_weight" env:"RERANK_JOIN_MATCH_WEIGHT" env-default:"20"`
	ResultShapeWeight       float64 `yaml:"result_shape_weight" env:"RERANK_RESULT_SHAPE_WEIGHT" env-default:"10"`
	ValueVerificationWeight float64 `yaml:"value_verification_weight" env:"RERANK_VALUE_VERIFICATION_WEIGHT" env-default:"10"`
}

// Load reads configuration from config.yaml with environment overrides and
// resolves feature flags. The version string is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}
	cfg.Features.Resolve(os.Getenv)
	return cfg, nil
}
