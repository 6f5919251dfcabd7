package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults applied when a section is omitted from the file entirely.
const (
	defaultHTTPPort        = 8080
	defaultMetricsPort     = 9090
	defaultCacheMaxSize    = 10_000
	defaultVectorDimension = 1536
	defaultSessionMessages = 50
	defaultSessionMaxChars = 8_000
	defaultAlertSchedule   = "*/5 * * * *"
)

// Load reads path (resolving $include directives), applies environment
// overrides, and strictly decodes the result into a validated Config.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := ValidateVersion(cfg.Version); cfg.Version != 0 && err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override secrets and
// listener addresses without editing the checked-in config file, mirroring
// the teacher's NEXUS_* / DATABASE_URL override convention.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GROUNDEDCORE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GROUNDEDCORE_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("VECTOR_URL"); v != "" {
		cfg.VectorIndex.QdrantURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.Anthropic.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("INTERNAL_API_KEY"); v != "" {
		cfg.ToolClient.InternalAPIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = defaultHTTPPort
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = defaultMetricsPort
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.MaxSize == 0 {
		cfg.Cache.MaxSize = defaultCacheMaxSize
	}
	if cfg.VectorIndex.Backend == "" {
		cfg.VectorIndex.Backend = "memory"
	}
	if cfg.VectorIndex.Dimension == 0 {
		cfg.VectorIndex.Dimension = defaultVectorDimension
	}
	if cfg.SessionMemory.MaxMessages == 0 {
		cfg.SessionMemory.MaxMessages = defaultSessionMessages
	}
	if cfg.SessionMemory.MaxChars == 0 {
		cfg.SessionMemory.MaxChars = defaultSessionMaxChars
	}
	if cfg.Alerts.Schedule == "" {
		cfg.Alerts.Schedule = defaultAlertSchedule
	}
	if cfg.Observability.Logging.Level == "" {
		cfg.Observability.Logging.Level = "info"
	}
	if cfg.Observability.Logging.Format == "" {
		cfg.Observability.Logging.Format = "json"
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
}

// Validate checks cross-field invariants the YAML decoder can't express on
// its own: a configured DefaultProvider/FallbackChain must name a provider
// section that is actually present, and backend selectors must be one of
// the implementations this repo wires.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}

	known := map[string]bool{
		"anthropic": c.LLM.Anthropic.APIKey != "" || c.LLM.Anthropic.DefaultModel != "",
		"openai":    c.LLM.OpenAI.APIKey != "" || c.LLM.OpenAI.DefaultModel != "",
		"bedrock":   c.LLM.Bedrock.Region != "" || c.LLM.Bedrock.DefaultModel != "",
	}
	if c.LLM.DefaultProvider != "" && !known[c.LLM.DefaultProvider] {
		return fmt.Errorf("config: llm.default_provider %q has no matching provider section configured", c.LLM.DefaultProvider)
	}
	for _, id := range c.LLM.FallbackChain {
		if !known[id] {
			return fmt.Errorf("config: llm.fallback_chain entry %q has no matching provider section configured", id)
		}
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "", "memory":
	default:
		return fmt.Errorf("config: cache.backend %q is not supported", c.Cache.Backend)
	}

	switch strings.ToLower(c.VectorIndex.Backend) {
	case "", "memory":
	case "qdrant":
		if c.VectorIndex.QdrantURL == "" {
			return fmt.Errorf("config: vector_index.backend qdrant requires vector_index.qdrant_url")
		}
	default:
		return fmt.Errorf("config: vector_index.backend %q is not supported", c.VectorIndex.Backend)
	}

	if c.SessionMemory.MaxMessages < 0 {
		return fmt.Errorf("config: session_memory.max_messages must be >= 0")
	}
	if c.SessionMemory.MaxChars < 0 {
		return fmt.Errorf("config: session_memory.max_chars must be >= 0")
	}
	if c.Gate.MinCitationsForFact < 0 {
		return fmt.Errorf("config: gate.min_citations_for_fact must be >= 0")
	}

	return nil
}
