// Package config loads the groundedcore service configuration: a YAML (or
// JSON5) file, optionally split across includes, merged with environment
// variable expansion and strictly decoded into Config. Grounded on the
// teacher's internal/config loader/decoder pipeline (loader.go, kept
// verbatim — it is domain-agnostic map[string]any merge logic), with the
// Config struct itself narrowed from the teacher's 22-section chat-gateway
// schema down to the sections a Dialog Runtime deployment actually needs:
// server/storage, LLM providers, evidence retrieval, the evidence gate,
// alert scheduling, and observability.
package config

// Config is the root configuration for cmd/groundedcore.
type Config struct {
	Version int `yaml:"version"`

	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	VectorIndex   VectorIndexConfig   `yaml:"vector_index"`
	LLM           LLMConfig           `yaml:"llm"`
	Gate          GateConfig          `yaml:"gate"`
	Evidence      EvidenceConfig      `yaml:"evidence"`
	SessionMemory SessionMemoryConfig `yaml:"session_memory"`
	ToolClient    ToolClientConfig    `yaml:"tool_client"`
	Alerts        AlertsConfig        `yaml:"alerts"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CacheConfig configures the cache-aside layer (C1) in front of persona,
// prompt, and evidence reads.
type CacheConfig struct {
	// Backend selects the cache implementation. "memory" is the only
	// backend currently wired.
	Backend string `yaml:"backend"`
	MaxSize int    `yaml:"max_size"`
}

// VectorIndexConfig selects and configures the evidence vector index (C3).
type VectorIndexConfig struct {
	// Backend selects the vector index implementation: "memory" (flat
	// cosine scan, suitable for small corpora and tests) or "qdrant".
	Backend    string `yaml:"backend"`
	Dimension  int    `yaml:"dimension"`
	QdrantURL  string `yaml:"qdrant_url"`
	Collection string `yaml:"collection"`
}

// GateConfig overrides the Evidence Gate's default thresholds (spec.md
// §4.8). A zero MinCitationsForFact falls back to gate.MinCitationsForFact.
type GateConfig struct {
	MinCitationsForFact int `yaml:"min_citations_for_fact"`
}

// EvidenceConfig configures evidence ingestion chunking (C3).
type EvidenceConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MinChunkSize int `yaml:"min_chunk_size"`
}

// SessionMemoryConfig bounds the per-(tenant, site, session, npc) message
// log (C2).
type SessionMemoryConfig struct {
	MaxMessages int    `yaml:"max_messages"`
	MaxChars    int    `yaml:"max_chars"`
	TTL         string `yaml:"ttl"`
}

// ToolClientConfig carries the deployment-level shared secret for
// service-to-service tool calls (spec.md §6 X-Internal-API-Key). Per-tool
// timeout/retry/cache defaults live in internal/toolclient.Configs.
type ToolClientConfig struct {
	InternalAPIKey string `yaml:"internal_api_key"`
}

// AlertsConfig configures the alert Scheduler (C11).
type AlertsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}
