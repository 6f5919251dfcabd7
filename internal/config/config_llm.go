package config

// LLMConfig selects and configures the LLM providers the Dialog Runtime
// (C9) dispatches generation calls to (C4). Grounded on the teacher's
// internal/config LLMConfig, narrowed from the teacher's arbitrary
// provider map plus routing/auto-discover machinery to the three
// providers internal/llmprovider actually implements, tried in
// FallbackChain order by llmprovider.Dispatcher.
type LLMConfig struct {
	DefaultProvider string          `yaml:"default_provider"`
	FallbackChain   []string        `yaml:"fallback_chain"`
	Anthropic       AnthropicConfig `yaml:"anthropic"`
	OpenAI          OpenAIConfig    `yaml:"openai"`
	Bedrock         BedrockConfig   `yaml:"bedrock"`
}

// AnthropicConfig mirrors llmprovider.AnthropicConfig for YAML decoding.
type AnthropicConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// OpenAIConfig mirrors llmprovider.OpenAIConfig for YAML decoding.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// BedrockConfig mirrors llmprovider.BedrockConfig for YAML decoding.
type BedrockConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	DefaultModel    string `yaml:"default_model"`
}
