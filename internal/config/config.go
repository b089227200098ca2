// Package config loads the immutable process configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Config holds all configuration values. It is loaded once at startup and
// passed to components at construction; nothing mutates it afterwards.
type Config struct {
	// SurrealDB connection (part memory store)
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Embeddings
	EmbedProvider  Provider `yaml:"embed_provider"`
	EmbedModel     string   `yaml:"embed_model"`
	EmbedDimension int      `yaml:"embed_dimension"`
	OllamaHost     string   `yaml:"ollama_host"`

	// Reasoning engine (command routing and labeling)
	LLMProvider      Provider `yaml:"llm_provider"`
	LLMModel         string   `yaml:"llm_model"`
	AnthropicAPIKey  string   `yaml:"anthropic_api_key"`
	AnthropicBaseURL string   `yaml:"anthropic_base_url"`
	OpenAIAPIKey     string   `yaml:"openai_api_key"`

	// CAD bridge
	CADBridgeURL string `yaml:"cad_bridge_url"`
	CADVersion   string `yaml:"cad_version"`

	// Speech-to-text (whisper.cpp server)
	WhisperURL string `yaml:"whisper_url"`

	// Context retrieval
	ContextTopK int `yaml:"context_top_k"`

	// RequestTimeout bounds every embedding and reasoning-engine call.
	// No collaborator call is allowed to block indefinitely.
	RequestTimeout time.Duration `yaml:"-"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables with local-first
// defaults: local vector store, local Ollama with nomic-embed-text,
// Anthropic routing.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "partvoice"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "memory"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		EmbedProvider:  Provider(getEnv("PARTVOICE_EMBED_PROVIDER", string(ProviderOllama))),
		EmbedModel:     getEnv("PARTVOICE_EMBED_MODEL", "nomic-embed-text"),
		EmbedDimension: getEnvInt("PARTVOICE_EMBED_DIMENSION", 768),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),

		LLMProvider:      Provider(getEnv("PARTVOICE_LLM_PROVIDER", string(ProviderAnthropic))),
		LLMModel:         getEnv("PARTVOICE_LLM_MODEL", "claude-sonnet-4-20250514"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),

		CADBridgeURL: getEnv("PARTVOICE_CAD_BRIDGE_URL", "http://localhost:7070"),
		CADVersion:   getEnv("PARTVOICE_CAD_VERSION", "2025"),

		WhisperURL: getEnv("PARTVOICE_WHISPER_URL", "http://localhost:8080"),

		ContextTopK: getEnvInt("PARTVOICE_CONTEXT_TOP_K", 5),

		RequestTimeout: getEnvDuration("PARTVOICE_REQUEST_TIMEOUT", 2*time.Minute),

		LogFile:  getEnv("PARTVOICE_LOG_FILE", "/tmp/partvoice.log"),
		LogLevel: parseLogLevel(getEnv("PARTVOICE_LOG_LEVEL", "INFO")),
	}
}

// LoadFile overlays values from a YAML config file onto an env-loaded
// Config. File values win over env defaults; env vars that were explicitly
// set still win over the file for empty secret fields (API keys).
func LoadFile(path string) (Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	merge(&cfg, overlay)
	return cfg, nil
}

// merge copies non-zero overlay fields into dst.
func merge(dst *Config, overlay Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&dst.SurrealDBURL, overlay.SurrealDBURL)
	set(&dst.SurrealDBNamespace, overlay.SurrealDBNamespace)
	set(&dst.SurrealDBDatabase, overlay.SurrealDBDatabase)
	set(&dst.SurrealDBUser, overlay.SurrealDBUser)
	set(&dst.SurrealDBPass, overlay.SurrealDBPass)
	set(&dst.SurrealDBAuthLevel, overlay.SurrealDBAuthLevel)
	set((*string)(&dst.EmbedProvider), string(overlay.EmbedProvider))
	set(&dst.EmbedModel, overlay.EmbedModel)
	set(&dst.OllamaHost, overlay.OllamaHost)
	set((*string)(&dst.LLMProvider), string(overlay.LLMProvider))
	set(&dst.LLMModel, overlay.LLMModel)
	set(&dst.AnthropicAPIKey, overlay.AnthropicAPIKey)
	set(&dst.AnthropicBaseURL, overlay.AnthropicBaseURL)
	set(&dst.OpenAIAPIKey, overlay.OpenAIAPIKey)
	set(&dst.CADBridgeURL, overlay.CADBridgeURL)
	set(&dst.CADVersion, overlay.CADVersion)
	set(&dst.WhisperURL, overlay.WhisperURL)
	set(&dst.LogFile, overlay.LogFile)
	if overlay.EmbedDimension > 0 {
		dst.EmbedDimension = overlay.EmbedDimension
	}
	if overlay.ContextTopK > 0 {
		dst.ContextTopK = overlay.ContextTopK
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
