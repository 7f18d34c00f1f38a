// Package config assembles the assistant's runtime configuration.
//
// Values are layered: built-in defaults, then an optional YAML file
// (validated against an embedded JSON Schema), then environment variables.
// The CLI applies flag overrides on top of the result. Credentials are read
// from the environment only and never from the file.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/StackOverflowed512/AI-Secretary/common/environment"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/llm"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/memory"
)

//go:embed schema.json
var schemaJSON []byte

// Backends and embedders accepted by Validate.
const (
	BackendChromem = "chromem"
	BackendSQLite  = "sqlite"

	EmbedderOpenAI = "openai"
	EmbedderHash   = "hash"
)

// EnvConfigFile names the optional YAML configuration file.
const EnvConfigFile = "SEVASAKHA_CONFIG"

// Config is the complete runtime configuration. It is built once at start-up
// and passed to each component; nothing reads it from package state.
type Config struct {
	DatabasePath string          `yaml:"database_path"`
	HTTPAddr     string          `yaml:"http_addr"`
	Log          LogConfig       `yaml:"log"`
	LLM          LLMConfig       `yaml:"llm"`
	Memory       MemoryConfig    `yaml:"memory"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	Matrix       MatrixConfig    `yaml:"matrix"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LLMConfig configures the chat and embedding endpoints.
type LLMConfig struct {
	APIKey     string        `yaml:"-"`
	BaseURL    string        `yaml:"base_url"`
	ChatURL    string        `yaml:"chat_url"`
	ChatModel  string        `yaml:"chat_model"`
	EmbedModel string        `yaml:"embed_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// MemoryConfig configures chunking, embedding and the vector backend.
type MemoryConfig struct {
	Backend      string `yaml:"backend"`
	Embedder     string `yaml:"embedder"`
	ChromaPath   string `yaml:"chroma_path"`
	Collection   string `yaml:"collection"`
	Compress     bool   `yaml:"compress"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	CacheBytes   int64  `yaml:"cache_bytes"`
}

// RateLimitConfig bounds question traffic per caller.
type RateLimitConfig struct {
	// AskPerMinute is the number of questions one caller may ask per
	// minute. Zero disables the limit.
	AskPerMinute int `yaml:"ask_per_minute"`
}

// MatrixConfig enables the optional Matrix gateway.
type MatrixConfig struct {
	Homeserver    string   `yaml:"homeserver"`
	UserID        string   `yaml:"user_id"`
	AccessToken   string   `yaml:"-"`
	Rooms         []string `yaml:"rooms"`
	IndexMessages bool     `yaml:"index_messages"`
}

// Enabled reports whether enough is configured to connect to Matrix.
func (m MatrixConfig) Enabled() bool {
	return m.Homeserver != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DatabasePath: "sevasakha.db",
		HTTPAddr:     ":8080",
		Log:          LogConfig{Level: "info", Format: "text"},
		LLM: LLMConfig{
			BaseURL:    llm.DefaultBaseURL,
			ChatModel:  llm.DefaultChatModel,
			EmbedModel: "mistral-embed",
			Timeout:    llm.DefaultTimeout,
		},
		Memory: MemoryConfig{
			Backend:      BackendChromem,
			Embedder:     EmbedderOpenAI,
			ChromaPath:   "chroma_store",
			Collection:   memory.DefaultCollection,
			ChunkSize:    memory.DefaultChunkSize,
			ChunkOverlap: memory.DefaultChunkOverlap,
			TopK:         memory.DefaultTopK,
			CacheBytes:   memory.DefaultEmbeddingCacheBytes,
		},
		RateLimit: RateLimitConfig{AskPerMinute: 20},
	}
}

// Load builds the configuration from defaults, the file named by
// SEVASAKHA_CONFIG (when set) and the environment, then validates it.
func Load() (*Config, error) {
	cfg := Default()
	if path, ok := environment.String(EnvConfigFile); ok {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. The file is checked
// against the embedded schema before it is decoded; an invalid file leaves
// c untouched.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.ApplyYAML(data)
}

// ApplyYAML validates and overlays a raw YAML document.
func (c *Config) ApplyYAML(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	if err := validateDocument(doc); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}

	next := *c
	next.Matrix.Rooms = append([]string(nil), c.Matrix.Rooms...)
	if err := yaml.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("decode config yaml: %w", err)
	}
	*c = next
	return nil
}

// validateDocument checks a decoded YAML tree against schema.json. The tree
// is round-tripped through encoding/json so the validator sees plain JSON
// values.
func validateDocument(doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config must be a mapping of string keys: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("sevasakha.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("load config schema: %w", err)
	}
	schema, err := compiler.Compile("sevasakha.schema.json")
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	return schema.Validate(v)
}

// ApplyEnv overlays environment variables onto c. Unset or blank variables
// keep the current value.
func (c *Config) ApplyEnv() {
	c.DatabasePath = environment.StringOr("DATABASE_PATH", c.DatabasePath)
	c.HTTPAddr = environment.StringOr("HTTP_ADDR", c.HTTPAddr)
	c.Log.Level = strings.ToLower(environment.StringOr("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(environment.StringOr("LOG_FORMAT", c.Log.Format))

	c.LLM.APIKey = environment.StringOr("MISTRAL_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = environment.StringOr("MISTRAL_BASE_URL", c.LLM.BaseURL)
	c.LLM.ChatURL = environment.StringOr("MISTRAL_API_URL", c.LLM.ChatURL)
	c.LLM.ChatModel = environment.StringOr("CHAT_MODEL", c.LLM.ChatModel)
	c.LLM.EmbedModel = environment.StringOr("EMBED_MODEL", c.LLM.EmbedModel)
	c.LLM.Timeout = environment.DurationOr("HTTP_TIMEOUT", c.LLM.Timeout)

	c.Memory.Backend = strings.ToLower(environment.StringOr("VECTOR_BACKEND", c.Memory.Backend))
	c.Memory.Embedder = strings.ToLower(environment.StringOr("EMBEDDER", c.Memory.Embedder))
	c.Memory.ChromaPath = environment.StringOr("CHROMA_PATH", c.Memory.ChromaPath)
	c.Memory.Collection = environment.StringOr("COLLECTION_NAME", c.Memory.Collection)
	c.Memory.ChunkSize = environment.IntOr("CHUNK_SIZE", c.Memory.ChunkSize)
	c.Memory.ChunkOverlap = environment.IntOr("CHUNK_OVERLAP", c.Memory.ChunkOverlap)
	c.Memory.TopK = environment.IntOr("QA_TOP_K", c.Memory.TopK)

	c.RateLimit.AskPerMinute = environment.IntOr("ASK_RATE_LIMIT", c.RateLimit.AskPerMinute)

	c.Matrix.Homeserver = environment.StringOr("MATRIX_HOMESERVER", c.Matrix.Homeserver)
	c.Matrix.UserID = environment.StringOr("MATRIX_USER_ID", c.Matrix.UserID)
	c.Matrix.AccessToken = environment.StringOr("MATRIX_ACCESS_TOKEN", c.Matrix.AccessToken)
	c.Matrix.Rooms = environment.StringSliceOr("MATRIX_ROOMS", c.Matrix.Rooms)
	c.Matrix.IndexMessages = environment.BoolOr("MATRIX_INDEX_MESSAGES", c.Matrix.IndexMessages)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path must not be empty"))
	}
	if err := memory.ValidateChunking(c.Memory.ChunkSize, c.Memory.ChunkOverlap); err != nil {
		errs = append(errs, err)
	}
	if c.Memory.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top_k must be positive, got %d", c.Memory.TopK))
	}
	switch c.Memory.Backend {
	case BackendChromem, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown vector backend %q (want %s or %s)", c.Memory.Backend, BackendChromem, BackendSQLite))
	}
	switch c.Memory.Embedder {
	case EmbedderOpenAI, EmbedderHash:
	default:
		errs = append(errs, fmt.Errorf("unknown embedder %q (want %s or %s)", c.Memory.Embedder, EmbedderOpenAI, EmbedderHash))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm timeout must be positive, got %s", c.LLM.Timeout))
	}
	if c.RateLimit.AskPerMinute < 0 {
		errs = append(errs, fmt.Errorf("ask_per_minute must not be negative, got %d", c.RateLimit.AskPerMinute))
	}
	if c.Matrix.Enabled() {
		if c.Matrix.UserID == "" {
			errs = append(errs, errors.New("MATRIX_USER_ID is required when MATRIX_HOMESERVER is set"))
		}
		if c.Matrix.AccessToken == "" {
			errs = append(errs, errors.New("MATRIX_ACCESS_TOKEN is required when MATRIX_HOMESERVER is set"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
