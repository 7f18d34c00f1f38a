package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/memory"
)

// clearEnv blanks every variable ApplyEnv reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvConfigFile, "DATABASE_PATH", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT",
		"MISTRAL_API_KEY", "MISTRAL_BASE_URL", "MISTRAL_API_URL", "CHAT_MODEL", "EMBED_MODEL", "HTTP_TIMEOUT",
		"VECTOR_BACKEND", "EMBEDDER", "CHROMA_PATH", "COLLECTION_NAME", "CHUNK_SIZE", "CHUNK_OVERLAP", "QA_TOP_K",
		"ASK_RATE_LIMIT", "MATRIX_HOMESERVER", "MATRIX_USER_ID", "MATRIX_ACCESS_TOKEN", "MATRIX_ROOMS", "MATRIX_INDEX_MESSAGES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Memory.Backend != BackendChromem || cfg.Memory.ChromaPath != "chroma_store" {
		t.Errorf("unexpected backend defaults %+v", cfg.Memory)
	}
	if cfg.Memory.ChunkSize != 900 || cfg.Memory.ChunkOverlap != 200 || cfg.Memory.TopK != 8 {
		t.Errorf("unexpected chunking defaults %+v", cfg.Memory)
	}
	if cfg.Memory.Collection != memory.DefaultCollection {
		t.Errorf("unexpected collection %q", cfg.Memory.Collection)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("unexpected timeout %s", cfg.LLM.Timeout)
	}
	if cfg.Matrix.Enabled() {
		t.Error("matrix should be disabled by default")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sevasakha.yaml")
	err := os.WriteFile(path, []byte(`
database_path: /var/lib/sevasakha/app.db
log:
  level: debug
llm:
  chat_model: mistral-large-latest
  timeout: 45s
memory:
  backend: sqlite
  chunk_size: 500
  chunk_overlap: 100
  top_k: 4
matrix:
  homeserver: https://matrix.example.org
  user_id: "@sevasakha:example.org"
  rooms: ["!ops:example.org"]
`), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigFile, path)
	t.Setenv("QA_TOP_K", "6")
	t.Setenv("MISTRAL_API_KEY", "sk-test")
	t.Setenv("MATRIX_ACCESS_TOKEN", "syt_token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabasePath != "/var/lib/sevasakha/app.db" || cfg.Log.Level != "debug" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.LLM.ChatModel != "mistral-large-latest" || cfg.LLM.Timeout != 45*time.Second {
		t.Errorf("unexpected llm config %+v", cfg.LLM)
	}
	if cfg.Memory.Backend != BackendSQLite || cfg.Memory.ChunkSize != 500 || cfg.Memory.ChunkOverlap != 100 {
		t.Errorf("unexpected memory config %+v", cfg.Memory)
	}
	if cfg.Memory.TopK != 6 {
		t.Errorf("environment should override file top_k, got %d", cfg.Memory.TopK)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.Matrix.AccessToken != "syt_token" {
		t.Error("credentials should come from the environment")
	}
	if len(cfg.Matrix.Rooms) != 1 || cfg.Matrix.Rooms[0] != "!ops:example.org" {
		t.Errorf("unexpected rooms %v", cfg.Matrix.Rooms)
	}
}

func TestApplyYAML_SchemaRejectsUnknownAndInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "memroy:\n  top_k: 3\n",
		"bad backend":    "memory:\n  backend: pinecone\n",
		"bad type":       "memory:\n  chunk_size: large\n",
		"negative":       "memory:\n  chunk_overlap: -5\n",
		"bad duration":   "llm:\n  timeout: soon\n",
		"secret in file": "llm:\n  api_key: sk-leak\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			before := *cfg
			if err := cfg.ApplyYAML([]byte(doc)); err == nil {
				t.Fatal("expected schema error")
			}
			if cfg.Memory != before.Memory || cfg.LLM != before.LLM {
				t.Error("rejected file modified the config")
			}
		})
	}
}

func TestApplyYAML_EmptyDocumentIsNoop(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyYAML([]byte("# nothing here\n")); err != nil {
		t.Fatalf("ApplyYAML: %v", err)
	}
	if cfg.Memory.TopK != memory.DefaultTopK {
		t.Errorf("unexpected top_k %d", cfg.Memory.TopK)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Memory.ChunkSize = 200
	cfg.Memory.ChunkOverlap = 200
	cfg.Memory.TopK = 0
	cfg.Memory.Backend = "faiss"
	cfg.Matrix.Homeserver = "https://matrix.example.org"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, memory.ErrInvalidChunking) {
		t.Errorf("expected ErrInvalidChunking in %v", err)
	}
	for _, want := range []string{"top_k", "faiss", "MATRIX_USER_ID", "MATRIX_ACCESS_TOKEN"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyEnv_IgnoresBlankValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHUNK_SIZE", "   ")
	t.Setenv("VECTOR_BACKEND", "SQLite")
	t.Setenv("MATRIX_ROOMS", "!a:x, ,!b:x")
	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Memory.ChunkSize != memory.DefaultChunkSize {
		t.Errorf("blank CHUNK_SIZE changed the value to %d", cfg.Memory.ChunkSize)
	}
	if cfg.Memory.Backend != BackendSQLite {
		t.Errorf("backend should be lower-cased, got %q", cfg.Memory.Backend)
	}
	if len(cfg.Matrix.Rooms) != 2 {
		t.Errorf("unexpected rooms %v", cfg.Matrix.Rooms)
	}
}
