package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
models:
  default: playpart_trainer
  distilgpt2:
    backend: tgi
    endpoint: http://tgi.internal:8080
    context_docs: 3
  playpart:
    backend: ollama
    model: playpart
retrieval:
  threshold: 0.35
embedding:
  provider: ollama
  model: nomic-embed-text
qdrant:
  host: qdrant.internal
  port: 6334
  collection: exercises
server:
  chat_timeout: 45s
journal:
  db_path: disabled
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"DEFAULT_MODEL", "DISTILGPT2_BACKEND", "DISTILGPT2_ENDPOINT", "DISTILGPT2_CONTEXT_DOCS",
		"PLAYPART_BACKEND", "PLAYPART_MODEL", "RAG_THRESHOLD",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"CHAT_TIMEOUT", "FITCOACH_DB", "LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"DEFAULT_MODEL":           "playpart_trainer",
		"DISTILGPT2_BACKEND":      "tgi",
		"DISTILGPT2_ENDPOINT":     "http://tgi.internal:8080",
		"DISTILGPT2_CONTEXT_DOCS": "3",
		"PLAYPART_BACKEND":        "ollama",
		"PLAYPART_MODEL":          "playpart",
		"RAG_THRESHOLD":           "0.35",
		"EMBEDDING_PROVIDER":      "ollama",
		"EMBEDDING_MODEL":         "nomic-embed-text",
		"QDRANT_HOST":             "qdrant.internal",
		"QDRANT_PORT":             "6334",
		"QDRANT_COLLECTION":       "exercises",
		"CHAT_TIMEOUT":            "45s",
		"FITCOACH_DB":             "disabled",
		"LOG_LEVEL":               "debug",
		"LOG_FORMAT":              "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
models:
  default: local_distilgpt2
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading; it must not be overwritten.
	t.Setenv("DEFAULT_MODEL", "playpart_trainer")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("DEFAULT_MODEL"); got != "playpart_trainer" {
		t.Errorf("DEFAULT_MODEL: expected env override %q, got %q", "playpart_trainer", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := []byte("YOUTUBE_API_KEY=from-dotenv\nWHISPER_MODEL=whisper-1\n")
	if err := os.WriteFile(envPath, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("YOUTUBE_API_KEY", "already-set")
	t.Setenv("WHISPER_MODEL", "")
	os.Unsetenv("WHISPER_MODEL")

	if err := LoadDotEnv(envPath, slog.Default()); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("YOUTUBE_API_KEY"); got != "already-set" {
		t.Errorf("YOUTUBE_API_KEY overridden: got %q", got)
	}
	if got := os.Getenv("WHISPER_MODEL"); got != "whisper-1" {
		t.Errorf("WHISPER_MODEL: got %q, want whisper-1", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"), slog.Default()); err != nil {
		t.Errorf("missing .env must not fail, got %v", err)
	}
}

func TestTypedAccessors(t *testing.T) {
	t.Setenv("FC_TEST_INT", "12")
	t.Setenv("FC_TEST_FLOAT", "0.35")
	t.Setenv("FC_TEST_DUR", "45s")
	t.Setenv("FC_TEST_BOOL", "true")
	t.Setenv("FC_TEST_BAD", "abc")
	t.Setenv("FC_TEST_EMPTY", "")

	if n, err := Int("FC_TEST_INT", 0); err != nil || n != 12 {
		t.Errorf("Int = %d, %v", n, err)
	}
	if n, err := Int("FC_TEST_EMPTY", 7); err != nil || n != 7 {
		t.Errorf("Int fallback = %d, %v", n, err)
	}
	if f, err := Float32("FC_TEST_FLOAT", 0.2); err != nil || f != 0.35 {
		t.Errorf("Float32 = %v, %v", f, err)
	}
	if f, err := OptionalFloat32("FC_TEST_EMPTY"); err != nil || f != nil {
		t.Errorf("OptionalFloat32 unset = %v, %v", f, err)
	}
	t.Setenv("FC_TEST_ZERO", "0")
	if f, err := OptionalFloat32("FC_TEST_ZERO"); err != nil || f == nil || *f != 0 {
		t.Errorf("OptionalFloat32 zero = %v, %v", f, err)
	}
	if _, err := OptionalFloat32("FC_TEST_BAD"); err == nil {
		t.Error("OptionalFloat32: want error for malformed value")
	}
	if d, err := Duration("FC_TEST_DUR", time.Minute); err != nil || d != 45*time.Second {
		t.Errorf("Duration = %v, %v", d, err)
	}
	if b, err := Bool("FC_TEST_BOOL"); err != nil || !b {
		t.Errorf("Bool = %v, %v", b, err)
	}
	if s := String("FC_TEST_EMPTY", "def"); s != "def" {
		t.Errorf("String fallback = %q", s)
	}

	for name, fn := range map[string]func() error{
		"Int":      func() error { _, err := Int("FC_TEST_BAD", 0); return err },
		"Float32":  func() error { _, err := Float32("FC_TEST_BAD", 0); return err },
		"Duration": func() error { _, err := Duration("FC_TEST_BAD", 0); return err },
		"Bool":     func() error { _, err := Bool("FC_TEST_BAD"); return err },
	} {
		if err := fn(); err == nil {
			t.Errorf("%s: want error for malformed value", name)
		}
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.35, "0.35"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptFloat32Str(t *testing.T) {
	t.Parallel()
	zero, half := float32(0), float32(0.5)
	if got := optFloat32Str(nil); got != "" {
		t.Errorf("nil = %q", got)
	}
	if got := optFloat32Str(&zero); got != "0" {
		t.Errorf("explicit zero = %q, want \"0\"", got)
	}
	if got := optFloat32Str(&half); got != "0.5" {
		t.Errorf("0.5 = %q", got)
	}
}
