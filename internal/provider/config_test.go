package provider

import (
	"strings"
	"testing"

	"github.com/54b3r/fitcoach-go/internal/profile"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		// ── TGI ───────────────────────────────────────────────────────────────
		{
			name: "tgi/valid",
			cfg:  Config{Family: profile.DistilGPT2, Backend: BackendTGI, Endpoint: "http://localhost:8080"},
		},
		{
			name:    "tgi/missing endpoint",
			cfg:     Config{Family: profile.DistilGPT2, Backend: BackendTGI},
			wantErr: "DISTILGPT2_ENDPOINT",
		},

		// ── Ollama ────────────────────────────────────────────────────────────
		{
			name: "ollama/valid",
			cfg:  Config{Family: profile.PlayPart, Backend: BackendOllama, Model: "gpt2"},
		},
		{
			name:    "ollama/missing model",
			cfg:     Config{Family: profile.PlayPart, Backend: BackendOllama},
			wantErr: "PLAYPART_MODEL",
		},

		// ── OpenAI / Gemini / Ark ─────────────────────────────────────────────
		{
			name: "openai/valid",
			cfg:  Config{Family: profile.DistilGPT2, Backend: BackendOpenAI, APIKey: "sk-test", Model: "gpt-4o-mini"},
		},
		{
			name:    "openai/missing api key",
			cfg:     Config{Family: profile.DistilGPT2, Backend: BackendOpenAI, Model: "gpt-4o-mini"},
			wantErr: "DISTILGPT2_API_KEY",
		},
		{
			name:    "gemini/missing model",
			cfg:     Config{Family: profile.PlayPart, Backend: BackendGemini, APIKey: "key"},
			wantErr: "PLAYPART_MODEL",
		},
		{
			name:    "ark/missing api key",
			cfg:     Config{Family: profile.PlayPart, Backend: BackendArk, Model: "ep-123"},
			wantErr: "PLAYPART_API_KEY",
		},

		// ── Azure ─────────────────────────────────────────────────────────────
		{
			name: "azure/valid",
			cfg: Config{
				Family:          profile.DistilGPT2,
				Backend:         BackendAzure,
				APIKey:          "key",
				Endpoint:        "https://my.openai.azure.com",
				Model:           "gpt-4o",
				AzureAPIVersion: "2024-02-01",
			},
		},
		{
			name:    "azure/missing endpoint",
			cfg:     Config{Family: profile.DistilGPT2, Backend: BackendAzure, APIKey: "key", Model: "gpt-4o"},
			wantErr: "DISTILGPT2_ENDPOINT",
		},
		{
			name:    "azure/missing deployment",
			cfg:     Config{Family: profile.DistilGPT2, Backend: BackendAzure, APIKey: "key", Endpoint: "https://x"},
			wantErr: "deployment",
		},

		// ── Invalid ───────────────────────────────────────────────────────────
		{
			name:    "unknown backend",
			cfg:     Config{Family: profile.DistilGPT2, Backend: "vllm"},
			wantErr: "unknown backend",
		},
		{
			name:    "unspecified family",
			cfg:     Config{Backend: BackendTGI, Endpoint: "http://x"},
			wantErr: "unsupported model family",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

// TestConfigFromEnv uses t.Setenv and therefore cannot run in parallel.
func TestConfigFromEnv(t *testing.T) {
	t.Run("unset family is disabled and defaults to its source", func(t *testing.T) {
		t.Setenv("PLAYPART_BACKEND", "")
		t.Setenv("PLAYPART_ENDPOINT", "")
		t.Setenv("PLAYPART_API_KEY", "")
		t.Setenv("PLAYPART_MODEL", "")

		cfg := ConfigFromEnv(profile.PlayPart)
		if cfg.Enabled {
			t.Error("Enabled = true, want false with no settings")
		}
		if cfg.Backend != BackendTGI {
			t.Errorf("Backend = %q, want %q", cfg.Backend, BackendTGI)
		}
		if want := profile.Default(profile.PlayPart).Source; cfg.Model != want {
			t.Errorf("Model = %q, want %q", cfg.Model, want)
		}
	})

	t.Run("explicit settings enable the family", func(t *testing.T) {
		t.Setenv("DISTILGPT2_BACKEND", "Ollama")
		t.Setenv("DISTILGPT2_ENDPOINT", "http://ollama:11434")
		t.Setenv("DISTILGPT2_MODEL", "distilgpt2-fr")
		t.Setenv("DISTILGPT2_API_KEY", "")

		cfg := ConfigFromEnv(profile.DistilGPT2)
		if !cfg.Enabled {
			t.Error("Enabled = false, want true")
		}
		if cfg.Backend != BackendOllama {
			t.Errorf("Backend = %q, want %q", cfg.Backend, BackendOllama)
		}
		if cfg.Endpoint != "http://ollama:11434" || cfg.Model != "distilgpt2-fr" {
			t.Errorf("cfg = %+v", cfg)
		}
		if cfg.Family != profile.DistilGPT2 {
			t.Errorf("Family = %v, want %v", cfg.Family, profile.DistilGPT2)
		}
	})
}

func TestEnvPrefix(t *testing.T) {
	t.Parallel()
	if got := EnvPrefix(profile.DistilGPT2); got != "DISTILGPT2" {
		t.Errorf("EnvPrefix(DistilGPT2) = %q", got)
	}
	if got := EnvPrefix(profile.PlayPart); got != "PLAYPART" {
		t.Errorf("EnvPrefix(PlayPart) = %q", got)
	}
	if got := EnvPrefix(profile.Unspecified); got != "" {
		t.Errorf("EnvPrefix(Unspecified) = %q, want empty", got)
	}
}
