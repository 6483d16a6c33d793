package provider

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/54b3r/fitcoach-go/internal/profile"
)

// Config holds the backend settings of one model family, resolved from
// environment variables or explicit caller-supplied values.
type Config struct {
	// Family is the model family this backend serves.
	Family profile.Family

	// Backend identifies which inference backend to use (default: tgi).
	Backend Backend

	// Endpoint is the backend base URL. Required for tgi and azure; optional
	// for ollama and openai-compatible servers.
	Endpoint string

	// Model is the model name, repository, or deployment to request.
	Model string

	// APIKey authenticates against hosted backends.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (azure only).
	AzureAPIVersion string

	// Timeout bounds each HTTP call to the backend (tgi only; default: 60s).
	Timeout time.Duration

	// Enabled is true when any setting for this family was provided. A
	// disabled family is simply not loaded.
	Enabled bool
}

// EnvPrefix returns the environment variable prefix of family f.
func EnvPrefix(f profile.Family) string {
	switch f {
	case profile.DistilGPT2:
		return "DISTILGPT2"
	case profile.PlayPart:
		return "PLAYPART"
	case profile.Unspecified:
		return ""
	default:
		return ""
	}
}

// ConfigFromEnv reads the backend configuration of family f:
//
//	<P>_BACKEND   = tgi | ollama | openai | azure | gemini | ark (default: tgi)
//	<P>_ENDPOINT  = backend base URL
//	<P>_MODEL     = model name (default: the profile's source)
//	<P>_API_KEY   = credential for hosted backends
//	AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//
// where <P> is DISTILGPT2 or PLAYPART.
func ConfigFromEnv(f profile.Family) Config {
	p := EnvPrefix(f)
	backend := os.Getenv(p + "_BACKEND")
	endpoint := os.Getenv(p + "_ENDPOINT")
	model := os.Getenv(p + "_MODEL")
	apiKey := os.Getenv(p + "_API_KEY")

	cfg := Config{
		Family:          f,
		Backend:         Backend(strings.ToLower(getEnvOrDefault(p+"_BACKEND", string(BackendTGI)))),
		Endpoint:        endpoint,
		Model:           model,
		APIKey:          apiKey,
		AzureAPIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		Enabled:         backend != "" || endpoint != "" || apiKey != "",
	}
	if cfg.Model == "" && f.Valid() {
		cfg.Model = profile.Default(f).Source
	}
	return cfg
}

// Validate checks that all required fields for the selected backend are set.
// It returns a descriptive error naming the missing environment variable.
func (c Config) Validate() error {
	if !c.Family.Valid() {
		return fmt.Errorf("provider: unsupported model family %v", c.Family)
	}
	p := EnvPrefix(c.Family)
	switch c.Backend {
	case BackendTGI:
		if c.Endpoint == "" {
			return fmt.Errorf("provider: %s_ENDPOINT is required for the tgi backend", p)
		}
	case BackendOllama:
		if c.Model == "" {
			return fmt.Errorf("provider: %s_MODEL is required for the ollama backend", p)
		}
	case BackendOpenAI, BackendGemini, BackendArk:
		if c.APIKey == "" {
			return fmt.Errorf("provider: %s_API_KEY is required for the %s backend", p, c.Backend)
		}
		if c.Model == "" {
			return fmt.Errorf("provider: %s_MODEL is required for the %s backend", p, c.Backend)
		}
	case BackendAzure:
		if c.APIKey == "" {
			return fmt.Errorf("provider: %s_API_KEY is required for the azure backend", p)
		}
		if c.Endpoint == "" {
			return fmt.Errorf("provider: %s_ENDPOINT is required for the azure backend", p)
		}
		if c.Model == "" {
			return fmt.Errorf("provider: %s_MODEL (deployment) is required for the azure backend", p)
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid: tgi, ollama, openai, azure, gemini, ark)", c.Backend)
	}
	return nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
