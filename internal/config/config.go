// Package config provides application configuration loaded from
// environment variables, with optional overrides from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Limits holds tunable thresholds carried over from the original
// system. They are configuration, not invariants.
type Limits struct {
	// MaxPersistBytes caps the serialized run record; larger payloads
	// are replaced by a summary before persistence.
	MaxPersistBytes int `yaml:"max_persist_bytes"`
	// MinRegexMatchLen is the minimum capture length accepted by the
	// raw-string extraction cascade, rejecting trivial fragments.
	MinRegexMatchLen int `yaml:"min_regex_match_len"`
	// TruncateLen bounds the raw-string fallback result.
	TruncateLen int `yaml:"truncate_len"`
}

// DefaultLimits returns the thresholds used by the upstream service's
// original client.
func DefaultLimits() Limits {
	return Limits{
		MaxPersistBytes:  5 * 1024 * 1024,
		MinRegexMatchLen: 50,
		TruncateLen:      500,
	}
}

// Config holds all application configuration.
type Config struct {
	OrchestrateURL string `yaml:"orchestrate_url"`
	InstallDataURL string `yaml:"install_data_url"`
	AuditURL       string `yaml:"audit_url"`
	// BearerToken is sent verbatim to the upstream endpoints; token
	// issuance and refresh belong to an external collaborator.
	BearerToken string `yaml:"bearer_token"`

	// API server settings.
	APIPort      string   `yaml:"api_port"`
	CORSOrigins  []string `yaml:"cors_origins"`
	OIDCIssuer   string   `yaml:"oidc_issuer"`
	OIDCAudience string   `yaml:"oidc_audience"`

	LogLevel    string `yaml:"log_level"`
	OTelEnabled bool   `yaml:"otel_enabled"`

	Limits Limits `yaml:"limits"`
}

// OIDCEnabled reports whether the API server should verify bearer
// tokens.
func (c Config) OIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCAudience != ""
}

// LoadFromEnv reads configuration from environment variables with
// sensible defaults. If ORCH_CONFIG_FILE is set, the named YAML file
// is applied on top.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		OrchestrateURL: envOr("ORCH_STREAM_URL", "http://localhost:8000/api/v1/auto-orchestrate"),
		InstallDataURL: os.Getenv("ORCH_INSTALL_DATA_URL"),
		AuditURL:       os.Getenv("ORCH_AUDIT_URL"),
		BearerToken:    os.Getenv("ORCH_BEARER_TOKEN"),
		APIPort:        envOr("ORCH_API_PORT", "8080"),
		CORSOrigins:    parseCORSOrigins(os.Getenv("ORCH_CORS_ORIGINS")),
		OIDCIssuer:     os.Getenv("ORCH_OIDC_ISSUER"),
		OIDCAudience:   os.Getenv("ORCH_OIDC_AUDIENCE"),
		LogLevel:       envOr("ORCH_LOG_LEVEL", "info"),
		OTelEnabled:    os.Getenv("ORCH_OTEL_ENABLED") == "true",
		Limits:         DefaultLimits(),
	}

	if path := os.Getenv("ORCH_CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config file over defaults, for callers that
// do not use the environment (CLI -config flag).
func LoadFile(path string) (Config, error) {
	cfg := Config{
		OrchestrateURL: "http://localhost:8000/api/v1/auto-orchestrate",
		APIPort:        "8080",
		CORSOrigins:    []string{"*"},
		LogLevel:       "info",
		Limits:         DefaultLimits(),
	}
	if err := applyFile(&cfg, path); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.OrchestrateURL == "" {
		return fmt.Errorf("config: orchestrate_url is required")
	}
	if c.Limits.MaxPersistBytes <= 0 {
		return fmt.Errorf("config: limits.max_persist_bytes must be positive")
	}
	if c.Limits.MinRegexMatchLen < 0 {
		return fmt.Errorf("config: limits.min_regex_match_len must not be negative")
	}
	if c.Limits.TruncateLen <= 0 {
		return fmt.Errorf("config: limits.truncate_len must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseCORSOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(o); t != "" {
			origins = append(origins, t)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
