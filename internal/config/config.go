// Package config provides application configuration management using koanf
package config

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Services  ServicesConfig  `koanf:"services"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Security  SecurityConfig  `koanf:"security"`
	Email     EmailConfig     `koanf:"email"`
	App       AppConfig       `koanf:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string    `koanf:"host"`
	Port         int       `koanf:"port"`
	ReadTimeout  int       `koanf:"read_timeout"`  // seconds
	WriteTimeout int       `koanf:"write_timeout"` // seconds
	TLS          TLSConfig `koanf:"tls"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	MinTLS   string `koanf:"min_version"` // "1.2" or "1.3"
}

// DatabaseConfig holds SQLite configuration. One database file carries both
// the relational tables and the document corpus.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// ServicesConfig holds external service configuration
type ServicesConfig struct {
	OpenRouter OpenRouterConfig `koanf:"openrouter"`
}

// OpenRouterConfig holds the model provider endpoint and the three model
// identifiers the pipeline uses.
type OpenRouterConfig struct {
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	EmbeddingModel string `koanf:"embedding_model"`
	LLMModel       string `koanf:"llm_model"`
	RewriteModel   string `koanf:"rewrite_model"`
	Timeout        int    `koanf:"timeout"` // seconds
}

// RetrievalConfig holds the similarity search and history window knobs.
type RetrievalConfig struct {
	RelevanceThreshold float64 `koanf:"relevance_threshold"`
	TopK               int     `koanf:"top_k"`
	WindowSize         int     `koanf:"window_size"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	ErrorMode string `koanf:"error_mode"` // "detailed" or "secure"
}

// EmailConfig holds the addresses used for consultation notifications.
type EmailConfig struct {
	FromAddress  string `koanf:"from_address"`
	AdminAddress string `koanf:"admin_address"`
}

// AppConfig holds general application settings
type AppConfig struct {
	Environment string `koanf:"environment"` // "development", "staging", "production"
	LogLevel    string `koanf:"log_level"`   // "debug", "info", "warn", "error"
}

// Load loads configuration from multiple sources with precedence:
// 1. config.yaml (if exists)
// 2. config.json (if exists)
// 3. Environment variables (highest precedence)
func Load() (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)
	loadConfigFiles(k)

	if err := k.Load(env.Provider(".", env.Opt{}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.host":            "localhost",
		"server.port":            8080,
		"server.read_timeout":    30,
		"server.write_timeout":   30,
		"server.tls.enabled":     false,
		"server.tls.min_version": "1.3",

		"database.path": "legal_assistant.db",

		"services.openrouter.base_url":        "https://openrouter.ai/api/v1",
		"services.openrouter.embedding_model": "openai/text-embedding-3-small",
		"services.openrouter.llm_model":       "x-ai/grok-4.1-fast",
		"services.openrouter.rewrite_model":   "x-ai/grok-4.1-fast",
		"services.openrouter.timeout":         60,

		"retrieval.relevance_threshold": 0.4,
		"retrieval.top_k":               8,
		"retrieval.window_size":         10,

		"security.error_mode": "detailed",

		"email.from_address":  "assistant@localhost",
		"email.admin_address": "legal-team@localhost",

		"app.environment": "development",
		"app.log_level":   "info",
	}

	for key, value := range defaults {
		_ = k.Set(key, value) // Ignore error for setting defaults
	}
}

// loadConfigFiles loads configuration from files
func loadConfigFiles(k *koanf.Koanf) {
	if _, err := os.Stat("config.yaml"); err == nil {
		if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
			log.Printf("Warning: failed to load config.yaml: %v", err)
		}
	}

	if _, err := os.Stat("config.json"); err == nil {
		if err := k.Load(file.Provider("config.json"), json.Parser()); err != nil {
			log.Printf("Warning: failed to load config.json: %v", err)
		}
	}
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert file is required when TLS is enabled")
		}
		if cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when TLS is enabled")
		}
		if _, err := os.Stat(cfg.Server.TLS.CertFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS cert file does not exist: %s", cfg.Server.TLS.CertFile)
		}
		if _, err := os.Stat(cfg.Server.TLS.KeyFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file does not exist: %s", cfg.Server.TLS.KeyFile)
		}
	}

	if cfg.Security.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if cfg.Retrieval.RelevanceThreshold < 0 || cfg.Retrieval.RelevanceThreshold >= 1 {
		return fmt.Errorf("relevance threshold must be in [0, 1), got %v", cfg.Retrieval.RelevanceThreshold)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", cfg.Retrieval.WindowSize)
	}

	return nil
}

// GetTLSConfig returns a TLS configuration based on the config
func (c *Config) GetTLSConfig() *tls.Config {
	if !c.Server.TLS.Enabled {
		return nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}

	switch c.Server.TLS.MinTLS {
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
	default:
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	return tlsConfig
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
