package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for Showroom.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	MCP        MCPConfig        `yaml:"mcp"`
	LLM        LLMConfig        `yaml:"llm"`
	Limits     LimitsConfig     `yaml:"limits"`
	Dealership DealershipConfig `yaml:"dealership"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MCPConfig locates the dealership MCP endpoint the assistant talks to.
type MCPConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

// LimitsConfig bounds the orchestration loop and outbound request pacing.
type LimitsConfig struct {
	MaxIterations     int           `yaml:"max_iterations"`
	MaxModelCalls     int           `yaml:"max_model_calls"`
	MaxTokens         int           `yaml:"max_tokens"`
	HistoryLimit      int           `yaml:"history_limit"`
	MinRequestGap     time.Duration `yaml:"min_request_gap"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// DealershipConfig locates the inventory/order data files served over MCP.
type DealershipConfig struct {
	DataDir string `yaml:"data_dir"`
	Port    int    `yaml:"port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.MCP.URL == "" {
		cfg.MCP.URL = "http://localhost:8090/mcp"
	}
	if cfg.MCP.Timeout == 0 {
		cfg.MCP.Timeout = 30 * time.Second
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "openai"
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]LLMProviderConfig{}
	}
	if p, ok := cfg.LLM.Providers["openai"]; !ok || p.APIKey == "" {
		p.APIKey = os.Getenv("OPENAI_API_KEY")
		if p.DefaultModel == "" {
			p.DefaultModel = "gpt-4o-mini"
		}
		cfg.LLM.Providers["openai"] = p
	}
	if p, ok := cfg.LLM.Providers["anthropic"]; !ok || p.APIKey == "" {
		p.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if p.DefaultModel == "" {
			p.DefaultModel = "claude-sonnet-4-20250514"
		}
		cfg.LLM.Providers["anthropic"] = p
	}
	if cfg.Limits.MaxIterations == 0 {
		cfg.Limits.MaxIterations = 8
	}
	if cfg.Limits.MaxModelCalls == 0 {
		cfg.Limits.MaxModelCalls = 4
	}
	if cfg.Limits.MaxTokens == 0 {
		cfg.Limits.MaxTokens = 1024
	}
	if cfg.Limits.HistoryLimit == 0 {
		cfg.Limits.HistoryLimit = 24
	}
	if cfg.Dealership.DataDir == "" {
		cfg.Dealership.DataDir = "data"
	}
	if cfg.Dealership.Port == 0 {
		cfg.Dealership.Port = 8090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
