// Package config provides configuration loading for agentgraph.
//
// Configuration is read from an optional YAML file and environment variables
// over built-in defaults. The resulting Config is passed explicitly to the
// builders in cmd/agentgraph; there is no package-level instance.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the complete agentgraph configuration.
type Config struct {
	LLM        LLMConfig        `koanf:"llm"`
	Projects   ProjectsConfig   `koanf:"projects"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Routing    RoutingConfig    `koanf:"routing"`
	Tools      ToolsConfig      `koanf:"tools"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// LLMConfig selects and tunes the model backend.
type LLMConfig struct {
	Provider    string   `koanf:"provider"`
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`
	MaxRetries  int      `koanf:"max_retries"`
	RateLimit   float64  `koanf:"rate_limit"`
	Burst       int      `koanf:"burst"`
}

// ProjectsConfig locates the project registry.
type ProjectsConfig struct {
	Dir string `koanf:"dir"`
}

// CheckpointConfig selects the checkpoint store.
type CheckpointConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
}

// RoutingConfig selects the graph topology.
type RoutingConfig struct {
	Mode     string `koanf:"mode"`
	MaxSteps int    `koanf:"max_steps"`
}

// ToolsConfig tunes tool execution.
type ToolsConfig struct {
	Timeout     Duration `koanf:"timeout"`
	AuthorName  string   `koanf:"author_name"`
	AuthorEmail string   `koanf:"author_email"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the logging settings read from file and env.
type LoggingConfig struct {
	Level  string            `koanf:"level"`
	Format string            `koanf:"format"`
	Output string            `koanf:"output"`
	Fields map[string]string `koanf:"fields"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
	Metrics     bool    `koanf:"metrics"`
}

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Checkpoint backends.
const (
	CheckpointMemory = "memory"
	CheckpointSQLite = "sqlite"
)

// Routing modes.
const (
	RoutingSingle = "single"
	RoutingLoop   = "loop"
)

// Default returns the built-in configuration. The backend defaults target a
// local proxy exposing an Anthropic-compatible endpoint.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderAnthropic,
			BaseURL:     "http://localhost:4000/anthropic",
			Model:       "claude-sonnet-4.5",
			APIKey:      Secret("dummy"),
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     Duration(2 * time.Minute),
			MaxRetries:  2,
		},
		Projects: ProjectsConfig{
			Dir: "projects",
		},
		Checkpoint: CheckpointConfig{
			Backend: CheckpointMemory,
			Path:    "agentgraph.db",
		},
		Routing: RoutingConfig{
			Mode:     RoutingSingle,
			MaxSteps: 8,
		},
		Tools: ToolsConfig{
			Timeout: Duration(10 * time.Second),
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "agentgraph",
			SampleRate:  1.0,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderAnthropic, ProviderOpenAI, c.LLM.Provider))
	}
	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("llm.base_url must be an absolute URL, got %q", c.LLM.BaseURL))
		}
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm.max_retries cannot be negative, got %d", c.LLM.MaxRetries))
	}
	if c.LLM.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("llm.rate_limit cannot be negative, got %g", c.LLM.RateLimit))
	}

	if c.Projects.Dir == "" {
		errs = append(errs, errors.New("projects.dir is required"))
	}

	switch c.Checkpoint.Backend {
	case CheckpointMemory:
	case CheckpointSQLite:
		if c.Checkpoint.Path == "" {
			errs = append(errs, errors.New("checkpoint.path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend must be %q or %q, got %q", CheckpointMemory, CheckpointSQLite, c.Checkpoint.Backend))
	}

	switch c.Routing.Mode {
	case RoutingSingle, RoutingLoop:
	default:
		errs = append(errs, fmt.Errorf("routing.mode must be %q or %q, got %q", RoutingSingle, RoutingLoop, c.Routing.Mode))
	}
	if c.Routing.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("routing.max_steps must be at least 1, got %d", c.Routing.MaxSteps))
	}

	if c.Tools.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("tools.timeout must be positive"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %g", c.Telemetry.SampleRate))
		}
	}

	return errors.Join(errs...)
}
