package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultFile is read from the working directory when no path is given.
	DefaultFile = "agentgraph.yaml"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// sections are the top-level keys environment variables may target.
var sections = map[string]bool{
	"llm": true, "projects": true, "checkpoint": true, "routing": true,
	"tools": true, "server": true, "logging": true, "telemetry": true,
}

// legacyEnv maps the older .env variable names onto keys.
// They load before the SECTION_FIELD form so the latter wins.
var legacyEnv = map[string]string{
	"LM_PROXY_URL": "llm.base_url",
	"MODEL_NAME":   "llm.model",
}

// Load reads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (LLM_BASE_URL, ROUTING_MODE, ...)
//  2. Legacy variables LM_PROXY_URL and MODEL_NAME
//  3. YAML config file
//  4. Built-in defaults
//
// An empty path reads DefaultFile if it exists. An explicit path must exist.
//
// # Environment Variable Mapping
//
// Variables split on the first underscore into section and field:
//
//	LLM_BASE_URL     -> llm.base_url
//	ROUTING_MAX_STEPS -> routing.max_steps
//	SERVER_HTTP_PORT -> server.http_port
//
// Variables whose prefix is not a known section are ignored.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	content, err := readConfigFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	for name, key := range legacyEnv {
		if v := os.Getenv(name); v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("failed to apply %s: %w", name, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := normalizeDurations(k); err != nil {
		return nil, fmt.Errorf("failed to read timeouts: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps SECTION_FIELD_NAME to section.field_name. Unknown sections map
// to "" so the provider skips them.
func envKey(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || !sections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile reads path through a single descriptor and enforces the size cap.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
