// Package config loads tool configuration from YAML with credentials
// resolved from the environment, .env files, and the OS keyring. The
// core packages never read environment variables themselves; they
// receive already-resolved values from here.
package config

import (
	"fmt"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/llm"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/platform/discord"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/platform/slack"
)

// Platform identifiers accepted in config and on the command line.
const (
	PlatformDiscord = "discord"
	PlatformSlack   = "slack"
)

// Config is the full tool configuration.
type Config struct {
	// Platform selects the default connector ("discord" or "slack").
	Platform string `yaml:"platform"`

	Discord discord.Config `yaml:"discord"`
	Slack   slack.Config   `yaml:"slack"`
	Model   ModelConfig    `yaml:"model"`
}

// ModelConfig selects and configures the LLM backend.
type ModelConfig struct {
	// Source is "local" (Ollama) or "remote" (OpenAI-compatible API).
	Source string `yaml:"source"`

	// Name is the concrete model to use.
	Name string `yaml:"name"`

	// APIKey authenticates against the remote API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the remote API endpoint.
	BaseURL string `yaml:"base_url"`

	// OllamaHost is the local Ollama server address.
	OllamaHost string `yaml:"ollama_host"`
}

// ClientConfig converts the model section into the llm package's config.
func (m ModelConfig) ClientConfig() llm.Config {
	return llm.Config{
		APIKey:     m.APIKey,
		BaseURL:    m.BaseURL,
		OllamaHost: m.OllamaHost,
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Platform: PlatformDiscord,
		Model: ModelConfig{
			Source: llm.SourceLocal,
			Name:   "deepseek-r1-distill-qwen-7b",
		},
	}
}

// Validate checks the parts of the config every run needs.
func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformDiscord, PlatformSlack:
	default:
		return fmt.Errorf("config: unknown platform %q (want %q or %q)", c.Platform, PlatformDiscord, PlatformSlack)
	}
	switch c.Model.Source {
	case llm.SourceLocal, llm.SourceRemote:
	default:
		return fmt.Errorf("config: unknown model source %q (want %q or %q)", c.Model.Source, llm.SourceLocal, llm.SourceRemote)
	}
	return nil
}
