// Package llm provides the chat-completion backends the summarizer and
// interactive session talk to. Two implementations exist: a remote
// OpenAI-compatible client and a local Ollama client, selected by the
// model source ("remote" or "local").
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Model sources.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// requestTimeout bounds every completion call so a dead backend fails
// with ModelUnavailableError instead of hanging.
const requestTimeout = 120 * time.Second

// Turn is one prior question/answer exchange carried as conversation
// context in follow-up requests.
type Turn struct {
	User      string
	Assistant string
}

// Backend is an opaque chat-completion client. Implementations must
// honor ctx cancellation so in-flight calls can be abandoned on
// interrupt.
type Backend interface {
	// Complete submits a prompt and returns the model's text response.
	Complete(ctx context.Context, systemPrompt string, turns []Turn, userMessage string) (string, error)

	// Model returns the concrete model name in use.
	Model() string
}

// ModelUnavailableError indicates the backend could not be reached or
// the model could not be loaded. Fatal for the calling operation only;
// the interactive session catches it and keeps running.
type ModelUnavailableError struct {
	Backend string
	Model   string
	Err     error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("%s: model %q unavailable: %v", e.Backend, e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// Config holds backend connection settings.
type Config struct {
	// APIKey authenticates against the remote API. Unused for local.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the remote API endpoint
	// (default https://api.openai.com/v1).
	BaseURL string `yaml:"base_url"`

	// OllamaHost is the local Ollama server address
	// (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host"`
}

// New builds a Backend for the given model source.
func New(source, model string, cfg Config, logger *slog.Logger) (Backend, error) {
	switch source {
	case SourceRemote:
		return NewOpenAIClient(model, cfg, logger), nil
	case SourceLocal:
		return NewOllamaClient(model, cfg, logger), nil
	default:
		return nil, fmt.Errorf("llm: unknown model source %q (want %q or %q)", source, SourceLocal, SourceRemote)
	}
}
