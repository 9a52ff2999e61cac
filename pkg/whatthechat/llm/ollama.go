package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaClient talks to a local Ollama server via its /api/chat endpoint.
type OllamaClient struct {
	host       string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a local backend client.
func NewOllamaClient(model string, cfg Config, logger *slog.Logger) *OllamaClient {
	if logger == nil {
		logger = slog.Default()
	}
	host := cfg.OllamaHost
	if host == "" {
		host = defaultOllamaHost
	}
	return &OllamaClient{
		host:       strings.TrimRight(host, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With("component", "llm", "backend", "ollama"),
	}
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string { return c.model }

// ---------- Wire Types ----------

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// Complete sends a chat request to the local Ollama server.
func (c *OllamaClient) Complete(ctx context.Context, systemPrompt string, turns []Turn, userMessage string) (string, error) {
	messages := make([]ollamaMessage, 0, len(turns)*2+2)
	if systemPrompt != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	for _, t := range turns {
		messages = append(messages, ollamaMessage{Role: "user", Content: t.User})
		if t.Assistant != "" {
			messages = append(messages, ollamaMessage{Role: "assistant", Content: t.Assistant})
		}
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: userMessage})

	body, err := json.Marshal(ollamaRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("llm: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending chat request", "model", c.model, "messages", len(messages))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ModelUnavailableError{
			Backend: "ollama",
			Model:   c.model,
			Err:     fmt.Errorf("is the Ollama server running at %s? %w", c.host, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ModelUnavailableError{Backend: "ollama", Model: c.model, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ModelUnavailableError{
			Backend: "ollama",
			Model:   c.model,
			Err:     fmt.Errorf("server returned %d: %s", resp.StatusCode, truncate(string(respBody), 300)),
		}
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("llm: parsing response: %w", err)
	}
	if parsed.Error != "" {
		return "", &ModelUnavailableError{
			Backend: "ollama",
			Model:   c.model,
			Err:     fmt.Errorf("server error: %s", parsed.Error),
		}
	}

	c.logger.Info("chat request done",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return strings.TrimSpace(parsed.Message.Content), nil
}

// Compile-time interface verification.
var _ Backend = (*OllamaClient)(nil)
