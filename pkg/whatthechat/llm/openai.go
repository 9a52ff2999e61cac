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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
// Works with OpenAI itself and any compatible proxy.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a remote backend client.
func NewOpenAIClient(model string, cfg Config, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With("component", "llm", "backend", "openai"),
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// ---------- Wire Types (OpenAI-compatible) ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends a chat completion request and returns the text.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt string, turns []Turn, userMessage string) (string, error) {
	if c.apiKey == "" {
		return "", &ModelUnavailableError{
			Backend: "openai",
			Model:   c.model,
			Err:     fmt.Errorf("API key not configured (set OPENAI_API_KEY)"),
		}
	}

	messages := make([]chatMessage, 0, len(turns)*2+2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, t := range turns {
		messages = append(messages, chatMessage{Role: "user", Content: t.User})
		if t.Assistant != "" {
			messages = append(messages, chatMessage{Role: "assistant", Content: t.Assistant})
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("llm: marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending chat completion", "model", c.model, "messages", len(messages))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ModelUnavailableError{Backend: "openai", Model: c.model, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ModelUnavailableError{Backend: "openai", Model: c.model, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ModelUnavailableError{
			Backend: "openai",
			Model:   c.model,
			Err:     fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(string(respBody), 300)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("llm: parsing response: %w", err)
	}
	if parsed.Error != nil {
		return "", &ModelUnavailableError{
			Backend: "openai",
			Model:   c.model,
			Err:     fmt.Errorf("API error: %s", parsed.Error.Message),
		}
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: no response from model")
	}

	c.logger.Info("chat completion done",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens,
	)

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Compile-time interface verification.
var _ Backend = (*OpenAIClient)(nil)
