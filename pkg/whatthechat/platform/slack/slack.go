// Package slack implements the Slack platform connector using the Slack
// Web API over plain HTTP — no SDK dependency.
//
// The channel is addressed by name; the connector resolves it to an ID
// via conversations.list, walks conversations.history with cursor
// pagination, fetches every thread through conversations.replies, and
// builds the user mapping from users.list.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/platform"
)

const (
	defaultAPIBase = "https://slack.com/api/"

	// pageSize is the conversations.history page size.
	pageSize = 100
)

// Config holds Slack connector configuration.
type Config struct {
	// Token is the Slack Bot User OAuth Token (xoxb-...).
	Token string `yaml:"token"`
}

// Connector implements platform.Connector for Slack.
type Connector struct {
	cfg     Config
	logger  *slog.Logger
	client  *http.Client
	retry   platform.RetryPolicy
	apiBase string

	mapping history.UserMapping
}

// New creates a Slack connector.
func New(cfg Config, logger *slog.Logger) (*Connector, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("slack: token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		cfg:     cfg,
		logger:  logger.With("component", "slack"),
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   platform.DefaultRetryPolicy(),
		apiBase: defaultAPIBase,
		mapping: history.UserMapping{},
	}, nil
}

// Name returns "slack".
func (c *Connector) Name() string { return "slack" }

// UserMapping returns the mapping built by the most recent fetch.
func (c *Connector) UserMapping() history.UserMapping {
	return c.mapping.Clone()
}

// FetchMessages collects the channel history and all thread replies
// since the given time. See platform.Connector for the contract.
func (c *Connector) FetchMessages(ctx context.Context, channelName string, since time.Time) (*history.ChatHistory, time.Time, error) {
	c.mapping = history.UserMapping{}

	channelID, err := c.resolveChannelID(ctx, channelName)
	if err != nil {
		return nil, since, err
	}

	c.logger.Info("fetching channel history",
		"channel", channelName,
		"channel_id", channelID,
		"since", since.Format(time.DateOnly),
	)

	if err := c.loadUsers(ctx); err != nil {
		return nil, since, err
	}

	msgs, err := c.fetchChannel(ctx, channelID, since)
	if err != nil {
		return nil, since, err
	}

	h := history.New(msgs)

	first := since
	if !h.Empty() {
		first = h.FirstMessageDate()
	}

	c.logger.Info("fetch complete",
		"messages", h.Len(),
		"threads", h.ThreadCount(),
		"users", len(c.mapping),
		"first_message", first.Format(time.DateOnly),
	)

	return h, first, nil
}

// fetchChannel walks conversations.history pages and expands each thread
// parent via conversations.replies.
func (c *Connector) fetchChannel(ctx context.Context, channelID string, since time.Time) ([]history.Message, error) {
	var out []history.Message
	cursor := ""

	for {
		payload := map[string]any{
			"channel": channelID,
			"oldest":  slackTS(since),
			"limit":   pageSize,
		}
		if cursor != "" {
			payload["cursor"] = cursor
		}

		var page historyResponse
		err := c.retry.Do(ctx, c.logger, "conversations.history", func() error {
			return c.apiCall(ctx, "conversations.history", payload, &page)
		})
		if err != nil {
			return nil, err
		}

		for _, m := range page.Messages {
			if m.Text == "" && m.User == "" {
				continue
			}
			ts := parseSlackTS(m.TS)
			if ts.Before(since) {
				continue
			}

			out = append(out, history.Message{
				AuthorID:  m.User,
				Content:   m.Text,
				Timestamp: ts,
			})

			// A message whose thread_ts equals its own ts is a thread parent.
			if m.ThreadTS != "" && m.ThreadTS == m.TS {
				replies, err := c.fetchReplies(ctx, channelID, m.TS, since)
				if err != nil {
					return nil, err
				}
				out = append(out, replies...)
			}
		}

		if !page.HasMore || page.ResponseMetadata.NextCursor == "" {
			return out, nil
		}
		cursor = page.ResponseMetadata.NextCursor
	}
}

// fetchReplies collects a thread's replies, skipping the parent message
// (already recorded from the channel walk) and anything older than since.
func (c *Connector) fetchReplies(ctx context.Context, channelID, threadTS string, since time.Time) ([]history.Message, error) {
	var out []history.Message
	cursor := ""

	for {
		payload := map[string]any{
			"channel": channelID,
			"ts":      threadTS,
			"limit":   pageSize,
		}
		if cursor != "" {
			payload["cursor"] = cursor
		}

		var page historyResponse
		err := c.retry.Do(ctx, c.logger, "conversations.replies", func() error {
			return c.apiCall(ctx, "conversations.replies", payload, &page)
		})
		if err != nil {
			return nil, err
		}

		for _, m := range page.Messages {
			if m.TS == threadTS {
				continue
			}
			ts := parseSlackTS(m.TS)
			if ts.Before(since) {
				continue
			}
			out = append(out, history.Message{
				AuthorID:   m.User,
				Content:    m.Text,
				Timestamp:  ts,
				ThreadID:   threadTS,
				ThreadName: "thread " + threadTS,
			})
		}

		if !page.HasMore || page.ResponseMetadata.NextCursor == "" {
			return out, nil
		}
		cursor = page.ResponseMetadata.NextCursor
	}
}

// resolveChannelID maps a channel name to its ID via conversations.list,
// scanning public and private channels.
func (c *Connector) resolveChannelID(ctx context.Context, channelName string) (string, error) {
	name := strings.TrimPrefix(channelName, "#")
	cursor := ""

	for {
		payload := map[string]any{
			"types": "public_channel,private_channel",
			"limit": 200,
		}
		if cursor != "" {
			payload["cursor"] = cursor
		}

		var page channelListResponse
		err := c.retry.Do(ctx, c.logger, "conversations.list", func() error {
			return c.apiCall(ctx, "conversations.list", payload, &page)
		})
		if err != nil {
			return "", err
		}

		for _, ch := range page.Channels {
			if ch.Name == name {
				return ch.ID, nil
			}
		}

		if page.ResponseMetadata.NextCursor == "" {
			return "", &platform.NotFoundError{Platform: "slack", Channel: channelName}
		}
		cursor = page.ResponseMetadata.NextCursor
	}
}

// loadUsers builds the user-id to display-name mapping from users.list.
func (c *Connector) loadUsers(ctx context.Context) error {
	cursor := ""

	for {
		payload := map[string]any{"limit": 200}
		if cursor != "" {
			payload["cursor"] = cursor
		}

		var page userListResponse
		err := c.retry.Do(ctx, c.logger, "users.list", func() error {
			return c.apiCall(ctx, "users.list", payload, &page)
		})
		if err != nil {
			return err
		}

		for _, u := range page.Members {
			name := u.Profile.DisplayName
			if name == "" {
				name = u.Name
			}
			c.mapping.Add(u.ID, name)
		}

		if page.ResponseMetadata.NextCursor == "" {
			return nil
		}
		cursor = page.ResponseMetadata.NextCursor
	}
}

// ---------- Slack API Types ----------

type responseMetadata struct {
	NextCursor string `json:"next_cursor"`
}

type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type slackMessage struct {
	TS       string `json:"ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts"`
}

type historyResponse struct {
	Messages         []slackMessage   `json:"messages"`
	HasMore          bool             `json:"has_more"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type channelListResponse struct {
	Channels []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channels"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type userListResponse struct {
	Members []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Profile struct {
			DisplayName string `json:"display_name"`
		} `json:"profile"`
	} `json:"members"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

// ---------- API Helpers ----------

// apiCall makes a POST request to the Slack Web API and decodes the
// response into out. Slack-level and HTTP-level failures are mapped
// onto the platform error taxonomy.
func (c *Connector) apiCall(ctx context.Context, method string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: creating request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return &platform.TransportError{Platform: "slack", Op: method, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &platform.TransportError{Platform: "slack", Op: method, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &platform.RateLimitError{
			Platform:   "slack",
			RetryAfter: retryAfter(resp),
			Err:        fmt.Errorf("%s returned 429", method),
		}
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return &platform.TransportError{Platform: "slack", Op: method, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if !envelope.OK {
		channel, _ := payload["channel"].(string)
		return c.classify(method, envelope.Error, channel)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &platform.TransportError{Platform: "slack", Op: method, Err: fmt.Errorf("decoding %s payload: %w", method, err)}
		}
	}
	return nil
}

// classify maps Slack error strings onto the platform error taxonomy.
func (c *Connector) classify(method, slackErr, channel string) error {
	switch slackErr {
	case "invalid_auth", "not_authed", "token_revoked", "token_expired", "account_inactive":
		return &platform.AuthError{Platform: "slack", Err: fmt.Errorf("%s: %s", method, slackErr)}
	case "channel_not_found":
		return &platform.NotFoundError{Platform: "slack", Channel: channel}
	case "ratelimited", "rate_limited":
		return &platform.RateLimitError{Platform: "slack", Err: fmt.Errorf("%s: %s", method, slackErr)}
	default:
		return &platform.TransportError{Platform: "slack", Op: method, Err: fmt.Errorf("api error: %s", slackErr)}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// slackTS renders a time as a Slack "seconds.micros" timestamp string.
func slackTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// parseSlackTS converts a Slack timestamp ("1234567890.123456") to time.Time.
func parseSlackTS(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if len(parts) == 2 {
		micros, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	return time.Unix(sec, micros*1000).UTC()
}

// Compile-time interface verification.
var _ platform.Connector = (*Connector)(nil)
