package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/platform"
)

func day(d, h int) time.Time {
	return time.Date(2025, time.June, d, h, 0, 0, 0, time.UTC)
}

func tsStr(t time.Time) string {
	return fmt.Sprintf("%d.000000", t.Unix())
}

// slackServer serves a minimal fake of the Slack Web API.
type slackServer struct {
	historyPages []map[string]any
	replies      map[string][]map[string]any

	historyCalls    int
	rateLimitFirstN int
}

func (s *slackServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)

		switch r.URL.Path {
		case "/conversations.list":
			writeJSON(w, map[string]any{
				"ok": true,
				"channels": []map[string]any{
					{"id": "C123", "name": "project-x"},
					{"id": "C999", "name": "random"},
				},
				"response_metadata": map[string]any{"next_cursor": ""},
			})
		case "/users.list":
			writeJSON(w, map[string]any{
				"ok": true,
				"members": []map[string]any{
					{"id": "U1", "name": "alice", "profile": map[string]any{"display_name": "Alice"}},
					{"id": "U2", "name": "bob", "profile": map[string]any{"display_name": ""}},
				},
				"response_metadata": map[string]any{"next_cursor": ""},
			})
		case "/conversations.history":
			s.historyCalls++
			if s.historyCalls <= s.rateLimitFirstN {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			idx := 0
			if cursor, ok := payload["cursor"].(string); ok && cursor != "" {
				fmt.Sscanf(cursor, "page-%d", &idx)
			}
			if idx >= len(s.historyPages) {
				writeJSON(w, map[string]any{"ok": true, "messages": []any{}, "has_more": false})
				return
			}
			page := s.historyPages[idx]
			writeJSON(w, page)
		case "/conversations.replies":
			ts, _ := payload["ts"].(string)
			writeJSON(w, map[string]any{
				"ok":       true,
				"messages": s.replies[ts],
				"has_more": false,
			})
		default:
			writeJSON(w, map[string]any{"ok": false, "error": "unknown_method"})
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testConnector(t *testing.T, fake *slackServer) *Connector {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	return &Connector{
		cfg:    Config{Token: "xoxb-test"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		client: srv.Client(),
		retry: platform.RetryPolicy{
			MaxRateLimitRetries: 2,
			MaxTransportRetries: 1,
			InitialBackoff:      time.Millisecond,
			MaxBackoff:          5 * time.Millisecond,
		},
		apiBase: srv.URL + "/",
		mapping: history.UserMapping{},
	}
}

func TestFetchMergesChannelAndThreads(t *testing.T) {
	since := day(1, 0)
	parentTS := tsStr(day(2, 10))

	fake := &slackServer{
		historyPages: []map[string]any{
			{
				"ok": true,
				"messages": []map[string]any{
					{"ts": tsStr(day(2, 15)), "user": "U2", "text": "c2"},
					{"ts": parentTS, "user": "U1", "text": "parent", "thread_ts": parentTS},
				},
				"has_more": false,
			},
		},
		replies: map[string][]map[string]any{
			parentTS: {
				{"ts": parentTS, "user": "U1", "text": "parent", "thread_ts": parentTS},
				{"ts": tsStr(day(2, 11)), "user": "U2", "text": "r1", "thread_ts": parentTS},
				{"ts": tsStr(day(2, 16)), "user": "U1", "text": "r2", "thread_ts": parentTS},
			},
		},
	}

	c := testConnector(t, fake)
	h, first, err := c.FetchMessages(context.Background(), "project-x", since)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}

	if h.Len() != 4 {
		t.Fatalf("len = %d, want 4 (parent not duplicated)", h.Len())
	}
	want := []string{"parent", "r1", "c2", "r2"}
	for i, m := range h.Messages() {
		if m.Content != want[i] {
			t.Errorf("message %d = %q, want %q", i, m.Content, want[i])
		}
	}
	if !first.Equal(day(2, 10)) {
		t.Errorf("first = %v, want %v", first, day(2, 10))
	}

	mapping := c.UserMapping()
	if mapping["U1"] != "Alice" {
		t.Errorf("U1 display name = %q, want Alice", mapping["U1"])
	}
	if mapping["U2"] != "bob" {
		t.Errorf("U2 should fall back to name, got %q", mapping["U2"])
	}
}

func TestFetchPaginatesWithCursor(t *testing.T) {
	since := day(1, 0)
	fake := &slackServer{
		historyPages: []map[string]any{
			{
				"ok": true,
				"messages": []map[string]any{
					{"ts": tsStr(day(3, 10)), "user": "U1", "text": "newer"},
				},
				"has_more":          true,
				"response_metadata": map[string]any{"next_cursor": "page-1"},
			},
			{
				"ok": true,
				"messages": []map[string]any{
					{"ts": tsStr(day(2, 10)), "user": "U1", "text": "older"},
				},
				"has_more": false,
			},
		},
	}

	c := testConnector(t, fake)
	h, _, err := c.FetchMessages(context.Background(), "project-x", since)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if h.Len() != 2 {
		t.Fatalf("len = %d, want 2 across pages", h.Len())
	}
	if fake.historyCalls != 2 {
		t.Errorf("history calls = %d, want 2", fake.historyCalls)
	}
}

func TestFetchRetriesRateLimit(t *testing.T) {
	fake := &slackServer{
		historyPages: []map[string]any{
			{
				"ok": true,
				"messages": []map[string]any{
					{"ts": tsStr(day(2, 10)), "user": "U1", "text": "hi"},
				},
				"has_more": false,
			},
		},
		rateLimitFirstN: 1,
	}

	c := testConnector(t, fake)
	h, _, err := c.FetchMessages(context.Background(), "project-x", day(1, 0))
	if err != nil {
		t.Fatalf("FetchMessages after retry: %v", err)
	}
	if h.Len() != 1 {
		t.Errorf("len = %d, want 1", h.Len())
	}
	if fake.historyCalls != 2 {
		t.Errorf("history calls = %d, want 2 (one retry)", fake.historyCalls)
	}
}

func TestFetchChannelNotFound(t *testing.T) {
	c := testConnector(t, &slackServer{})
	_, _, err := c.FetchMessages(context.Background(), "no-such-channel", day(1, 0))

	var nfe *platform.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestClassifyAuthError(t *testing.T) {
	c := &Connector{}
	for _, code := range []string{"invalid_auth", "token_revoked", "account_inactive"} {
		err := c.classify("conversations.history", code, "C1")
		var ae *platform.AuthError
		if !errors.As(err, &ae) {
			t.Errorf("%s classified as %T, want AuthError", code, err)
		}
	}
}

func TestParseSlackTS(t *testing.T) {
	got := parseSlackTS("1750000000.123456")
	want := time.Unix(1750000000, 123456000).UTC()
	if !got.Equal(want) {
		t.Errorf("parseSlackTS = %v, want %v", got, want)
	}
	if !parseSlackTS("garbage").IsZero() {
		t.Error("parseSlackTS should return zero time on garbage input")
	}
}
