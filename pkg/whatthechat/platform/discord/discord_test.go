package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/platform"
)

func testConnector(api restAPI) *Connector {
	return &Connector{
		cfg:    Config{Token: "test"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		api:    api,
		retry: platform.RetryPolicy{
			MaxRateLimitRetries: 2,
			MaxTransportRetries: 1,
			InitialBackoff:      time.Millisecond,
			MaxBackoff:          5 * time.Millisecond,
		},
		mapping: history.UserMapping{},
	}
}

// fakeAPI serves canned channel pages and thread histories.
type fakeAPI struct {
	channelPages [][]*discordgo.Message
	threadMsgs   map[string][]*discordgo.Message
	threads      []*discordgo.Channel

	pageCalls   int
	failOnPage  int // 1-based page index that fails, 0 = never
	failErr     error
	failures    int // how many times the failing page errors before succeeding
	failuresMax int
}

func (f *fakeAPI) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if channelID == "missing" {
		return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	}
	return &discordgo.Channel{ID: channelID, Name: "general"}, nil
}

func (f *fakeAPI) ChannelMessages(channelID string, _ int, beforeID, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	if msgs, ok := f.threadMsgs[channelID]; ok {
		if beforeID != "" {
			return nil, nil
		}
		return msgs, nil
	}

	f.pageCalls++
	if f.failOnPage > 0 && f.pageCalls == f.failOnPage && f.failures < f.failuresMax {
		f.failures++
		f.pageCalls-- // the retried call hits the same page again
		return nil, f.failErr
	}

	page := 0
	if beforeID != "" {
		for i, p := range f.channelPages {
			last := p[len(p)-1]
			if last.ID == beforeID {
				page = i + 1
				break
			}
		}
	}
	if page >= len(f.channelPages) {
		return nil, nil
	}
	return f.channelPages[page], nil
}

func (f *fakeAPI) ThreadsActive(string, ...discordgo.RequestOption) (*discordgo.ThreadsList, error) {
	return &discordgo.ThreadsList{Threads: f.threads}, nil
}

func (f *fakeAPI) ThreadsArchived(string, *time.Time, int, ...discordgo.RequestOption) (*discordgo.ThreadsList, error) {
	return &discordgo.ThreadsList{}, nil
}

func msg(id, author, content string, ts time.Time) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		Content:   content,
		Timestamp: ts,
		Author:    &discordgo.User{ID: author, Username: "user-" + author},
	}
}

func day(d, h int) time.Time {
	return time.Date(2025, time.June, d, h, 0, 0, 0, time.UTC)
}

func TestFetchMergesChannelAndThreads(t *testing.T) {
	since := day(1, 0)
	api := &fakeAPI{
		channelPages: [][]*discordgo.Message{
			{
				msg("m2", "alice", "c2", day(2, 15)),
				msg("m1", "bob", "c1", day(2, 9)),
			},
		},
		threads: []*discordgo.Channel{{ID: "t1", Name: "planning"}},
		threadMsgs: map[string][]*discordgo.Message{
			"t1": {
				msg("tm3", "carol", "t3", day(2, 16)),
				msg("tm2", "carol", "t2", day(2, 12)),
				msg("tm1", "alice", "t1", day(2, 10)),
			},
		},
	}

	c := testConnector(api)
	h, first, err := c.FetchMessages(context.Background(), "chan", since)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}

	if h.Len() != 5 {
		t.Fatalf("len = %d, want 5", h.Len())
	}
	want := []string{"c1", "t1", "t2", "c2", "t3"}
	for i, m := range h.Messages() {
		if m.Content != want[i] {
			t.Errorf("message %d = %q, want %q", i, m.Content, want[i])
		}
	}
	if !first.Equal(day(2, 9)) {
		t.Errorf("first message date = %v, want %v", first, day(2, 9))
	}

	mapping := c.UserMapping()
	if mapping["alice"] != "user-alice" || mapping["carol"] != "user-carol" {
		t.Errorf("user mapping incomplete: %v", mapping)
	}

	// Thread messages carry their thread tag.
	for _, m := range h.Messages() {
		if m.Content[0] == 't' && m.ThreadID != "t1" {
			t.Errorf("thread message %q missing thread id", m.Content)
		}
	}
}

func TestFetchStopsAtSinceBoundary(t *testing.T) {
	since := day(10, 0)

	// Page 1 is full (simulated by exactly pageSize messages would be
	// unwieldy; instead the last page message is older than since, which
	// also stops the walk).
	api := &fakeAPI{
		channelPages: [][]*discordgo.Message{
			{
				msg("m3", "a", "new", day(11, 10)),
				msg("m2", "a", "edge", day(10, 0)),
				msg("m1", "a", "old", day(9, 23)),
			},
			{
				msg("m0", "a", "ancient", day(1, 1)),
			},
		},
	}

	c := testConnector(api)
	h, _, err := c.FetchMessages(context.Background(), "chan", since)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}

	if h.Len() != 2 {
		t.Fatalf("len = %d, want 2 (since is inclusive, older dropped)", h.Len())
	}
	if api.pageCalls != 1 {
		t.Errorf("page calls = %d, want 1 (no fetch past the boundary)", api.pageCalls)
	}
}

func TestFetchRetriesRateLimit(t *testing.T) {
	since := day(1, 0)
	api := &fakeAPI{
		channelPages: [][]*discordgo.Message{
			{msg("m1", "a", "hello", day(2, 9))},
		},
		failOnPage:  1,
		failuresMax: 1,
		failErr:     &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}},
	}

	c := testConnector(api)
	h, _, err := c.FetchMessages(context.Background(), "chan", since)
	if err != nil {
		t.Fatalf("FetchMessages after retry: %v", err)
	}
	if h.Len() != 1 {
		t.Errorf("len = %d, want 1", h.Len())
	}
	if api.failures != 1 {
		t.Errorf("failures consumed = %d, want 1", api.failures)
	}
}

func TestFetchRateLimitExhaustedReturnsNoPartialHistory(t *testing.T) {
	since := day(1, 0)
	api := &fakeAPI{
		channelPages: [][]*discordgo.Message{
			{msg("m1", "a", "hello", day(2, 9))},
		},
		failOnPage:  1,
		failuresMax: 100, // always fail
		failErr:     &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}},
	}

	c := testConnector(api)
	h, _, err := c.FetchMessages(context.Background(), "chan", since)

	var rle *platform.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	if h != nil {
		t.Error("partial history returned alongside error")
	}
	if api.failures < 2 {
		t.Errorf("failures = %d, want at least one retry before surfacing", api.failures)
	}
}

func TestFetchChannelNotFound(t *testing.T) {
	c := testConnector(&fakeAPI{})
	_, _, err := c.FetchMessages(context.Background(), "missing", day(1, 0))

	var nfe *platform.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if nfe.Channel != "missing" {
		t.Errorf("NotFoundError.Channel = %q, want %q", nfe.Channel, "missing")
	}
}

func TestClassifyAuthError(t *testing.T) {
	c := testConnector(&fakeAPI{})
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		err := c.classify("fetch", "chan", &discordgo.RESTError{Response: &http.Response{StatusCode: code}})
		var ae *platform.AuthError
		if !errors.As(err, &ae) {
			t.Errorf("status %d classified as %T, want AuthError", code, err)
		}
	}
}

func TestClassifyTransportFallback(t *testing.T) {
	c := testConnector(&fakeAPI{})
	err := c.classify("fetch", "chan", fmt.Errorf("dial tcp: connection refused"))
	var te *platform.TransportError
	if !errors.As(err, &te) {
		t.Errorf("classified as %T, want TransportError", err)
	}
}
