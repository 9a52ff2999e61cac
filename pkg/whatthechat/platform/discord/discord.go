// Package discord implements the Discord platform connector using discordgo.
//
// Messages are collected over the REST API only; no gateway connection is
// opened. The connector walks the channel history page by page, then
// enumerates every active and archived thread and merges their histories
// into a single timestamp-ordered ChatHistory.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/platform"
)

const (
	// pageSize is the Discord API maximum per history request.
	pageSize = 100

	// threadFetchWorkers bounds concurrent thread history fetches.
	// Thread histories are independent, so they can be fetched in
	// parallel and merged under a single ordering pass.
	threadFetchWorkers = 4
)

// Config holds Discord connector configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`
}

// restAPI is the slice of the discordgo REST surface the connector uses.
// *discordgo.Session satisfies it; tests substitute a fake.
type restAPI interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ThreadsActive(channelID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ThreadsArchived(channelID string, before *time.Time, limit int, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
}

// Connector implements platform.Connector for Discord.
type Connector struct {
	cfg    Config
	logger *slog.Logger
	api    restAPI
	retry  platform.RetryPolicy

	mu      sync.Mutex
	mapping history.UserMapping
}

// New creates a Discord connector. The underlying discordgo session is a
// REST client only and is reused across fetches.
func New(cfg Config, logger *slog.Logger) (*Connector, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: creating session: %w", err)
	}

	return &Connector{
		cfg:     cfg,
		logger:  logger.With("component", "discord"),
		api:     session,
		retry:   platform.DefaultRetryPolicy(),
		mapping: history.UserMapping{},
	}, nil
}

// Name returns "discord".
func (c *Connector) Name() string { return "discord" }

// UserMapping returns the mapping built by the most recent fetch.
func (c *Connector) UserMapping() history.UserMapping {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapping.Clone()
}

// FetchMessages collects the channel history and all thread histories
// since the given time. See platform.Connector for the contract.
func (c *Connector) FetchMessages(ctx context.Context, channelID string, since time.Time) (*history.ChatHistory, time.Time, error) {
	c.mu.Lock()
	c.mapping = history.UserMapping{}
	c.mu.Unlock()

	var ch *discordgo.Channel
	err := c.retry.Do(ctx, c.logger, "resolve channel", func() error {
		var apiErr error
		ch, apiErr = c.api.Channel(channelID)
		if apiErr != nil {
			return c.classify("resolve channel", channelID, apiErr)
		}
		return nil
	})
	if err != nil {
		return nil, since, err
	}

	c.logger.Info("fetching channel history",
		"channel", ch.Name,
		"channel_id", channelID,
		"since", since.Format(time.DateOnly),
	)

	msgs, err := c.fetchHistory(ctx, channelID, since, "", "")
	if err != nil {
		return nil, since, err
	}

	threads, err := c.listThreads(ctx, channelID, since)
	if err != nil {
		return nil, since, err
	}

	threadMsgs, err := c.fetchThreads(ctx, threads, since)
	if err != nil {
		// A failed thread fetch aborts the whole pipeline; no partial
		// history is handed downstream.
		return nil, since, err
	}
	msgs = append(msgs, threadMsgs...)

	h := history.New(msgs)

	first := since
	if !h.Empty() {
		first = h.FirstMessageDate()
	}

	c.mu.Lock()
	users := len(c.mapping)
	c.mu.Unlock()

	c.logger.Info("fetch complete",
		"messages", h.Len(),
		"threads", h.ThreadCount(),
		"users", users,
		"first_message", first.Format(time.DateOnly),
	)

	return h, first, nil
}

// fetchHistory walks a channel or thread history newest-first until the
// platform signals exhaustion or the oldest page crosses the since
// boundary. Messages are returned unordered; the caller merges and sorts.
func (c *Connector) fetchHistory(ctx context.Context, channelID string, since time.Time, threadID, threadName string) ([]history.Message, error) {
	var out []history.Message
	beforeID := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var page []*discordgo.Message
		err := c.retry.Do(ctx, c.logger, "fetch page", func() error {
			var apiErr error
			page, apiErr = c.api.ChannelMessages(channelID, pageSize, beforeID, "", "")
			if apiErr != nil {
				return c.classify("fetch page", channelID, apiErr)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		if len(page) == 0 {
			return out, nil
		}

		// Pages arrive newest-first.
		crossedBoundary := false
		for _, m := range page {
			if m.Timestamp.Before(since) {
				crossedBoundary = true
				continue
			}
			if m.Author != nil {
				c.recordUser(m.Author.ID, m.Author.Username)
			}
			msg := history.Message{
				AuthorID:   authorID(m),
				Content:    m.Content,
				Timestamp:  m.Timestamp,
				ThreadID:   threadID,
				ThreadName: threadName,
			}
			out = append(out, msg)
		}

		if crossedBoundary || len(page) < pageSize {
			return out, nil
		}
		beforeID = page[len(page)-1].ID
	}
}

// threadRef is a thread pending a history fetch.
type threadRef struct {
	id   string
	name string
}

// listThreads enumerates active and archived threads attached to the channel.
func (c *Connector) listThreads(ctx context.Context, channelID string, since time.Time) ([]threadRef, error) {
	var refs []threadRef
	seen := make(map[string]struct{})

	add := func(threads []*discordgo.Channel) {
		for _, t := range threads {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			refs = append(refs, threadRef{id: t.ID, name: t.Name})
		}
	}

	var active *discordgo.ThreadsList
	err := c.retry.Do(ctx, c.logger, "list active threads", func() error {
		var apiErr error
		active, apiErr = c.api.ThreadsActive(channelID)
		if apiErr != nil {
			return c.classify("list active threads", channelID, apiErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	add(active.Threads)

	// Archived threads paginate by archive timestamp, newest-first.
	// A thread archived before the cutoff cannot contain messages in
	// range, so pagination stops there.
	var before *time.Time
	for {
		var archived *discordgo.ThreadsList
		err := c.retry.Do(ctx, c.logger, "list archived threads", func() error {
			var apiErr error
			archived, apiErr = c.api.ThreadsArchived(channelID, before, pageSize)
			if apiErr != nil {
				return c.classify("list archived threads", channelID, apiErr)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		var oldestArchive time.Time
		for _, t := range archived.Threads {
			if t.ThreadMetadata != nil {
				at := t.ThreadMetadata.ArchiveTimestamp
				if oldestArchive.IsZero() || at.Before(oldestArchive) {
					oldestArchive = at
				}
				if at.Before(since) {
					continue
				}
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			refs = append(refs, threadRef{id: t.ID, name: t.Name})
		}

		if !archived.HasMore || len(archived.Threads) == 0 || (!oldestArchive.IsZero() && oldestArchive.Before(since)) {
			break
		}
		before = &oldestArchive
	}

	if len(refs) > 0 {
		c.logger.Info("threads discovered", "count", len(refs))
	}
	return refs, nil
}

// fetchThreads fetches thread histories concurrently and returns the
// merged, still-unordered message set. The first error aborts the result.
func (c *Connector) fetchThreads(ctx context.Context, threads []threadRef, since time.Time) ([]history.Message, error) {
	if len(threads) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		all      []history.Message
		firstErr error
	)

	sem := make(chan struct{}, threadFetchWorkers)
	var wg sync.WaitGroup

	for _, t := range threads {
		wg.Add(1)
		go func(t threadRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			msgs, err := c.fetchHistory(ctx, t.id, since, t.id, t.name)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			all = append(all, msgs...)
		}(t)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

func (c *Connector) recordUser(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapping.Add(id, name)
}

// classify maps discordgo REST failures onto the platform error taxonomy.
func (c *Connector) classify(op, channel string, err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &platform.AuthError{Platform: "discord", Err: err}
		case http.StatusNotFound:
			return &platform.NotFoundError{Platform: "discord", Channel: channel}
		case http.StatusTooManyRequests:
			return &platform.RateLimitError{Platform: "discord", Err: err}
		}
	}
	var tmr *discordgo.RateLimitError
	if errors.As(err, &tmr) {
		return &platform.RateLimitError{Platform: "discord", RetryAfter: tmr.RetryAfter, Err: err}
	}
	return &platform.TransportError{Platform: "discord", Op: op, Err: err}
}

func authorID(m *discordgo.Message) string {
	if m.Author == nil {
		return "unknown"
	}
	return m.Author.ID
}

// Compile-time interface verification.
var _ platform.Connector = (*Connector)(nil)
