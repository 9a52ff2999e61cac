// Package history defines the canonical, platform-agnostic representation
// of a fetched conversation: individual messages, the ordered ChatHistory
// snapshot, and the user-id to display-name mapping built during a fetch.
package history

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Message is a single chat message normalized from a platform fetch.
type Message struct {
	// AuthorID is the opaque platform user identifier.
	AuthorID string

	// AuthorDisplayName is resolved by the resolver pass; empty until then.
	AuthorDisplayName string

	// Content is the raw text body. Platform markup is left as-is except
	// mention tokens, which the resolver rewrites.
	Content string

	// Timestamp is the platform's authoritative send time, timezone-aware.
	// It is never reconstructed client-side.
	Timestamp time.Time

	// ThreadID identifies the thread this message belongs to.
	// Empty for top-level channel messages.
	ThreadID string

	// ThreadName is the human-readable thread title, when the platform
	// provides one.
	ThreadName string
}

// Format renders the message as a single transcript line.
func (m Message) Format() string {
	author := m.AuthorDisplayName
	if author == "" {
		author = m.AuthorID
	}
	return fmt.Sprintf("[%s] %s: %s", m.Timestamp.Format("2006-01-02 15:04:05"), author, m.Content)
}

// dedupKey identifies a message for duplicate elimination. Platforms that
// paginate with overlapping boundaries can return the same message twice.
func (m Message) dedupKey() string {
	return m.AuthorID + "\x00" + m.Timestamp.UTC().Format(time.RFC3339Nano) + "\x00" + m.Content
}

// ChatHistory is an ordered snapshot of messages for one fetch session.
// Messages are sorted by timestamp ascending across the merged set of
// channel and thread messages, with duplicates removed. The snapshot is
// built once and not mutated afterwards; the resolver produces a new
// ChatHistory rather than editing this one.
type ChatHistory struct {
	messages []Message
}

// New builds a ChatHistory from the given messages. The input slice is
// copied, sorted by timestamp ascending, and deduplicated on the
// (author, timestamp, content) triple. Sorting is stable so that
// platform-provided order is preserved among equal timestamps.
func New(msgs []Message) *ChatHistory {
	out := make([]Message, len(msgs))
	copy(out, msgs)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	seen := make(map[string]struct{}, len(out))
	deduped := out[:0]
	for _, m := range out {
		key := m.dedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, m)
	}

	return &ChatHistory{messages: deduped}
}

// Messages returns a copy of the message slice.
func (h *ChatHistory) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages.
func (h *ChatHistory) Len() int { return len(h.messages) }

// Empty reports whether the history holds no messages.
func (h *ChatHistory) Empty() bool { return len(h.messages) == 0 }

// FirstMessageDate returns the timestamp of the earliest message.
// The zero time is returned for an empty history.
func (h *ChatHistory) FirstMessageDate() time.Time {
	if len(h.messages) == 0 {
		return time.Time{}
	}
	return h.messages[0].Timestamp
}

// LastMessageDate returns the timestamp of the latest message.
// The zero time is returned for an empty history.
func (h *ChatHistory) LastMessageDate() time.Time {
	if len(h.messages) == 0 {
		return time.Time{}
	}
	return h.messages[len(h.messages)-1].Timestamp
}

// Span returns the wall-clock distance between the earliest and latest
// message. Zero for histories with fewer than two messages.
func (h *ChatHistory) Span() time.Duration {
	if len(h.messages) < 2 {
		return 0
	}
	return h.LastMessageDate().Sub(h.FirstMessageDate())
}

// Users returns the unique author display names in first-seen order,
// falling back to the raw author ID for unresolved messages.
func (h *ChatHistory) Users() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range h.messages {
		name := m.AuthorDisplayName
		if name == "" {
			name = m.AuthorID
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ThreadCount returns the number of distinct threads present.
func (h *ChatHistory) ThreadCount() int {
	threads := make(map[string]struct{})
	for _, m := range h.messages {
		if m.ThreadID != "" {
			threads[m.ThreadID] = struct{}{}
		}
	}
	return len(threads)
}

// Transcript renders the whole history as a human-readable text block,
// one message per line with thread sections delimited by header and
// footer markers. This is the serialization handed to the LLM and
// written by the file dump.
func (h *ChatHistory) Transcript() string {
	var b strings.Builder
	currentThread := ""

	for _, m := range h.messages {
		switch {
		case m.ThreadID != "" && m.ThreadID != currentThread:
			if currentThread != "" {
				b.WriteString("--- End of Thread ---\n")
			}
			name := m.ThreadName
			if name == "" {
				name = m.ThreadID
			}
			b.WriteString("\n--- Thread: " + name + " ---\n")
			currentThread = m.ThreadID
		case m.ThreadID == "" && currentThread != "":
			b.WriteString("--- End of Thread ---\n")
			currentThread = ""
		}
		b.WriteString(m.Format())
		b.WriteString("\n")
	}

	if currentThread != "" {
		b.WriteString("--- End of Thread ---\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// UserMapping maps platform user IDs to display names. It is built once
// per fetch session from platform metadata and is only valid for that
// fetch; users may join or leave between calls.
type UserMapping map[string]string

// Add records a user if both fields are non-empty. Existing entries win,
// so the first display name observed for an ID is kept.
func (u UserMapping) Add(id, displayName string) {
	if id == "" || displayName == "" {
		return
	}
	if _, ok := u[id]; !ok {
		u[id] = displayName
	}
}

// Clone returns a copy of the mapping.
func (u UserMapping) Clone() UserMapping {
	out := make(UserMapping, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}
