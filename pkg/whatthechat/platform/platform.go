// Package platform defines the Connector abstraction that chat platforms
// implement, the shared error taxonomy for fetch operations, and the
// bounded retry helper used by the concrete connectors.
package platform

import (
	"context"
	"time"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
)

// Connector fetches message history from a single chat platform.
//
// Implementations hold no mutable shared state between calls other than
// cached auth session handles; each FetchMessages builds a fresh
// ChatHistory and user mapping.
type Connector interface {
	// Name returns the platform identifier ("discord", "slack").
	Name() string

	// FetchMessages collects the channel's direct message history plus
	// every attached thread, filtered to timestamps >= since, merged into
	// a single timestamp-ordered ChatHistory.
	//
	// The returned time is the first message date: the timestamp of the
	// earliest message actually returned, independent of the requested
	// cutoff. When no messages fall in range it equals since.
	FetchMessages(ctx context.Context, channel string, since time.Time) (*history.ChatHistory, time.Time, error)

	// UserMapping returns the user-id to display-name mapping built during
	// the most recent fetch. The mapping is only valid for that fetch.
	UserMapping() history.UserMapping
}
