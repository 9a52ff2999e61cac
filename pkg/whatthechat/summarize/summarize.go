// Package summarize selects a summarization strategy from the time span
// a chat history covers and drives the LLM backend to produce the
// summary text.
package summarize

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/llm"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/resolve"
)

// ErrEmptyHistory is returned when a summary is requested for a history
// with zero messages. No LLM call is made in that case.
var ErrEmptyHistory = errors.New("summarize: chat history is empty")

// maxTranscriptBytes bounds the transcript handed to the backend. Long
// histories are truncated from the front: the most recent messages are
// the ones a summary needs.
const maxTranscriptBytes = 512 * 1024

// Summarizer generates summaries of a chat history.
type Summarizer struct {
	backend llm.Backend
	logger  *slog.Logger
}

// New creates a Summarizer on top of the given backend.
func New(backend llm.Backend, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		backend: backend,
		logger:  logger.With("component", "summarize"),
	}
}

// Generate selects a strategy from the history's time span, submits the
// serialized transcript to the backend, and returns the summary with
// mention ids restored to display names.
func (s *Summarizer) Generate(ctx context.Context, h *history.ChatHistory, mapping history.UserMapping) (string, error) {
	if h == nil || h.Empty() {
		return "", ErrEmptyHistory
	}

	strategy := SelectStrategy(h.FirstMessageDate(), h.LastMessageDate())
	s.logger.Info("generating summary",
		"strategy", strategy.String(),
		"messages", h.Len(),
		"span_days", int(h.Span().Hours()/24),
		"model", s.backend.Model(),
	)

	transcript := boundTranscript(h.Transcript())
	prompt := "Here is the chat history to summarize:\n\n" + transcript

	summary, err := s.backend.Complete(ctx, promptFor(strategy), nil, prompt)
	if err != nil {
		return "", err
	}

	return resolve.RestoreNames(summary, mapping), nil
}

// boundTranscript trims the transcript to the size cap, cutting whole
// lines from the front.
func boundTranscript(t string) string {
	if len(t) <= maxTranscriptBytes {
		return t
	}
	cut := t[len(t)-maxTranscriptBytes:]
	for i := 0; i < len(cut); i++ {
		if cut[i] == '\n' {
			return cut[i+1:]
		}
	}
	return cut
}
