// Package chat implements the interactive Q&A session over a resolved
// chat history: a strictly sequential command loop with a small state
// machine and a bounded conversation window against the LLM backend.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/llm"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/resolve"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/summarize"
)

// State is the session's position in its lifecycle.
type State int

const (
	// StateAwaitingInput waits at the prompt.
	StateAwaitingInput State = iota

	// StateProcessingCommand runs a reserved command (help, summary, users).
	StateProcessingCommand

	// StateProcessingQuery runs a free-form question against the backend.
	StateProcessingQuery

	// StateClosed is terminal.
	StateClosed
)

// ErrInterrupted is returned by a LineReader when the user sends an
// interrupt (Ctrl-C). The session closes immediately, discarding any
// in-flight work.
var ErrInterrupted = errors.New("chat: interrupted")

// LineReader supplies user input lines. The readline-backed
// implementation lives in input.go; tests script their own.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// maxTurns bounds the Q&A context window carried between questions.
// Oldest turns are dropped first.
const maxTurns = 20

// qaSystemPrompt frames free-form questions. The transcript is appended
// at session start.
const qaSystemPrompt = `You are a helpful assistant with access to a chat history.
You can answer questions about the content of this chat history.

When answering questions:
1. Be concise and direct.
2. Only reference information that is in the chat history.
3. If you don't know something, say so.
4. Use markdown formatting for better readability.
5. When mentioning users, use their mention ids (like <@123456789012345678>).

Here is the chat history you have access to:

`

// Session is one interactive run over a fixed history snapshot. It never
// mutates the history; it only accumulates its own turn history. The
// loop is strictly sequential: each turn fully resolves before the next
// prompt is shown.
type Session struct {
	id         string
	history    *history.ChatHistory
	mapping    history.UserMapping
	summarizer *summarize.Summarizer
	backend    llm.Backend
	in         LineReader
	out        io.Writer
	logger     *slog.Logger

	systemPrompt string
	turns        []llm.Turn
	state        State
}

// Config assembles a Session.
type Config struct {
	History    *history.ChatHistory
	Mapping    history.UserMapping
	Summarizer *summarize.Summarizer
	Backend    llm.Backend
	Input      LineReader
	Output     io.Writer
	Logger     *slog.Logger
}

// New creates a Session in StateAwaitingInput.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()[:8]
	return &Session{
		id:           id,
		history:      cfg.History,
		mapping:      cfg.Mapping,
		summarizer:   cfg.Summarizer,
		backend:      cfg.Backend,
		in:           cfg.Input,
		out:          cfg.Output,
		logger:       logger.With("component", "chat", "session", id),
		systemPrompt: qaSystemPrompt + cfg.History.Transcript(),
		state:        StateAwaitingInput,
	}
}

// State returns the current session state.
func (s *Session) State() State { return s.state }

// Run drives the command loop until the user exits or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("chat session started", "messages", s.history.Len())

	fmt.Fprintln(s.out, "Interactive chat over the collected history.")
	fmt.Fprintln(s.out, "Type 'exit', 'quit', or 'q' to end the session; 'help' for commands.")

	for s.state != StateClosed {
		if ctx.Err() != nil {
			s.close()
			return nil
		}

		line, err := s.in.ReadLine()
		switch {
		case errors.Is(err, ErrInterrupted):
			fmt.Fprintln(s.out, "\nSession interrupted.")
			s.close()
			return nil
		case errors.Is(err, io.EOF):
			s.close()
			return nil
		case err != nil:
			s.close()
			return fmt.Errorf("chat: reading input: %w", err)
		}

		s.handleLine(ctx, line)
	}
	return nil
}

// handleLine processes a single input line and returns the session to
// StateAwaitingInput unless the line closed it.
func (s *Session) handleLine(ctx context.Context, line string) {
	input := strings.TrimSpace(line)
	if input == "" {
		return
	}

	switch strings.ToLower(input) {
	case "exit", "quit", "q":
		s.close()
	case "help":
		s.state = StateProcessingCommand
		s.printHelp()
		s.state = StateAwaitingInput
	case "summary":
		s.state = StateProcessingCommand
		s.printSummary(ctx)
		s.state = StateAwaitingInput
	case "users":
		s.state = StateProcessingCommand
		s.printUsers()
		s.state = StateAwaitingInput
	default:
		s.state = StateProcessingQuery
		s.answer(ctx, input)
		s.state = StateAwaitingInput
	}
}

func (s *Session) close() {
	if s.state == StateClosed {
		return
	}
	fmt.Fprintln(s.out, "Thanks for using what-the-chat!")
	s.state = StateClosed
	s.logger.Info("chat session closed", "turns", len(s.turns))
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, "  help        - show this help message")
	fmt.Fprintln(s.out, "  summary     - generate a summary of the chat history")
	fmt.Fprintln(s.out, "  users       - list all users present in the chat history")
	fmt.Fprintln(s.out, "  exit/quit/q - end the chat session")
	fmt.Fprintln(s.out, "Anything else is answered as a question about the history.")
}

// printSummary runs the summarizer against the held history. Backend
// failures are reported and the session keeps running.
func (s *Session) printSummary(ctx context.Context) {
	fmt.Fprintln(s.out, "Generating summary...")

	summary, err := s.summarizer.Generate(ctx, s.history, s.mapping)
	if err != nil {
		s.reportError("summary", err)
		return
	}

	fmt.Fprintln(s.out, strings.Repeat("=", 60))
	fmt.Fprintln(s.out, summary)
	fmt.Fprintln(s.out, strings.Repeat("=", 60))
}

func (s *Session) printUsers() {
	users := s.history.Users()
	if len(users) == 0 {
		fmt.Fprintln(s.out, "No users found in the chat history.")
		return
	}
	fmt.Fprintln(s.out, "Users in the chat history:")
	for _, u := range users {
		fmt.Fprintf(s.out, "  @%s\n", u)
	}
}

// answer submits a free-form question with the bounded turn window.
func (s *Session) answer(ctx context.Context, question string) {
	response, err := s.backend.Complete(ctx, s.systemPrompt, s.turns, question)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupt mid-call: discard the partial turn.
			s.close()
			return
		}
		s.reportError("question", err)
		return
	}

	// The turn history keeps the raw response; only the printed copy has
	// mention ids replaced.
	s.turns = append(s.turns, llm.Turn{User: question, Assistant: response})
	if len(s.turns) > maxTurns {
		s.turns = s.turns[len(s.turns)-maxTurns:]
	}

	fmt.Fprintf(s.out, "\nAssistant: %s\n", resolve.RestoreNames(response, s.mapping))
}

// reportError prints a single clear line naming the failed operation.
// Raw stack traces never reach the interactive user.
func (s *Session) reportError(op string, err error) {
	var mue *llm.ModelUnavailableError
	if errors.As(err, &mue) {
		fmt.Fprintf(s.out, "The %s could not be generated: the model backend is unavailable (%v).\n", op, mue.Err)
		fmt.Fprintln(s.out, "Check the backend configuration and try again.")
	} else {
		fmt.Fprintf(s.out, "The %s failed: %v\n", op, err)
	}
	s.logger.Warn("turn failed", "op", op, "error", err)
}
