package chat

import (
	"errors"
	"io"

	"github.com/chzyer/readline"
)

// readlineInput is the terminal-backed LineReader with history and
// line editing.
type readlineInput struct {
	rl *readline.Instance
}

// NewReadlineInput opens a readline instance with the session prompt.
func NewReadlineInput() (LineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "\nYou: ",
		InterruptPrompt:   "^C",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, err
	}
	return &readlineInput{rl: rl}, nil
}

// ReadLine blocks for the next input line. Ctrl-C maps to
// ErrInterrupted, Ctrl-D to io.EOF.
func (r *readlineInput) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return "", ErrInterrupted
	case errors.Is(err, io.EOF):
		return "", io.EOF
	case err != nil:
		return "", err
	}
	return line, nil
}

// Close releases the terminal.
func (r *readlineInput) Close() error { return r.rl.Close() }
