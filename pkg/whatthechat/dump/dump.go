// Package dump writes fetched transcripts and generated summaries to
// files named after the platform, channel, and covered date range.
package dump

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
)

const dateLayout = "2006-01-02"

// unsafeChars matches filename characters replaced with '-'.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Writer dumps histories and summaries into a target directory,
// creating it on first use.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a Writer targeting dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// WriteTranscript writes the plain-text transcript of h and returns the
// created file path.
func (w *Writer) WriteTranscript(platform, channel string, h *history.ChatHistory, first time.Time) (string, error) {
	name := w.fileName(platform, "history", channel, first, "txt")
	return w.write(name, h.Transcript())
}

// WriteSummary writes a generated summary as markdown and returns the
// created file path.
func (w *Writer) WriteSummary(platform, channel, summary string, first time.Time) (string, error) {
	name := w.fileName(platform, "history_summary", channel, first, "md")
	return w.write(name, summary)
}

// fileName builds <platform>_<kind>_<channel>_<firstDate>_<today>.<ext>.
func (w *Writer) fileName(platform, kind, channel string, first time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s_%s_%s.%s",
		sanitize(platform), kind, sanitize(channel),
		first.Format(dateLayout), w.now().Format(dateLayout), ext)
}

func (w *Writer) write(name, content string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("dump: creating %s: %w", w.dir, err)
	}

	path := filepath.Join(w.dir, name)
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("dump: writing %s: %w", path, err)
	}
	return path, nil
}

// sanitize makes a value safe for use in a filename.
func sanitize(s string) string {
	s = strings.TrimPrefix(s, "#")
	s = unsafeChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
