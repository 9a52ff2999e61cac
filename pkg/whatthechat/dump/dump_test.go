package dump

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
)

func fixedNow() time.Time {
	return time.Date(2025, 5, 10, 15, 0, 0, 0, time.UTC)
}

func testWriter(t *testing.T) *Writer {
	t.Helper()
	w := NewWriter(filepath.Join(t.TempDir(), "dumps"))
	w.now = fixedNow
	return w
}

func TestWriteTranscript(t *testing.T) {
	w := testWriter(t)
	h := history.New([]history.Message{
		{AuthorID: "1", AuthorDisplayName: "alice", Content: "hello", Timestamp: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)},
	})

	path, err := w.WriteTranscript("discord", "general", h, h.FirstMessageDate())
	if err != nil {
		t.Fatalf("WriteTranscript: %v", err)
	}
	if got := filepath.Base(path); got != "discord_history_general_2025-05-01_2025-05-10.txt" {
		t.Errorf("file name = %q", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "alice: hello") {
		t.Errorf("transcript content missing:\n%s", data)
	}
}

func TestWriteSummary(t *testing.T) {
	w := testWriter(t)
	first := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

	path, err := w.WriteSummary("slack", "#proj-x", "## Summary\nall good", first)
	if err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if got := filepath.Base(path); got != "slack_history_summary_proj-x_2025-04-20_2025-05-10.md" {
		t.Errorf("file name = %q", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "## Summary") {
		t.Errorf("summary content = %q", data)
	}
}

func TestSanitizeChannelNames(t *testing.T) {
	tests := []struct{ in, want string }{
		{"general", "general"},
		{"#general", "general"},
		{"team chat/ops", "team-chat-ops"},
		{"a:b*c", "a-b-c"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriterCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "dumps")
	w := NewWriter(dir)
	w.now = fixedNow

	if _, err := w.WriteSummary("discord", "c", "s", fixedNow()); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("target dir not created: %v", err)
	}
}
