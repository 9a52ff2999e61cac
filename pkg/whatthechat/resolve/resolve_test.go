package resolve

import (
	"reflect"
	"testing"
	"time"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
)

func ts(h int) time.Time {
	return time.Date(2025, time.March, 1, h, 0, 0, 0, time.UTC)
}

func TestResolveRewritesMentions(t *testing.T) {
	h := history.New([]history.Message{
		{AuthorID: "100", Content: "ping <@200>, see <@!100>", Timestamp: ts(9)},
		{AuthorID: "200", Content: "ack <@U0AB12>", Timestamp: ts(10)},
	})
	mapping := history.UserMapping{
		"100":    "alice",
		"200":    "bob",
		"U0AB12": "carol",
	}

	resolved := Resolve(h, mapping)
	msgs := resolved.Messages()

	if msgs[0].Content != "ping @bob, see @alice" {
		t.Errorf("content = %q", msgs[0].Content)
	}
	if msgs[1].Content != "ack @carol" {
		t.Errorf("content = %q", msgs[1].Content)
	}
	if msgs[0].AuthorDisplayName != "alice" || msgs[1].AuthorDisplayName != "bob" {
		t.Errorf("display names = %q, %q", msgs[0].AuthorDisplayName, msgs[1].AuthorDisplayName)
	}
}

func TestResolveUnknownIDKeepsInformation(t *testing.T) {
	h := history.New([]history.Message{
		{AuthorID: "999", Content: "hi <@555>", Timestamp: ts(9)},
	})

	resolved := Resolve(h, history.UserMapping{})
	m := resolved.Messages()[0]

	if m.Content != "hi @unknown-user:555" {
		t.Errorf("content = %q, raw id must survive", m.Content)
	}
	if m.AuthorDisplayName != "999" {
		t.Errorf("display name = %q, want raw id fallback", m.AuthorDisplayName)
	}
}

func TestResolveIdempotent(t *testing.T) {
	h := history.New([]history.Message{
		{AuthorID: "100", Content: "hey <@200> and <@777>", Timestamp: ts(9)},
		{AuthorID: "200", Content: "plain text", Timestamp: ts(10)},
	})
	mapping := history.UserMapping{"100": "alice", "200": "bob"}

	once := Resolve(h, mapping)
	twice := Resolve(once, mapping)

	if !reflect.DeepEqual(once.Messages(), twice.Messages()) {
		t.Errorf("resolve not idempotent:\nonce:  %v\ntwice: %v", once.Messages(), twice.Messages())
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	h := history.New([]history.Message{
		{AuthorID: "100", Content: "hi <@200>", Timestamp: ts(9)},
	})
	_ = Resolve(h, history.UserMapping{"200": "bob"})

	if h.Messages()[0].Content != "hi <@200>" {
		t.Error("input history was mutated")
	}
}

func TestRestoreNames(t *testing.T) {
	mapping := history.UserMapping{"123": "alice"}

	got := RestoreNames("done by <@123>, pending for <@456>", mapping)
	want := "done by @alice, pending for <@456>"
	if got != want {
		t.Errorf("RestoreNames = %q, want %q", got, want)
	}
}
