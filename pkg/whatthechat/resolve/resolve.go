// Package resolve rewrites raw user-id mention tokens into display names
// across a ChatHistory. It is a pure transform over copied messages; the
// input history is never mutated.
package resolve

import (
	"regexp"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
)

// mentionPattern matches raw mention tokens: <@123456> (Discord) and
// <@U0123ABC> (Slack). Rewritten mentions (@name) no longer match, which
// is what makes Resolve idempotent.
var mentionPattern = regexp.MustCompile(`<@!?([A-Za-z0-9]+)>`)

// unknownPrefix marks mentions whose id has no mapping entry. The raw id
// is kept so resolution never loses information silently.
const unknownPrefix = "@unknown-user:"

// Resolve returns a new ChatHistory with every mention token replaced by
// @<display name> and AuthorDisplayName populated from the mapping,
// falling back to the raw author id. Unknown mention ids become a stable
// placeholder carrying the original id.
//
// Running Resolve on an already-resolved history is a no-op.
func Resolve(h *history.ChatHistory, mapping history.UserMapping) *history.ChatHistory {
	msgs := h.Messages()
	for i := range msgs {
		msgs[i].Content = rewriteMentions(msgs[i].Content, mapping)
		if name, ok := mapping[msgs[i].AuthorID]; ok {
			msgs[i].AuthorDisplayName = name
		} else if msgs[i].AuthorDisplayName == "" {
			msgs[i].AuthorDisplayName = msgs[i].AuthorID
		}
	}
	return history.New(msgs)
}

// RestoreNames replaces raw mention tokens in arbitrary text (typically
// LLM output, which is instructed to reference users by id) with
// @<display name>. Unknown ids are left untouched.
func RestoreNames(text string, mapping history.UserMapping) string {
	return mentionPattern.ReplaceAllStringFunc(text, func(token string) string {
		id := mentionPattern.FindStringSubmatch(token)[1]
		if name, ok := mapping[id]; ok {
			return "@" + name
		}
		return token
	})
}

func rewriteMentions(content string, mapping history.UserMapping) string {
	return mentionPattern.ReplaceAllStringFunc(content, func(token string) string {
		id := mentionPattern.FindStringSubmatch(token)[1]
		if name, ok := mapping[id]; ok {
			return "@" + name
		}
		return unknownPrefix + id
	})
}
