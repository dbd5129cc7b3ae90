// Package pretty renders Discord-flavoured markdown snippets shared by the
// bot's user-facing replies.
package pretty

import (
	"fmt"
	"strings"
)

// Item is one name/value row of a rendered list.
type Item struct {
	Name  string
	Value string
}

// Code wraps text in a fenced code block. lang may be empty.
func Code(text, lang string) string {
	return fmt.Sprintf("```%s\n%s\n```", lang, text)
}

// MarkdownList renders items as a bulleted list under an optional title line.
// It returns the empty string when items is empty so callers can substitute
// their own "nothing here" message.
func MarkdownList(title string, items ...Item) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- **%s**: %s", item.Name, item.Value)
	}
	return b.String()
}

// HelpList renders a command help text: a description line followed by one
// bullet per usage example.
func HelpList(desc string, items ...Item) string {
	var b strings.Builder
	b.WriteString(desc)
	for _, item := range items {
		fmt.Fprintf(&b, "\n- `%s`: %s", item.Name, item.Value)
	}
	return b.String()
}
