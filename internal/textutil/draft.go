// Package textutil cleans up free text returned by language models.
package textutil

import (
	"strings"
)

// StripMarkdownFences removes a ```lang ... ``` wrapper around text.
// Text without an opening fence is returned trimmed and otherwise unchanged.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	end := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

// PlainDraft turns a model draft into plain text: fences are removed, and
// so are heading markers and bold/italic emphasis. Line structure, numbered
// steps and "- " bullets are kept.
func PlainDraft(text string) string {
	text = StripMarkdownFences(strings.ReplaceAll(text, "\r\n", "\n"))

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		if trimmed := strings.TrimLeft(line, "#"); trimmed != line && strings.HasPrefix(trimmed, " ") {
			line = strings.TrimSpace(trimmed)
		}
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "__", "")
		if strings.HasPrefix(line, "* ") {
			line = "- " + line[2:]
		}
		lines[i] = line
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
