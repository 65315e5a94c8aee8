package textutil

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	markdownRenderer = goldmark.New()
	markupStripper   = bluemonday.StrictPolicy()
)

// PlainText renders markdown-formatted text (emphasis, lists, headings) and strips the resulting markup.
// Line structure is preserved; horizontal whitespace is collapsed.
func PlainText(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(source), &buf); err != nil {
		return CollapseLines(source)
	}
	stripped := markupStripper.Sanitize(buf.String())
	return CollapseLines(html.UnescapeString(stripped))
}
