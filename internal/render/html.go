package render

import (
	"bytes"

	"chatbox/internal/segment"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTML renders streamed markdown to HTML; cursor markers become
// segment.HTMLCursor elements at their position in the tree.
type HTML struct {
	md goldmark.Markdown
}

func NewHTML() *HTML {
	return &HTML{md: goldmark.New(goldmark.WithExtensions(extension.GFM, segment.Extension))}
}

func (h *HTML) Render(content string) (string, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
