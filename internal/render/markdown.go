package render

import (
	"fmt"
	"strings"
	"sync"

	"chatbox/internal/segment"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// DefaultCursor is drawn where a streaming reply is still being written.
const DefaultCursor = "▍"

var cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)

// TerminalConfig configures markdown rendering for the terminal.
type TerminalConfig struct {
	Width int
	// Style is "auto" or a glamour standard style name (dark, light, notty, ascii...).
	Style  string
	Cursor string
}

// Terminal renders assistant markdown with glamour. Cursor markers become a
// styled glyph in the output.
type Terminal struct {
	mu     sync.Mutex
	r      *glamour.TermRenderer
	cursor string
	width  int
}

// NewTerminal creates a terminal renderer.
func NewTerminal(cfg TerminalConfig) (*Terminal, error) {
	opts := []glamour.TermRendererOption{}
	switch style := strings.TrimSpace(cfg.Style); style {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	if cfg.Width > 0 {
		opts = append(opts, glamour.WithWordWrap(cfg.Width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create glamour renderer: %w", err)
	}
	cursor := cfg.Cursor
	if cursor == "" {
		cursor = DefaultCursor
	}
	return &Terminal{r: r, cursor: cursor, width: cfg.Width}, nil
}

// Render turns raw streamed content into terminal output. It never fails:
// content glamour cannot handle is returned as plain text.
func (t *Terminal) Render(content string) string {
	segs := segment.Split(content)
	if len(segs) == 0 {
		return ""
	}
	src := segment.Join(segs, t.cursor)

	t.mu.Lock()
	out, err := t.r.Render(src)
	t.mu.Unlock()
	if err != nil {
		out = src
	}
	out = strings.Trim(out, "\n")
	if segment.HasCursor(content) {
		out = strings.ReplaceAll(out, t.cursor, cursorStyle.Render(t.cursor))
	}
	return out
}

// Plain renders content without markdown, drawing markers with cursor.
func Plain(content, cursor string) string {
	return segment.Join(segment.Split(content), cursor)
}
