// Package segment splits streamed assistant text around the live-typing
// sentinel so a cursor indicator can be rendered in place.
//
// The upstream producer marks the cursor position with a single reserved code
// point, U+200B ZERO WIDTH SPACE. Genuine content is assumed never to contain
// it; if it does, the occurrence is rendered as a cursor.
package segment

import "strings"

// Sentinel is the code point the stream producer inserts where the cursor goes.
const Sentinel = '\u200B'

const sentinel = string(Sentinel)

// Kind tags a Segment.
type Kind string

const (
	KindText   Kind = "text"
	KindCursor Kind = "cursorMarker"
)

// Segment is either a run of literal text or a cursor marker.
type Segment struct {
	Kind  Kind
	Value string
}

// Text returns a text segment.
func Text(v string) Segment { return Segment{Kind: KindText, Value: v} }

// Cursor returns a cursor-marker segment.
func Cursor() Segment { return Segment{Kind: KindCursor} }

// Split scans text left to right and emits the text before each sentinel, a
// cursor marker per sentinel, and any trailing text. Zero-length text segments
// are never emitted, so "" yields no segments. The search is byte-exact, which
// keeps invalid UTF-8 intact as opaque text.
func Split(text string) []Segment {
	if !strings.Contains(text, sentinel) {
		if text == "" {
			return nil
		}
		return []Segment{Text(text)}
	}
	out := make([]Segment, 0, 2*strings.Count(text, sentinel)+1)
	rest := text
	for {
		idx := strings.Index(rest, sentinel)
		if idx < 0 {
			break
		}
		if idx > 0 {
			out = append(out, Text(rest[:idx]))
		}
		out = append(out, Cursor())
		rest = rest[idx+len(sentinel):]
	}
	if rest != "" {
		out = append(out, Text(rest))
	}
	return out
}

// Texts concatenates the text segments, ignoring markers.
func Texts(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Kind == KindText {
			b.WriteString(s.Value)
		}
	}
	return b.String()
}

// Join renders segments as a string, replacing each marker with cursor.
func Join(segments []Segment, cursor string) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Kind == KindCursor {
			b.WriteString(cursor)
			continue
		}
		b.WriteString(s.Value)
	}
	return b.String()
}

// HasCursor reports whether text carries at least one sentinel.
func HasCursor(text string) bool {
	return strings.Contains(text, sentinel)
}

// Strip removes every sentinel from text.
func Strip(text string) string {
	return strings.ReplaceAll(text, sentinel, "")
}
