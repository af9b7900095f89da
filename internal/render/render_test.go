package render

import (
	"strings"
	"testing"

	"chatbox/internal/events"
	"chatbox/internal/message"
	"chatbox/internal/segment"

	"github.com/stretchr/testify/require"
)

const z = string(segment.Sentinel)

func TestTranscriptStreamsInPlace(t *testing.T) {
	tr := NewTranscript()
	require.True(t, tr.AppendUser(message.Outbound{ID: "m1", AuthorName: "ada", Body: "hi", FileReferences: []message.FileReference{{ID: "s1"}}}))
	require.False(t, tr.AppendUser(message.Outbound{ID: "m1"}))

	require.True(t, tr.ApplyChunk(events.StreamChunk{MessageID: "r1", Content: "He" + z}))
	require.True(t, tr.ApplyChunk(events.StreamChunk{MessageID: "r1", Content: "Hello" + z}))
	require.True(t, tr.ApplyChunk(events.StreamChunk{MessageID: "r1", Content: "Hello!" + z, Final: true}))
	require.False(t, tr.ApplyChunk(events.StreamChunk{MessageID: "r1", Content: "late"}))

	entries := tr.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, Entry{ID: "m1", Role: RoleUser, Author: "ada", Content: "hi", Files: 1, Status: StatusQueued}, entries[0])
	require.Equal(t, "Hello!", entries[1].Content)
	require.False(t, entries[1].Streaming())

	last, ok := tr.LastAssistant()
	require.True(t, ok)
	require.Equal(t, "Hello!", last)
}

func TestDispatchDefaultRenderers(t *testing.T) {
	changes := 0
	ctx := &Context{Transcript: NewTranscript(), ThreadID: "t1", Changed: func() { changes++ }}
	renderers := DefaultRenderers()

	msg := message.Outbound{ID: "m1", Body: "hi"}
	require.True(t, Dispatch(ctx, renderers, events.NewEvent(events.EventMessageQueued, msg)))
	require.True(t, Dispatch(ctx, renderers, events.NewEvent(events.EventMessageFailed, msg)))
	Dispatch(ctx, renderers, events.NewEvent(events.EventStreamChunk, events.StreamChunk{MessageID: "x", ThreadID: "other", Content: "no"}))
	Dispatch(ctx, renderers, events.NewEvent(events.EventStreamChunk, events.StreamChunk{MessageID: "r1", ThreadID: "t1", Content: "yes" + z}))
	Dispatch(ctx, renderers, events.NewEvent(events.EventNotification, events.Notification{Level: events.LevelInfo, Text: "Cancelled upload of a.txt"}))
	require.False(t, Dispatch(ctx, renderers, events.NewEvent(events.EventAutoScroll, true)))

	entries := ctx.Transcript.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, StatusFailed, entries[0].Status)
	require.Equal(t, "yes"+z, entries[1].Content)
	require.True(t, entries[1].Streaming())
	require.Equal(t, RoleNotice, entries[2].Role)
	require.Equal(t, 4, changes)

	Dispatch(ctx, renderers, events.NewEvent(events.EventThreadReset, ""))
	require.Empty(t, ctx.Transcript.Entries())
	require.Empty(t, ctx.ThreadID)
}

func TestTerminalDrawsCursor(t *testing.T) {
	term, err := NewTerminal(TerminalConfig{Width: 40, Style: "notty", Cursor: "|"})
	require.NoError(t, err)

	out := term.Render("hello **world**" + z)
	require.Contains(t, out, "hello")
	require.Contains(t, out, "|")
	require.NotContains(t, out, z)

	require.NotContains(t, term.Render("done"), "|")
	require.Empty(t, term.Render(""))
}

func TestPlain(t *testing.T) {
	require.Equal(t, "ab_c_", Plain("ab"+z+"c"+z, "_"))
	require.Equal(t, "abc", Plain("abc", "_"))
}

func TestHTMLRendersCursorElement(t *testing.T) {
	out, err := NewHTML().Render("Streaming *reply*" + z)
	require.NoError(t, err)
	require.Equal(t, "<p>Streaming <em>reply</em>"+segment.HTMLCursor+"</p>\n", out)

	out, err = NewHTML().Render("`code" + z + "`")
	require.NoError(t, err)
	require.False(t, strings.Contains(out, segment.HTMLCursor))
}
