package render

import (
	"chatbox/internal/events"
)

// Context holds shared state for all EQ event renderers.
// It is mutated by event-specific renderers to implement incremental rendering.
type Context struct {
	// ThreadID, if set, drops stream chunks that belong to another thread.
	ThreadID string
	// Transcript is the incremental transcript store.
	Transcript *Transcript
	// Changed is invoked after a renderer modified the transcript.
	// It can be nil if caller polls the transcript instead.
	Changed func()
}

// Touch forwards a transcript change to Changed if provided.
func (c *Context) Touch() {
	if c == nil || c.Changed == nil {
		return
	}
	c.Changed()
}

// EventRenderer renders a single EQ EventType.
type EventRenderer interface {
	Type() events.EventType
	Handle(ctx *Context, evt events.Event)
}

// Dispatch routes evt to its renderer; it reports false when no renderer is
// registered for the event type.
func Dispatch(ctx *Context, renderers map[events.EventType]EventRenderer, evt events.Event) bool {
	r, ok := renderers[evt.Type]
	if !ok || ctx == nil || ctx.Transcript == nil {
		return false
	}
	r.Handle(ctx, evt)
	return true
}
