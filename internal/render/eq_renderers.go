package render

import (
	"chatbox/internal/events"
	"chatbox/internal/message"
)

type messageQueuedRenderer struct{}

func (messageQueuedRenderer) Type() events.EventType { return events.EventMessageQueued }

func (messageQueuedRenderer) Handle(ctx *Context, evt events.Event) {
	msg, ok := evt.Payload.(message.Outbound)
	if !ok {
		return
	}
	if ctx.Transcript.AppendUser(msg) {
		ctx.Touch()
	}
}

type streamChunkRenderer struct{}

func (streamChunkRenderer) Type() events.EventType { return events.EventStreamChunk }

func (streamChunkRenderer) Handle(ctx *Context, evt events.Event) {
	chunk, ok := evt.Payload.(events.StreamChunk)
	if !ok {
		return
	}
	if ctx.ThreadID != "" && chunk.ThreadID != "" && chunk.ThreadID != ctx.ThreadID {
		return
	}
	if ctx.Transcript.ApplyChunk(chunk) {
		ctx.Touch()
	}
}

type notificationRenderer struct{}

func (notificationRenderer) Type() events.EventType { return events.EventNotification }

func (notificationRenderer) Handle(ctx *Context, evt events.Event) {
	n, ok := evt.Payload.(events.Notification)
	if !ok || n.Text == "" {
		return
	}
	ctx.Transcript.AppendNotice(n)
	ctx.Touch()
}

// messageStatusRenderer marks a user entry once the transport settled it.
type messageStatusRenderer struct {
	typ    events.EventType
	status Status
}

func (r messageStatusRenderer) Type() events.EventType { return r.typ }

func (r messageStatusRenderer) Handle(ctx *Context, evt events.Event) {
	msg, ok := evt.Payload.(message.Outbound)
	if !ok {
		return
	}
	if ctx.Transcript.SetStatus(msg.ID, r.status) {
		ctx.Touch()
	}
}

type threadResetRenderer struct{}

func (threadResetRenderer) Type() events.EventType { return events.EventThreadReset }

func (threadResetRenderer) Handle(ctx *Context, evt events.Event) {
	thread, _ := evt.Payload.(string)
	ctx.ThreadID = thread
	ctx.Transcript.Reset()
	ctx.Touch()
}
