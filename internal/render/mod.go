package render

import "chatbox/internal/events"

// DefaultRenderers returns the built-in per-event renderers.
func DefaultRenderers() map[events.EventType]EventRenderer {
	renderers := []EventRenderer{
		messageQueuedRenderer{},
		streamChunkRenderer{},
		notificationRenderer{},
		messageStatusRenderer{typ: events.EventMessageDelivered, status: StatusDelivered},
		messageStatusRenderer{typ: events.EventMessageFailed, status: StatusFailed},
		threadResetRenderer{},
	}
	out := make(map[events.EventType]EventRenderer, len(renderers))
	for _, r := range renderers {
		out[r.Type()] = r
	}
	return out
}
