package events

import (
	"time"

	"chatbox/internal/message"
)

// OperationKind 表示出站提交的操作类型。
type OperationKind string

const (
	OperationSendMessage  OperationKind = "send_message"
	OperationReplyMessage OperationKind = "reply_message"
)

// Operation 描述一次出站提交的载荷。
type Operation struct {
	Kind           OperationKind
	Message        message.Outbound
	FileReferences []message.FileReference
}

// Submission 代表进入 SQ 的出站消息。
type Submission struct {
	ID        string
	Operation Operation
	Timestamp time.Time
	ThreadID  string
}

// EventType 描述 EQ 中分发的事件类型。
type EventType string

const (
	// EventAttachmentsChanged 的 Payload 为附件集合的完整快照。
	EventAttachmentsChanged EventType = "attachments.changed"
	EventNotification       EventType = "notification"
	EventAutoScroll         EventType = "chat.autoscroll"
	EventHistoryRecorded    EventType = "history.recorded"
	EventMessageQueued      EventType = "message.queued"
	EventMessageDelivered   EventType = "message.delivered"
	EventMessageFailed      EventType = "message.failed"
	// EventStreamChunk 的 Payload 为 StreamChunk。
	EventStreamChunk EventType = "stream.chunk"
	EventThreadReset EventType = "thread.reset"
)

// NotificationLevel 区分提示与错误。
type NotificationLevel string

const (
	LevelInfo  NotificationLevel = "info"
	LevelError NotificationLevel = "error"
)

// Notification 是非阻塞的用户可见提示。
type Notification struct {
	Level NotificationLevel
	Text  string
}

// StreamChunk 是助手流式输出的一段，Content 为截至目前的完整原始文本。
type StreamChunk struct {
	MessageID string
	ThreadID  string
	Content   string
	Final     bool
}

// Event 是 EQ 中传递的唯一消息格式。Payload 的具体结构由 Type 决定。
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
	Metadata  map[string]string
}

// NewEvent 以当前时间构造事件。
func NewEvent(typ EventType, payload any) Event {
	return Event{Type: typ, Timestamp: time.Now(), Payload: payload}
}
