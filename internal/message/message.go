// Package message holds the outbound chat entities shared by the composer and
// the transport layer.
package message

import "time"

// Kind 区分新消息与回复。
type Kind string

const (
	KindMessage Kind = "message"
	KindReply   Kind = "reply"
)

// FileReference 指向服务端已接收的附件。
type FileReference struct {
	ID string `json:"id"`
}

// Outbound 是提交时构造的一条用户消息，构造后不再修改。
type Outbound struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"threadId"`
	AuthorName     string          `json:"name"`
	Kind           Kind            `json:"type"`
	Body           string          `json:"output"`
	CreatedAt      time.Time       `json:"createdAt"`
	FileReferences []FileReference `json:"fileReferences,omitempty"`
}
