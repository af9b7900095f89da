package render

import (
	"sync"

	"chatbox/internal/events"
	"chatbox/internal/message"
	"chatbox/internal/segment"
)

// Role 区分转录中的条目来源。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleNotice    Role = "notice"
)

// Status 描述用户消息的投递状态。
type Status string

const (
	StatusQueued    Status = "queued"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Entry 是转录中的一条记录。助手条目的 Content 保留原始文本，
// 流式过程中可能带有光标标记。
type Entry struct {
	ID      string
	Role    Role
	Author  string
	Content string
	Files   int
	Status  Status
	Level   events.NotificationLevel
	Final   bool
}

// Streaming 报告助手条目是否仍在输出。
func (e Entry) Streaming() bool {
	return e.Role == RoleAssistant && !e.Final
}

// Transcript 按到达顺序保存会话内容，流式片段按消息 ID 原地替换。
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	index   map[string]int
}

func NewTranscript() *Transcript {
	return &Transcript{index: map[string]int{}}
}

// AppendUser 追加一条用户消息；同一 ID 只记录一次。
func (t *Transcript) AppendUser(msg message.Outbound) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[msg.ID]; ok && msg.ID != "" {
		return false
	}
	t.push(Entry{
		ID:      msg.ID,
		Role:    RoleUser,
		Author:  msg.AuthorName,
		Content: msg.Body,
		Files:   len(msg.FileReferences),
		Status:  StatusQueued,
	})
	return true
}

// ApplyChunk 用片段内容替换同 ID 的助手条目，不存在时新建。
// 已结束的条目不再接受片段。
func (t *Transcript) ApplyChunk(chunk events.StreamChunk) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	content := chunk.Content
	if chunk.Final {
		content = segment.Strip(content)
	}
	if idx, ok := t.index[chunk.MessageID]; ok && chunk.MessageID != "" {
		if t.entries[idx].Final {
			return false
		}
		t.entries[idx].Content = content
		t.entries[idx].Final = chunk.Final
		return true
	}
	t.push(Entry{ID: chunk.MessageID, Role: RoleAssistant, Content: content, Final: chunk.Final})
	return true
}

// AppendNotice 追加一条提示。
func (t *Transcript) AppendNotice(n events.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.push(Entry{Role: RoleNotice, Content: n.Text, Level: n.Level, Final: true})
}

// SetStatus 更新用户消息的投递状态。
func (t *Transcript) SetStatus(id string, status Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.index[id]
	if !ok || t.entries[idx].Role != RoleUser || t.entries[idx].Status == status {
		return false
	}
	t.entries[idx].Status = status
	return true
}

// Entries 返回全部条目的副本。
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// LastAssistant 返回最近一条助手回复，去除光标标记。
func (t *Transcript) LastAssistant() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Role == RoleAssistant {
			return segment.Strip(t.entries[i].Content), true
		}
	}
	return "", false
}

// Reset 清空转录。
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.index = map[string]int{}
}

func (t *Transcript) push(e Entry) {
	if t.index == nil {
		t.index = map[string]int{}
	}
	if e.ID != "" {
		t.index[e.ID] = len(t.entries)
	}
	t.entries = append(t.entries, e)
}
