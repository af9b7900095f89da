package transport

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"chatbox/internal/attachment"
	"chatbox/internal/events"
	"chatbox/internal/logger"
	"chatbox/internal/message"
	"chatbox/internal/segment"

	"github.com/google/uuid"
)

// ErrEmptyFile 表示附件没有可读取的内容。
var ErrEmptyFile = errors.New("file has no content")

// Loopback 是无服务器时的离线传输：上传只在本地读完文件并模拟进度，
// 发送消息时把原文作为助手回复逐段流式回放，末尾带光标标记。
type Loopback struct {
	Events events.Publisher
	// Step 为每段上传/回放之间的间隔，0 表示不等待。
	Step time.Duration
	// ChunkRunes 是每次回放的字符数，默认 8。
	ChunkRunes int
	// BlockSize 是模拟上传每次读取的字节数，默认 32KiB。
	BlockSize int
	Prefix    string
	Log       *logger.LogEntry
}

// NewLoopback 创建带默认参数的离线传输。
func NewLoopback(pub events.Publisher) *Loopback {
	return &Loopback{
		Events:     pub,
		Step:       30 * time.Millisecond,
		ChunkRunes: 8,
		BlockSize:  32 * 1024,
		Prefix:     "echo: ",
	}
}

// Upload 实现 attachment.Uploader。
func (l *Loopback) Upload(ctx context.Context, file attachment.File, onProgress func(int)) (attachment.UploadResult, error) {
	if file.Open == nil {
		return attachment.UploadResult{}, ErrEmptyFile
	}
	rc, err := file.Open()
	if err != nil {
		return attachment.UploadResult{}, err
	}
	defer rc.Close()

	pr := NewProgressReader(rc, file.Size, onProgress)
	buf := make([]byte, max(l.BlockSize, 1))
	for {
		if err := l.wait(ctx); err != nil {
			return attachment.UploadResult{}, err
		}
		_, err := pr.Read(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return attachment.UploadResult{}, err
		}
	}
	id := "file-" + uuid.NewString()
	l.logger().WithFields(logger.Fields{"name": file.Name, "server_id": id, "bytes": pr.BytesRead()}).Info("loopback upload stored")
	return attachment.UploadResult{ID: id}, nil
}

// SendMessage 实现 Messenger。
func (l *Loopback) SendMessage(ctx context.Context, msg message.Outbound, refs []message.FileReference) error {
	body := msg.Body
	if len(refs) > 0 {
		ids := make([]string, 0, len(refs))
		for _, ref := range refs {
			ids = append(ids, ref.ID)
		}
		body += "\n\nfiles: " + strings.Join(ids, ", ")
	}
	return l.stream(ctx, msg, l.Prefix+body)
}

// ReplyMessage 实现 Messenger。
func (l *Loopback) ReplyMessage(ctx context.Context, msg message.Outbound) error {
	return l.stream(ctx, msg, l.Prefix+msg.Body)
}

func (l *Loopback) stream(ctx context.Context, msg message.Outbound, text string) error {
	thread := msg.ThreadID
	if thread == "" {
		thread = "thread-" + uuid.NewString()
	}
	replyID := uuid.NewString()
	runes := []rune(segment.Strip(text))
	size := l.ChunkRunes
	if size <= 0 {
		size = 8
	}
	for end := min(size, len(runes)); ; end = min(end+size, len(runes)) {
		if err := l.wait(ctx); err != nil {
			return err
		}
		final := end == len(runes)
		content := string(runes[:end])
		if !final {
			content += string(segment.Sentinel)
		}
		l.emit(events.StreamChunk{MessageID: replyID, ThreadID: thread, Content: content, Final: final})
		if final {
			return nil
		}
	}
}

func (l *Loopback) emit(chunk events.StreamChunk) {
	if l.Events == nil {
		return
	}
	_ = l.Events.Publish(context.Background(), events.NewEvent(events.EventStreamChunk, chunk))
}

func (l *Loopback) wait(ctx context.Context) error {
	if l.Step <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(l.Step)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Loopback) logger() *logger.LogEntry {
	if l.Log != nil {
		return l.Log
	}
	return logger.Named("loopback")
}
