// Package session owns the state of one composition session: the draft's
// attachments, the input history, and the current thread.
package session

import (
	"context"
	"sync"

	"chatbox/internal/attachment"
	"chatbox/internal/composer"
	"chatbox/internal/events"
	"chatbox/internal/history"
	"chatbox/internal/i18n"
	"chatbox/internal/logger"
	"chatbox/internal/message"
)

type Options struct {
	Uploader        attachment.Uploader
	Sender          composer.Sender
	Events          *events.EventQueue
	Spec            attachment.FileSpec
	Printer         *i18n.Printer
	User            string
	HistoryCapacity int
	// ThreadID resumes an existing thread.
	ThreadID string
	Log      *logger.LogEntry
}

// Session 是显式的状态容器；观察者通过 Events 订阅变化。
type Session struct {
	Events      *events.EventQueue
	Attachments *attachment.Manager
	History     *history.Store
	Recall      *history.Recall
	Composer    *composer.Composer

	mu       sync.Mutex
	threadID string
	log      *logger.LogEntry
}

func New(opts Options) *Session {
	s := &Session{
		Events:   opts.Events,
		History:  history.New(opts.HistoryCapacity),
		threadID: opts.ThreadID,
		log:      opts.Log,
	}
	if s.Events == nil {
		s.Events = events.NewEventQueue(0)
	}
	if s.log == nil {
		s.log = logger.Named("session")
	}
	s.Recall = history.NewRecall(s.History)
	s.Attachments = attachment.NewManager(attachment.Options{
		Uploader: opts.Uploader,
		Events:   s.Events,
		Spec:     opts.Spec,
		Printer:  opts.Printer,
	})
	s.Composer = composer.New(composer.Options{
		Sender:   opts.Sender,
		History:  s.History,
		Events:   s.Events,
		Identity: composer.StaticIdentity(opts.User),
		ThreadID: s.ThreadID,
	})
	return s
}

// ThreadID 返回当前线程，服务端尚未分配时为空。
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Submit 发送输入框内容与已完成上传的附件，然后清空草稿附件。
func (s *Session) Submit(text string) message.Outbound {
	msg := s.Composer.Submit(text, s.Attachments.Attachments())
	s.Attachments.Reset()
	s.Recall.Reset()
	return msg
}

// Reply 以回复形式发送，附件保持不变。
func (s *Session) Reply(text string) message.Outbound {
	return s.Composer.Reply(text)
}

// Observe 处理 EQ 事件：第一个带线程 ID 的流式片段确定当前线程。
func (s *Session) Observe(evt events.Event) {
	chunk, ok := evt.Payload.(events.StreamChunk)
	if !ok || evt.Type != events.EventStreamChunk || chunk.ThreadID == "" {
		return
	}
	s.mu.Lock()
	adopted := s.threadID == ""
	if adopted {
		s.threadID = chunk.ThreadID
	}
	s.mu.Unlock()
	if adopted {
		s.log.WithField("thread_id", chunk.ThreadID).Info("thread assigned")
	}
}

// NewThread 切换到新线程：中止上传、清空附件与输入历史。
func (s *Session) NewThread() {
	s.mu.Lock()
	prev := s.threadID
	s.threadID = ""
	s.mu.Unlock()

	s.Attachments.Reset()
	s.History.Reset()
	s.Recall.Reset()
	s.log.WithField("previous_thread", prev).Info("thread reset")
	_ = s.Events.Publish(context.Background(), events.NewEvent(events.EventThreadReset, ""))
}

// Close 中止所有上传并等待其退出。
func (s *Session) Close() {
	s.Attachments.Reset()
	s.Attachments.Wait()
}
