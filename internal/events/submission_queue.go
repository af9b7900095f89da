package events

import (
	"context"
	"errors"
	"sync"

	"chatbox/internal/logger"
)

var (
	// ErrSubmissionQueueClosed 表示队列已关闭，无法再提交或接收。
	ErrSubmissionQueueClosed = errors.New("submission queue closed")
	// ErrSubmissionQueueFull 表示队列已满且调用方不愿等待。
	ErrSubmissionQueueFull = errors.New("submission queue full")
)

// SubmissionQueue 是一个有界的出站提交队列（SQ）。
type SubmissionQueue struct {
	ch        chan Submission
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	log       *logger.LogEntry
}

// NewSubmissionQueue 创建一个新的 SubmissionQueue。
func NewSubmissionQueue(capacity int) *SubmissionQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &SubmissionQueue{
		ch:  make(chan Submission, capacity),
		log: logger.Named("sq"),
	}
}

// SetLogger 覆盖队列使用的 logger。
func (q *SubmissionQueue) SetLogger(entry *logger.LogEntry) {
	if entry == nil {
		return
	}
	q.log = entry
}

// Submit 将提交放入队列；支持 ctx 取消。
func (q *SubmissionQueue) Submit(ctx context.Context, submission Submission) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrSubmissionQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- submission:
		q.logSubmission(submission)
		return nil
	}
}

// TrySubmit 不等待：队列满时立即返回 ErrSubmissionQueueFull。
func (q *SubmissionQueue) TrySubmit(submission Submission) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrSubmissionQueueClosed
	}
	select {
	case q.ch <- submission:
		q.logSubmission(submission)
		return nil
	default:
		return ErrSubmissionQueueFull
	}
}

// Receive 读取一条提交；若队列已关闭且已排空则返回 ErrSubmissionQueueClosed。
func (q *SubmissionQueue) Receive(ctx context.Context) (Submission, error) {
	select {
	case <-ctx.Done():
		return Submission{}, ctx.Err()
	case sub, ok := <-q.ch:
		if !ok {
			return Submission{}, ErrSubmissionQueueClosed
		}
		return sub, nil
	}
}

// Len 返回当前队列长度。
func (q *SubmissionQueue) Len() int {
	return len(q.ch)
}

// Close 关闭队列，停止进一步提交。已入队的提交仍可被 Receive 读取。
func (q *SubmissionQueue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
}

func (q *SubmissionQueue) logSubmission(submission Submission) {
	if q.log == nil {
		return
	}
	fields := logger.Fields{
		"submission_id": submission.ID,
		"operation":     submission.Operation.Kind,
		"message_id":    submission.Operation.Message.ID,
	}
	if n := len(submission.Operation.FileReferences); n > 0 {
		fields["files"] = n
	}
	if submission.ThreadID != "" {
		fields["thread_id"] = submission.ThreadID
	}
	q.log.WithFields(fields).Info("enqueued submission into SQ")
}
