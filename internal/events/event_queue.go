package events

import (
	"context"
	"errors"
	"sync"

	"chatbox/internal/logger"
)

var (
	// ErrEventQueueClosed 表示事件队列已关闭。
	ErrEventQueueClosed = errors.New("event queue closed")
	// ErrEventDropped 表示订阅者积压超过上限，事件被丢弃。
	ErrEventDropped = errors.New("event dropped by slow subscriber")
)

// backlogFactor 决定每个订阅者积压上限：buffer * backlogFactor。
const backlogFactor = 16

// Publisher 抽象 EQ，便于解耦与测试。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventQueue 是 EQ，负责把状态变化广播给观察者。发布从不阻塞：
// 订阅者通道满时事件进入该订阅者的积压队列，由后台 goroutine 按序补发。
// 快照类事件（附件快照、同一回复的流式分段、自动滚动）在积压中只保留最新一条，
// 其余事件仅在积压超过上限时丢弃。
type EventQueue struct {
	mu      sync.RWMutex
	subs    []*subscriber
	buffer  int
	backlog int
	closed  bool
	wg      sync.WaitGroup
	log     *logger.LogEntry
}

// NewEventQueue 创建事件队列，buffer 是每个订阅者的通道缓存大小。
func NewEventQueue(buffer int) *EventQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventQueue{buffer: buffer, backlog: buffer * backlogFactor, log: logger.Named("eq")}
}

// SetLogger 覆盖队列使用的 logger。
func (q *EventQueue) SetLogger(entry *logger.LogEntry) {
	if entry == nil {
		return
	}
	q.mu.Lock()
	q.log = entry
	q.mu.Unlock()
}

// Subscribe 订阅事件流。通道会在 Close 时关闭。
func (q *EventQueue) Subscribe() <-chan Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	s := &subscriber{
		ch:   make(chan Event, q.buffer),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	q.subs = append(q.subs, s)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		s.run()
	}()
	return s.ch
}

// Publish 发布事件到所有订阅者。若有订阅者积压已满，则返回 ErrEventDropped。
func (q *EventQueue) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrEventQueueClosed
	}

	dropped := false
	for _, s := range q.subs {
		switch s.offer(event, q.backlog) {
		case offerDeferred:
			q.log.WithField("type", event.Type).Debug("subscriber busy; event deferred")
		case offerDropped:
			dropped = true
		}
	}
	if dropped {
		q.log.WithField("type", event.Type).Warn("event dropped by slow subscriber")
		return ErrEventDropped
	}
	return nil
}

// Close 关闭事件队列。通道中已有的事件仍可读出，积压中装不下的部分被丢弃。
func (q *EventQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	subs := q.subs
	q.subs = nil
	q.mu.Unlock()

	for _, s := range subs {
		close(s.done)
	}
	q.wg.Wait()
}

// SubscriberCount 返回当前订阅者数量。
func (q *EventQueue) SubscriberCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.subs)
}

// Notify 发布一条用户提示；q 为 nil 时静默忽略。
func Notify(q Publisher, level NotificationLevel, text string) {
	if q == nil {
		return
	}
	_ = q.Publish(context.Background(), NewEvent(EventNotification, Notification{Level: level, Text: text}))
}

type offerResult int

const (
	offerDelivered offerResult = iota
	offerDeferred
	offerCoalesced
	offerDropped
)

type subscriber struct {
	ch   chan Event
	wake chan struct{}
	done chan struct{}

	mu sync.Mutex
	// pending[0] 是后台 goroutine 正在投递的事件，送达后才出队。
	pending []Event
}

func (s *subscriber) offer(ev Event, limit int) offerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		select {
		case s.ch <- ev:
			return offerDelivered
		default:
		}
	}
	if key := coalesceKey(ev); key != "" {
		for i := len(s.pending) - 1; i >= 1; i-- {
			if coalesceKey(s.pending[i]) == key {
				s.pending[i] = ev
				return offerCoalesced
			}
		}
	}
	if len(s.pending) >= limit {
		return offerDropped
	}
	s.pending = append(s.pending, ev)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return offerDeferred
}

func (s *subscriber) run() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				s.flush()
				return
			}
		}
		ev := s.pending[0]
		s.mu.Unlock()

		select {
		case s.ch <- ev:
			s.mu.Lock()
			s.pending[0] = Event{}
			s.pending = s.pending[1:]
			s.mu.Unlock()
		case <-s.done:
			s.flush()
			return
		}
	}
}

// flush 在关闭时把积压尽量放入通道，不阻塞。
func (s *subscriber) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.pending {
		select {
		case s.ch <- ev:
		default:
			return
		}
	}
}

// coalesceKey 返回快照类事件的合并键；空串表示事件不可合并。
func coalesceKey(ev Event) string {
	switch ev.Type {
	case EventAttachmentsChanged, EventAutoScroll:
		return string(ev.Type)
	case EventStreamChunk:
		if chunk, ok := ev.Payload.(StreamChunk); ok && !chunk.Final {
			return string(ev.Type) + ":" + chunk.MessageID
		}
	}
	return ""
}
