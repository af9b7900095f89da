// Package transport delivers composed messages to the chat server.
package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"chatbox/internal/events"
	"chatbox/internal/i18n"
	"chatbox/internal/logger"
	"chatbox/internal/message"

	"github.com/google/uuid"
)

// Messenger 是真实网络传输需要实现的阻塞式接口。
type Messenger interface {
	SendMessage(ctx context.Context, msg message.Outbound, refs []message.FileReference) error
	ReplyMessage(ctx context.Context, msg message.Outbound) error
}

// OutboxConfig 定义出站队列参数。
type OutboxConfig struct {
	SubmissionBuffer int
	Workers          int
	// Timeout 限制单条消息的投递时间，0 表示不限制。
	Timeout   time.Duration
	SQLogPath string
	Printer   *i18n.Printer
}

func (cfg OutboxConfig) withDefaults() OutboxConfig {
	if cfg.SubmissionBuffer == 0 {
		cfg.SubmissionBuffer = 64
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	return cfg
}

// Outbox 把阻塞的 Messenger 适配成不等待结果的 Sender：
// 提交进入 SQ，由后台 worker 投递，结果通过 EQ 发布。
type Outbox struct {
	queue     *events.SubmissionQueue
	messenger Messenger
	events    events.Publisher
	printer   *i18n.Printer
	workers   int
	timeout   time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	log       *logger.LogEntry
	logCloser io.Closer
}

// NewOutbox 创建出站队列，需调用 Start 后才开始投递。
func NewOutbox(messenger Messenger, pub events.Publisher, cfg OutboxConfig) *Outbox {
	cfg = cfg.withDefaults()
	sqLog, closer := events.NewQueueLogger("outbox", cfg.SQLogPath)
	queue := events.NewSubmissionQueue(cfg.SubmissionBuffer)
	queue.SetLogger(sqLog)
	return &Outbox{
		queue:     queue,
		messenger: messenger,
		events:    pub,
		printer:   cfg.Printer,
		workers:   cfg.Workers,
		timeout:   cfg.Timeout,
		log:       sqLog,
		logCloser: closer,
	}
}

// Start 启动后台 worker。
func (o *Outbox) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		o.cancel = cancel
		for i := 0; i < o.workers; i++ {
			o.wg.Add(1)
			go o.worker(runCtx)
		}
	})
}

// Close 停止接收新提交，等待已入队的消息投递完毕。
func (o *Outbox) Close() {
	o.stopOnce.Do(func() {
		o.queue.Close()
		o.wg.Wait()
		if o.cancel != nil {
			o.cancel()
		}
		if o.logCloser != nil {
			_ = o.logCloser.Close()
		}
	})
}

// Pending 返回尚未被 worker 取走的提交数量。
func (o *Outbox) Pending() int {
	return o.queue.Len()
}

// SendMessage 实现 composer.Sender。
func (o *Outbox) SendMessage(msg message.Outbound, refs []message.FileReference) {
	o.enqueue(events.Operation{Kind: events.OperationSendMessage, Message: msg, FileReferences: refs})
}

// ReplyMessage 实现 composer.Sender。
func (o *Outbox) ReplyMessage(msg message.Outbound) {
	o.enqueue(events.Operation{Kind: events.OperationReplyMessage, Message: msg})
}

func (o *Outbox) enqueue(op events.Operation) {
	sub := events.Submission{
		ID:        uuid.NewString(),
		Operation: op,
		Timestamp: time.Now(),
		ThreadID:  op.Message.ThreadID,
	}
	if err := o.queue.TrySubmit(sub); err != nil {
		o.failed(sub, err)
		return
	}
	o.publish(events.EventMessageQueued, op.Message)
}

func (o *Outbox) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		sub, err := o.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, events.ErrSubmissionQueueClosed) {
				return
			}
			continue
		}
		if err := o.deliver(ctx, sub); err != nil {
			o.failed(sub, err)
			continue
		}
		o.log.WithFields(logger.Fields{"submission_id": sub.ID, "message_id": sub.Operation.Message.ID}).Info("delivered")
		o.publish(events.EventMessageDelivered, sub.Operation.Message)
	}
}

func (o *Outbox) deliver(ctx context.Context, sub events.Submission) error {
	if o.messenger == nil {
		return ErrNoMessenger
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	switch sub.Operation.Kind {
	case events.OperationSendMessage:
		return o.messenger.SendMessage(ctx, sub.Operation.Message, sub.Operation.FileReferences)
	case events.OperationReplyMessage:
		return o.messenger.ReplyMessage(ctx, sub.Operation.Message)
	default:
		return ErrUnknownOperation
	}
}

func (o *Outbox) failed(sub events.Submission, err error) {
	o.log.WithFields(logger.Fields{
		"submission_id": sub.ID,
		"message_id":    sub.Operation.Message.ID,
	}).Warnf("delivery failed: %v", err)
	o.publish(events.EventMessageFailed, sub.Operation.Message)
	if o.events != nil {
		events.Notify(o.events, events.LevelError, o.printer.Sprintf(i18n.MsgDeliveryFailed, err.Error()))
	}
}

func (o *Outbox) publish(typ events.EventType, payload any) {
	if o.events == nil {
		return
	}
	_ = o.events.Publish(context.Background(), events.NewEvent(typ, payload))
}

var (
	// ErrNoMessenger 表示没有可用的网络传输。
	ErrNoMessenger = errors.New("no messenger configured")
	// ErrUnknownOperation 表示提交的操作类型无法识别。
	ErrUnknownOperation = errors.New("unknown operation")
)
