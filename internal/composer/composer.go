package composer

import (
	"context"
	"strings"
	"time"

	"chatbox/internal/attachment"
	"chatbox/internal/events"
	"chatbox/internal/history"
	"chatbox/internal/logger"
	"chatbox/internal/message"

	"github.com/google/uuid"
)

// DefaultAuthor names messages when no user is identified.
const DefaultAuthor = "User"

// Sender hands messages to the transport without waiting for delivery.
type Sender interface {
	SendMessage(msg message.Outbound, refs []message.FileReference)
	ReplyMessage(msg message.Outbound)
}

// Identity reports the signed-in user, or "" when anonymous.
type Identity interface {
	Identifier() string
}

// StaticIdentity is an Identity fixed at construction, typically from config.
type StaticIdentity string

func (s StaticIdentity) Identifier() string { return strings.TrimSpace(string(s)) }

type Options struct {
	Sender   Sender
	History  *history.Store
	Events   events.Publisher
	Identity Identity
	// ThreadID returns the current thread, "" before the server assigns one.
	ThreadID func() string
	Now      func() time.Time
	NewID    func() string
	Log      *logger.LogEntry
}

// Composer turns submit and reply actions into outbound messages.
type Composer struct {
	sender   Sender
	history  *history.Store
	events   events.Publisher
	identity Identity
	threadID func() string
	now      func() time.Time
	newID    func() string
	log      *logger.LogEntry
}

func New(opts Options) *Composer {
	c := &Composer{
		sender:   opts.Sender,
		history:  opts.History,
		events:   opts.Events,
		identity: opts.Identity,
		threadID: opts.ThreadID,
		now:      opts.Now,
		newID:    opts.NewID,
		log:      opts.Log,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.log == nil {
		c.log = logger.Named("composer")
	}
	return c
}

// Submit sends text with every attachment that has finished uploading;
// pending ones are left out. The text is always recorded in the input
// history, even when empty. Submit never blocks on the transport.
func (c *Composer) Submit(text string, attachments []attachment.Attachment) message.Outbound {
	msg := c.build(message.KindMessage, text)
	for _, a := range attachment.Completed(attachments) {
		msg.FileReferences = append(msg.FileReferences, message.FileReference{ID: a.ServerID})
	}

	if c.history != nil {
		entry := history.Entry{Content: text, CreatedAt: msg.CreatedAt}
		c.history.Record(entry)
		c.publish(events.EventHistoryRecorded, entry)
	}
	c.publish(events.EventAutoScroll, true)

	c.log.WithFields(logger.Fields{
		"message_id": msg.ID,
		"files":      len(msg.FileReferences),
		"skipped":    len(attachments) - len(msg.FileReferences),
	}).Info("submitting message")
	if c.sender != nil {
		c.sender.SendMessage(msg, msg.FileReferences)
	}
	return msg
}

// Reply sends text as a reply. Attachments and history are left untouched.
func (c *Composer) Reply(text string) message.Outbound {
	msg := c.build(message.KindReply, text)
	c.log.WithField("message_id", msg.ID).Info("submitting reply")
	if c.sender != nil {
		c.sender.ReplyMessage(msg)
	}
	c.publish(events.EventAutoScroll, true)
	return msg
}

func (c *Composer) build(kind message.Kind, text string) message.Outbound {
	author := ""
	if c.identity != nil {
		author = c.identity.Identifier()
	}
	if author == "" {
		author = DefaultAuthor
	}
	thread := ""
	if c.threadID != nil {
		thread = c.threadID()
	}
	return message.Outbound{
		ID:         c.newID(),
		ThreadID:   thread,
		AuthorName: author,
		Kind:       kind,
		Body:       text,
		CreatedAt:  c.now(),
	}
}

func (c *Composer) publish(typ events.EventType, payload any) {
	if c.events == nil {
		return
	}
	_ = c.events.Publish(context.Background(), events.NewEvent(typ, payload))
}
