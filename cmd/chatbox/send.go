package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"chatbox/internal/attachment"
	"chatbox/internal/config"
	"chatbox/internal/events"
	"chatbox/internal/logger"
	"chatbox/internal/message"
	"chatbox/internal/render"
	"chatbox/internal/transport"
)

// errNoReply 表示在超时前没有收到完整回复。
var errNoReply = errors.New("timed out waiting for reply")

const (
	formatPlain = "plain"
	formatHTML  = "html"
)

type sendArgs struct {
	text    string
	files   stringSlice
	reply   bool
	timeout time.Duration
	noWait  bool
	format  string
}

func sendMain(cfg config.Config, args []string) {
	if err := runSend(cfg, args, nil, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("send failed: %v", err)
	}
}

func parseSendArgs(args []string) (sendArgs, error) {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var sa sendArgs
	fs.StringVar(&sa.text, "m", "", "Message text")
	fs.Var(&sa.files, "a", "Attach a file (repeatable)")
	fs.BoolVar(&sa.reply, "reply", false, "Send as a reply instead of a new message (attachments are not allowed)")
	fs.DurationVar(&sa.timeout, "timeout", 2*time.Minute, "How long to wait for uploads and the reply")
	fs.BoolVar(&sa.noWait, "no-wait", false, "Exit once the message is handed to the transport")
	fs.StringVar(&sa.format, "format", formatPlain, "Reply output format: plain or html")
	if err := fs.Parse(args); err != nil {
		return sendArgs{}, err
	}
	if sa.text == "" && fs.NArg() > 0 {
		sa.text = strings.Join(fs.Args(), " ")
	}
	if sa.reply && len(sa.files) > 0 {
		return sendArgs{}, errors.New("-reply cannot carry attachments")
	}
	if sa.text == "" && len(sa.files) == 0 {
		return sendArgs{}, errors.New("nothing to send: use -m or -a")
	}
	switch sa.format {
	case formatPlain, formatHTML:
	default:
		return sendArgs{}, fmt.Errorf("unknown -format %q (want plain or html)", sa.format)
	}
	return sa, nil
}

// replyPrinter 把最终回复按 -format 写出。
type replyPrinter struct {
	out  io.Writer
	html *render.HTML
}

func newReplyPrinter(format string, out io.Writer) *replyPrinter {
	p := &replyPrinter{out: out}
	if format == formatHTML {
		p.html = render.NewHTML()
	}
	return p
}

func (p *replyPrinter) print(content string) error {
	if p.html == nil {
		_, err := fmt.Fprintln(p.out, render.Plain(content, ""))
		return err
	}
	html, err := p.html.Render(content)
	if err != nil {
		return err
	}
	_, err = io.WriteString(p.out, html)
	return err
}

// sendRun 跟踪一次无界面发送期间的事件。
type sendRun struct {
	app     *app
	sub     <-chan events.Event
	msgID   string
	noWait  bool
	printer *replyPrinter
	errOut  io.Writer
}

// runSend 无界面发送：上传附件、等待完成、提交并打印流式回复。
func runSend(cfg config.Config, args []string, loopback *transport.Loopback, out, errOut io.Writer) error {
	sa, err := parseSendArgs(args)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, loopback)
	if err != nil {
		return err
	}
	defer a.Close()

	run := &sendRun{
		app:     a,
		sub:     a.events.Subscribe(),
		noWait:  sa.noWait,
		printer: newReplyPrinter(sa.format, out),
		errOut:  errOut,
	}
	deadline := time.After(sa.timeout)

	if len(sa.files) > 0 {
		var files []attachment.File
		for _, path := range sa.files {
			f, err := attachment.OpenPath(path)
			if err != nil {
				return err
			}
			files = append(files, f)
		}
		a.session.Attachments.Accept(files)
		uploaded := make(chan struct{})
		go func() {
			a.session.Attachments.Wait()
			close(uploaded)
		}()
		if err := run.until(uploaded, deadline); err != nil {
			if errors.Is(err, errNoReply) {
				return fmt.Errorf("uploads did not finish within %s", sa.timeout)
			}
			return err
		}
	}

	var msg message.Outbound
	if sa.reply {
		msg = a.session.Reply(sa.text)
	} else {
		msg = a.session.Submit(sa.text)
	}
	run.msgID = msg.ID
	log.WithFields(logger.Fields{"message_id": msg.ID, "files": len(msg.FileReferences)}).Info("message submitted")

	return run.until(nil, deadline)
}

// until 持续消费事件，直到 stop 关闭、回复结束或超时。stop 为 nil 时只等回复。
func (r *sendRun) until(stop <-chan struct{}, deadline <-chan time.Time) error {
	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-r.sub:
			if !ok {
				if stop == nil {
					return nil
				}
				r.sub = nil
				continue
			}
			r.app.session.Observe(ev)
			done, err := r.handle(ev)
			if done || err != nil {
				return err
			}
		case <-deadline:
			return errNoReply
		}
	}
}

// handle 打印与本次发送相关的事件，返回是否可以结束。
func (r *sendRun) handle(ev events.Event) (bool, error) {
	switch ev.Type {
	case events.EventNotification:
		if n, ok := ev.Payload.(events.Notification); ok {
			fmt.Fprintf(r.errOut, "[%s] %s\n", n.Level, n.Text)
		}
	case events.EventMessageFailed:
		if m, ok := ev.Payload.(message.Outbound); ok && r.msgID != "" && m.ID == r.msgID {
			return true, errors.New("message was not delivered")
		}
	case events.EventMessageDelivered:
		if m, ok := ev.Payload.(message.Outbound); ok && r.msgID != "" && m.ID == r.msgID && r.noWait {
			return true, nil
		}
	case events.EventStreamChunk:
		if chunk, ok := ev.Payload.(events.StreamChunk); ok && chunk.Final && r.msgID != "" {
			return true, r.printer.print(chunk.Content)
		}
	}
	return false, nil
}
