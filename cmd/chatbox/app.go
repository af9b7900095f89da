package main

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"chatbox/internal/attachment"
	"chatbox/internal/config"
	"chatbox/internal/events"
	"chatbox/internal/i18n"
	"chatbox/internal/session"
	"chatbox/internal/transport"
	"chatbox/internal/transport/wsclient"
)

const (
	eventBuffer     = 256
	deliveryTimeout = 30 * time.Second
)

// app 组装一次运行所需的 EQ、传输层与会话。
type app struct {
	cfg     config.Config
	events  *events.EventQueue
	outbox  *transport.Outbox
	session *session.Session
	closers []io.Closer
}

// transportSet 同时提供上传与消息投递。
type transportSet interface {
	attachment.Uploader
	transport.Messenger
}

func newApp(cfg config.Config, loopback *transport.Loopback) (*app, error) {
	a := &app{cfg: cfg}

	eqLog, eqCloser := events.NewQueueLogger("eq", queueLogPath(cfg.LogPath, events.DefaultEQLogPath))
	a.addCloser(eqCloser)
	a.events = events.NewEventQueue(eventBuffer)
	a.events.SetLogger(eqLog)

	var tr transportSet
	if strings.TrimSpace(cfg.URL) != "" {
		client, err := wsclient.New(wsclient.Config{URL: cfg.URL, Token: cfg.Token}, a.events)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.addCloser(client)
		tr = client
		log.WithField("url", cfg.URL).Info("using chat server transport")
	} else {
		if loopback == nil {
			loopback = transport.NewLoopback(a.events)
		}
		loopback.Events = a.events
		tr = loopback
		log.Info("no server url configured; using loopback transport")
	}

	printer := i18n.NewPrinter(i18n.Normalize(cfg.Language))
	a.outbox = transport.NewOutbox(tr, a.events, transport.OutboxConfig{
		Timeout:   deliveryTimeout,
		SQLogPath: queueLogPath(cfg.LogPath, events.DefaultSQLogPath),
		Printer:   printer,
	})
	a.outbox.Start(context.Background())

	a.session = session.New(session.Options{
		Uploader: tr,
		Sender:   a.outbox,
		Events:   a.events,
		Spec: attachment.FileSpec{
			MaxSizeMB: cfg.Upload.MaxSizeMB,
			MaxFiles:  cfg.Upload.MaxFiles,
			Accept:    cfg.Upload.Accept,
		},
		Printer: printer,
		User:    cfg.User,
	})
	return a, nil
}

// queueLogPath 把队列日志放在主日志旁边；未配置主日志时不单独落盘。
func queueLogPath(mainLog, def string) string {
	if strings.TrimSpace(mainLog) == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(mainLog), filepath.Base(def))
}

func (a *app) addCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Close 按依赖逆序释放资源：先停会话与出站队列，再关闭连接与 EQ。
func (a *app) Close() {
	if a.session != nil {
		a.session.Close()
	}
	if a.outbox != nil {
		a.outbox.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	if a.events != nil {
		a.events.Close()
	}
}
