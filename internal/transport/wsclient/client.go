// Package wsclient talks to a chat server: files are posted as
// multipart/form-data and messages travel as JSON frames over a websocket.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"chatbox/internal/attachment"
	"chatbox/internal/events"
	"chatbox/internal/logger"
	"chatbox/internal/message"
	"chatbox/internal/segment"
	"chatbox/internal/transport"

	"github.com/gorilla/websocket"
)

const (
	uploadPath = "/project/file"
	socketPath = "/ws"

	frameClientMessage = "client_message"
	frameReplyMessage  = "reply_message"
	frameStreamToken   = "stream_token"
	frameStreamEnd     = "stream_end"
	frameError         = "error"

	writeWait = 10 * time.Second
)

// ErrUploadRejected 表示服务端拒绝了上传。
var ErrUploadRejected = errors.New("upload rejected")

// Config 描述服务端地址与凭证。
type Config struct {
	URL   string
	Token string
	HTTP  *http.Client
	Log   *logger.LogEntry
}

// Client 同时实现 attachment.Uploader 与 transport.Messenger。
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	dialer *websocket.Dialer
	events events.Publisher
	log    *logger.LogEntry

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	streams map[string]*strings.Builder
}

type outboundFrame struct {
	Type           string                  `json:"type"`
	Message        message.Outbound        `json:"message"`
	FileReferences []message.FileReference `json:"fileReferences,omitempty"`
}

type inboundFrame struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Token    string `json:"token"`
	Output   string `json:"output"`
	Error    string `json:"error"`
}

type uploadResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// New 解析服务端地址。流式回复以 EventStreamChunk 发布到 pub。
func New(cfg Config, pub events.Publisher) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.URL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", base.Scheme)
	}
	c := &Client{
		base:    base,
		token:   cfg.Token,
		http:    cfg.HTTP,
		dialer:  websocket.DefaultDialer,
		events:  pub,
		log:     cfg.Log,
		streams: map[string]*strings.Builder{},
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.log == nil {
		c.log = logger.Named("wsclient")
	}
	return c, nil
}

// Upload 以 multipart/form-data 上传文件，取消 ctx 即中止传输。
func (c *Client) Upload(ctx context.Context, file attachment.File, onProgress func(int)) (attachment.UploadResult, error) {
	if file.Open == nil {
		return attachment.UploadResult{}, transport.ErrEmptyFile
	}
	src, err := file.Open()
	if err != nil {
		return attachment.UploadResult{}, err
	}
	defer src.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, file, transport.NewProgressReader(src, file.Size, onProgress)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(uploadPath), pr)
	if err != nil {
		pr.Close()
		return attachment.UploadResult{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	c.authorize(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return attachment.UploadResult{}, err
	}
	defer resp.Body.Close()

	var body uploadResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body)
	if resp.StatusCode/100 != 2 {
		reason := body.Error
		if reason == "" {
			reason = resp.Status
		}
		return attachment.UploadResult{}, fmt.Errorf("%w: %s", ErrUploadRejected, reason)
	}
	if decodeErr != nil {
		return attachment.UploadResult{}, fmt.Errorf("decode upload response: %w", decodeErr)
	}
	if body.ID == "" {
		return attachment.UploadResult{}, fmt.Errorf("%w: missing file id", ErrUploadRejected)
	}
	c.log.WithFields(logger.Fields{"name": file.Name, "server_id": body.ID}).Info("file uploaded")
	return attachment.UploadResult{ID: body.ID}, nil
}

func writeForm(form *multipart.Writer, file attachment.File, content io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	ct := file.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := form.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return form.Close()
}

// SendMessage 实现 transport.Messenger。
func (c *Client) SendMessage(ctx context.Context, msg message.Outbound, refs []message.FileReference) error {
	return c.write(ctx, outboundFrame{Type: frameClientMessage, Message: msg, FileReferences: refs})
}

// ReplyMessage 实现 transport.Messenger。
func (c *Client) ReplyMessage(ctx context.Context, msg message.Outbound) error {
	return c.write(ctx, outboundFrame{Type: frameReplyMessage, Message: msg})
}

// Connect 建立 websocket 连接并启动读循环；已连接时直接返回。
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connection(ctx)
	return err
}

// Close 关闭 websocket 连接。
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Client) write(ctx context.Context, frame outboundFrame) error {
	conn, err := c.connection(ctx)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(frame); err != nil {
		c.drop(conn)
		return fmt.Errorf("write %s: %w", frame.Type, err)
	}
	c.log.WithFields(logger.Fields{"type": frame.Type, "message_id": frame.Message.ID}).Debug("frame sent")
	return nil
}

func (c *Client) connection(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	header := http.Header{}
	c.authorize(header)
	conn, resp, err := c.dialer.DialContext(ctx, c.socketURL(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.socketURL(), err)
	}
	c.conn = conn
	c.log.WithField("url", c.socketURL()).Info("websocket connected")
	go c.readLoop(conn)
	return conn, nil
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.drop(conn)
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warnf("websocket read failed: %v", err)
			}
			return
		}
		c.handle(frame)
	}
}

func (c *Client) handle(frame inboundFrame) {
	switch frame.Type {
	case frameStreamToken:
		c.mu.Lock()
		b, ok := c.streams[frame.ID]
		if !ok {
			b = &strings.Builder{}
			c.streams[frame.ID] = b
		}
		b.WriteString(segment.Strip(frame.Token))
		content := b.String()
		c.mu.Unlock()
		c.emit(events.StreamChunk{MessageID: frame.ID, ThreadID: frame.ThreadID, Content: content + string(segment.Sentinel)})
	case frameStreamEnd:
		c.mu.Lock()
		content := frame.Output
		if b, ok := c.streams[frame.ID]; ok && content == "" {
			content = b.String()
		}
		delete(c.streams, frame.ID)
		c.mu.Unlock()
		c.emit(events.StreamChunk{MessageID: frame.ID, ThreadID: frame.ThreadID, Content: segment.Strip(content), Final: true})
	case frameError:
		c.log.WithField("message_id", frame.ID).Warnf("server error: %s", frame.Error)
		if c.events != nil {
			events.Notify(c.events, events.LevelError, frame.Error)
		}
	default:
		c.log.WithField("type", frame.Type).Debug("ignoring unknown frame")
	}
}

func (c *Client) emit(chunk events.StreamChunk) {
	if c.events == nil {
		return
	}
	_ = c.events.Publish(context.Background(), events.NewEvent(events.EventStreamChunk, chunk))
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *Client) socketURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + socketPath
	return u.String()
}
