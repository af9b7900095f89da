package attachment

import (
	"context"
	"errors"
	"sync"

	"chatbox/internal/events"
	"chatbox/internal/i18n"
	"chatbox/internal/logger"

	"github.com/google/uuid"
)

var (
	// ErrNoUploader is reported when the manager has no transport to upload with.
	ErrNoUploader = errors.New("no uploader configured")
	// ErrNoServerID is reported when a transfer succeeds without an identifier.
	ErrNoServerID = errors.New("server returned no file id")
)

// UploadResult carries the identifier the server assigned to a file.
type UploadResult struct {
	ID string
}

// Uploader performs one transfer. It blocks until the server answers, reporting
// progress in [0,100] through onProgress; cancelling ctx aborts the transfer.
type Uploader interface {
	Upload(ctx context.Context, file File, onProgress func(int)) (UploadResult, error)
}

// UploaderFunc lets a function act as an Uploader.
type UploaderFunc func(ctx context.Context, file File, onProgress func(int)) (UploadResult, error)

func (f UploaderFunc) Upload(ctx context.Context, file File, onProgress func(int)) (UploadResult, error) {
	return f(ctx, file, onProgress)
}

// Attachment is the UI-facing state of one file in the current draft.
type Attachment struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Size           int64  `json:"size"`
	MimeType       string `json:"type"`
	UploadProgress int    `json:"uploadProgress"`
	ServerID       string `json:"serverId,omitempty"`
	Uploaded       bool   `json:"uploaded"`
}

// Snapshot is the payload of events.EventAttachmentsChanged.
type Snapshot struct {
	Version     uint64
	Attachments []Attachment
}

// Options configures a Manager.
type Options struct {
	Uploader Uploader
	Events   events.Publisher
	Spec     FileSpec
	Printer  *i18n.Printer
	Log      *logger.LogEntry
	// NewID overrides uuid generation, for tests.
	NewID func() string
}

// Manager owns the attachments of the message being composed. Every mutation
// is a keyed replace of the whole slice under mu, so concurrent transfers
// never see or clobber each other's entries and readers get stable snapshots.
type Manager struct {
	mu      sync.Mutex
	items   []Attachment
	cancels map[string]context.CancelFunc
	version uint64
	wg      sync.WaitGroup

	uploader Uploader
	events   events.Publisher
	spec     FileSpec
	printer  *i18n.Printer
	log      *logger.LogEntry
	newID    func() string
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		cancels:  map[string]context.CancelFunc{},
		uploader: opts.Uploader,
		events:   opts.Events,
		spec:     opts.Spec,
		printer:  opts.Printer,
		log:      opts.Log,
		newID:    opts.NewID,
	}
	if m.log == nil {
		m.log = logger.Named("attachments")
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

// Accept applies the FileSpec to files, raising an error notification for each
// rejected one, and enqueues the rest.
func (m *Manager) Accept(files []File) []Attachment {
	m.mu.Lock()
	remaining := len(files)
	if m.spec.MaxFiles > 0 {
		remaining = m.spec.MaxFiles - len(m.items)
	}
	m.mu.Unlock()

	var accepted []File
	for _, f := range files {
		switch {
		case m.spec.MaxSizeMB > 0 && f.Size > m.spec.maxBytes():
			m.notify(events.LevelError, i18n.MsgFileTooLarge, f.Name, m.spec.MaxSizeMB)
		case !m.spec.Accepts(f):
			m.notify(events.LevelError, i18n.MsgFileRejected, f.Name, f.MimeType)
		case remaining <= 0:
			m.notify(events.LevelError, i18n.MsgTooManyFiles, f.Name, m.spec.MaxFiles)
		default:
			accepted = append(accepted, f)
			remaining--
		}
	}
	out := make([]Attachment, 0, len(accepted))
	for _, f := range accepted {
		out = append(out, m.Enqueue(f))
	}
	return out
}

// Enqueue registers file in a pending state and starts its transfer in the
// background. The returned entry can be rendered immediately.
func (m *Manager) Enqueue(file File) Attachment {
	a := Attachment{
		ID:       m.newID(),
		Name:     file.Name,
		Size:     file.Size,
		MimeType: file.MimeType,
	}
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.cancels[a.ID] = cancel
	m.replaceLocked(append(append(make([]Attachment, 0, len(m.items)+1), m.items...), a))
	m.wg.Add(1)
	m.mu.Unlock()

	m.log.WithFields(logger.Fields{"attachment_id": a.ID, "name": a.Name, "size": a.Size}).Info("upload started")
	go m.transfer(ctx, cancel, a, file)
	return a
}

func (m *Manager) transfer(ctx context.Context, cancel context.CancelFunc, a Attachment, file File) {
	defer m.wg.Done()
	defer cancel()

	if m.uploader == nil {
		m.fail(ctx, a, ErrNoUploader)
		return
	}
	res, err := m.uploader.Upload(ctx, file, func(p int) {
		m.progress(a.ID, p)
	})
	if err == nil && res.ID == "" {
		err = ErrNoServerID
	}
	if err != nil {
		m.fail(ctx, a, err)
		return
	}
	m.complete(a.ID, res.ID)
}

// progress applies a transport progress report. Reports for absent or
// completed entries are dropped, values are clamped to [0,100], and a report
// lower than the current value is ignored.
func (m *Manager) progress(id string, p int) {
	p = max(0, min(100, p))
	m.update(id, func(a Attachment) (Attachment, bool) {
		if a.Uploaded || p <= a.UploadProgress {
			return a, false
		}
		a.UploadProgress = p
		return a, true
	})
}

func (m *Manager) complete(id, serverID string) {
	ok := m.update(id, func(a Attachment) (Attachment, bool) {
		if a.Uploaded {
			return a, false
		}
		a.ServerID = serverID
		a.Uploaded = true
		a.UploadProgress = 100
		delete(m.cancels, id)
		return a, true
	})
	entry := m.log.WithFields(logger.Fields{"attachment_id": id, "server_id": serverID})
	if !ok {
		entry.Info("upload finished for detached attachment; ignoring")
		return
	}
	entry.Info("upload completed")
}

func (m *Manager) fail(ctx context.Context, a Attachment, err error) {
	entry := m.log.WithFields(logger.Fields{"attachment_id": a.ID, "name": a.Name})
	if ctx.Err() != nil {
		entry.Debugf("upload aborted: %v", err)
		return
	}
	if !m.drop(a.ID) {
		entry.Infof("upload failed for detached attachment: %v", err)
		return
	}
	entry.Warnf("upload failed: %v", err)
	m.notify(events.LevelError, i18n.MsgUploadFailed, a.Name, err.Error())
}

// Cancel aborts an outstanding transfer, removes the entry and raises an
// informational notification. It reports false, doing nothing, when id is
// absent or already uploaded.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	idx := indexOf(m.items, id)
	if idx < 0 || m.items[idx].Uploaded {
		m.mu.Unlock()
		return false
	}
	a := m.items[idx]
	cancel := m.cancels[id]
	delete(m.cancels, id)
	m.replaceLocked(without(m.items, idx))
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.log.WithField("attachment_id", id).Info("upload cancelled")
	m.notify(events.LevelInfo, i18n.MsgUploadCancelled, a.Name)
	return true
}

// Remove detaches id from the draft without touching any in-flight transfer.
func (m *Manager) Remove(id string) bool {
	if !m.drop(id) {
		return false
	}
	m.log.WithField("attachment_id", id).Info("attachment removed")
	return true
}

// Reset aborts every outstanding transfer and empties the draft silently.
func (m *Manager) Reset() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = map[string]context.CancelFunc{}
	m.replaceLocked(nil)
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Attachments returns the current set in enqueue order.
func (m *Manager) Attachments() []Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Attachment(nil), m.items...)
}

// Uploaded returns the entries whose transfer has completed.
func (m *Manager) Uploaded() []Attachment {
	return Completed(m.Attachments())
}

// Get looks up one entry.
func (m *Manager) Get(id string) (Attachment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx := indexOf(m.items, id); idx >= 0 {
		return m.items[idx], true
	}
	return Attachment{}, false
}

// Wait blocks until every transfer goroutine has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Completed filters attachments down to uploaded ones, keeping order.
func Completed(attachments []Attachment) []Attachment {
	var out []Attachment
	for _, a := range attachments {
		if a.Uploaded && a.ServerID != "" {
			out = append(out, a)
		}
	}
	return out
}

func (m *Manager) update(id string, fn func(Attachment) (Attachment, bool)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := indexOf(m.items, id)
	if idx < 0 {
		return false
	}
	next, changed := fn(m.items[idx])
	if !changed {
		return false
	}
	items := append([]Attachment(nil), m.items...)
	items[idx] = next
	m.replaceLocked(items)
	return true
}

func (m *Manager) drop(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := indexOf(m.items, id)
	if idx < 0 {
		return false
	}
	delete(m.cancels, id)
	m.replaceLocked(without(m.items, idx))
	return true
}

// replaceLocked installs items as the new state and publishes it. Publishing
// under mu keeps observers' snapshots in version order; the event queue never
// blocks.
func (m *Manager) replaceLocked(items []Attachment) {
	m.items = items
	m.version++
	if m.events == nil {
		return
	}
	_ = m.events.Publish(context.Background(), events.NewEvent(events.EventAttachmentsChanged, Snapshot{
		Version:     m.version,
		Attachments: append([]Attachment(nil), items...),
	}))
}

func (m *Manager) notify(level events.NotificationLevel, key string, args ...any) {
	if m.events == nil {
		return
	}
	events.Notify(m.events, level, m.printer.Sprintf(key, args...))
}

func indexOf(items []Attachment, id string) int {
	for i, a := range items {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func without(items []Attachment, idx int) []Attachment {
	out := make([]Attachment, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}
