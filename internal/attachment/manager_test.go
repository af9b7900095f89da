package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"chatbox/internal/events"
	"chatbox/internal/logger"

	"github.com/stretchr/testify/require"
)

type outcome struct {
	res UploadResult
	err error
}

type transfer struct {
	file     File
	progress func(int)
	done     chan outcome
	ctx      context.Context
}

// fakeUploader hands each transfer to the test, which decides how it ends.
type fakeUploader struct {
	started chan *transfer
	// ignoreCancel makes transfers wait for the test even after ctx is cancelled,
	// simulating a success that races with an abort.
	ignoreCancel bool
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{started: make(chan *transfer, 64)}
}

func (f *fakeUploader) Upload(ctx context.Context, file File, onProgress func(int)) (UploadResult, error) {
	tr := &transfer{file: file, progress: onProgress, done: make(chan outcome, 1), ctx: ctx}
	f.started <- tr
	if f.ignoreCancel {
		o := <-tr.done
		return o.res, o.err
	}
	select {
	case o := <-tr.done:
		return o.res, o.err
	case <-ctx.Done():
		return UploadResult{}, ctx.Err()
	}
}

func (f *fakeUploader) next(t *testing.T) *transfer {
	t.Helper()
	select {
	case tr := <-f.started:
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transfer to start")
		return nil
	}
}

func newTestManager(t *testing.T, up Uploader, spec FileSpec) (*Manager, *events.EventQueue) {
	t.Helper()
	q := events.NewEventQueue(256)
	t.Cleanup(q.Close)
	var n int
	var mu sync.Mutex
	m := NewManager(Options{
		Uploader: up,
		Events:   q,
		Spec:     spec,
		Log:      logger.Discard(),
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("att-%d", n)
		},
	})
	return m, q
}

func testFile(name string) File {
	return File{
		Name:     name,
		Size:     int64(len(name)),
		MimeType: "text/plain",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(name)), nil
		},
	}
}

func ids(items []Attachment) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.ID)
	}
	return out
}

func notifications(q <-chan events.Event) []events.Notification {
	var out []events.Notification
	for {
		select {
		case ev := <-q:
			if n, ok := ev.Payload.(events.Notification); ok {
				out = append(out, n)
			}
		default:
			return out
		}
	}
}

func TestEnqueueReturnsPendingEntry(t *testing.T) {
	up := newFakeUploader()
	m, _ := newTestManager(t, up, FileSpec{})

	a := m.Enqueue(testFile("notes.txt"))
	require.Equal(t, "att-1", a.ID)
	require.Equal(t, "notes.txt", a.Name)
	require.Equal(t, "text/plain", a.MimeType)
	require.Zero(t, a.UploadProgress)
	require.False(t, a.Uploaded)
	require.Empty(t, a.ServerID)
	require.Equal(t, []Attachment{a}, m.Attachments())

	tr := up.next(t)
	require.Equal(t, "notes.txt", tr.file.Name)
	tr.done <- outcome{res: UploadResult{ID: "srv-1"}}
	m.Wait()

	got, ok := m.Get(a.ID)
	require.True(t, ok)
	require.True(t, got.Uploaded)
	require.Equal(t, "srv-1", got.ServerID)
	require.Equal(t, 100, got.UploadProgress)
}

func TestFinalSetIndependentOfCompletionOrder(t *testing.T) {
	up := newFakeUploader()
	m, _ := newTestManager(t, up, FileSpec{})

	const n = 6
	transfers := map[string]*transfer{}
	for i := 0; i < n; i++ {
		m.Enqueue(testFile(fmt.Sprintf("f%d", i)))
		tr := up.next(t)
		transfers[tr.file.Name] = tr
	}

	// f0,f3 succeed; f1 fails; f2 is cancelled; f4 is removed then succeeds; f5 succeeds.
	require.True(t, m.Cancel("att-3"))
	require.True(t, m.Remove("att-5"))
	for _, name := range []string{"f5", "f4", "f1", "f3", "f0"} {
		tr := transfers[name]
		if name == "f1" {
			tr.done <- outcome{err: errors.New("server said no")}
			continue
		}
		tr.done <- outcome{res: UploadResult{ID: "srv-" + name}}
	}
	m.Wait()

	got := m.Attachments()
	require.Equal(t, []string{"att-1", "att-4", "att-6"}, ids(got))
	for _, a := range got {
		require.True(t, a.Uploaded)
		require.Equal(t, "srv-"+a.Name, a.ServerID)
	}
	require.Equal(t, got, m.Uploaded())
}

func TestCancelIsIdempotentAndNoopAfterCompletion(t *testing.T) {
	up := newFakeUploader()
	m, q := newTestManager(t, up, FileSpec{})
	sub := q.Subscribe()

	a := m.Enqueue(testFile("big.bin"))
	tr := up.next(t)
	require.True(t, m.Cancel(a.ID))
	require.False(t, m.Cancel(a.ID))
	require.Empty(t, m.Attachments())

	select {
	case <-tr.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("transfer context was not cancelled")
	}
	m.Wait()

	got := notifications(sub)
	require.Equal(t, []events.Notification{{Level: events.LevelInfo, Text: "Cancelled upload of big.bin"}}, got)

	b := m.Enqueue(testFile("done.txt"))
	up.next(t).done <- outcome{res: UploadResult{ID: "srv-b"}}
	m.Wait()
	require.False(t, m.Cancel(b.ID))
	require.False(t, m.Cancel("missing"))
	require.Len(t, m.Attachments(), 1)
}

func TestProgressForAbsentIDHasNoEffect(t *testing.T) {
	up := newFakeUploader()
	up.ignoreCancel = true
	m, _ := newTestManager(t, up, FileSpec{})

	keep := m.Enqueue(testFile("keep.txt"))
	keepTr := up.next(t)
	gone := m.Enqueue(testFile("gone.txt"))
	goneTr := up.next(t)

	require.True(t, m.Cancel(gone.ID))
	before := m.Attachments()

	goneTr.progress(80)
	goneTr.done <- outcome{res: UploadResult{ID: "late"}}
	require.Eventually(t, func() bool {
		// late success for the cancelled id must not resurrect it
		_, ok := m.Get(gone.ID)
		return !ok
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, before, m.Attachments())

	keepTr.done <- outcome{res: UploadResult{ID: "srv-keep"}}
	m.Wait()
	require.Equal(t, []string{keep.ID}, ids(m.Attachments()))
}

func TestProgressIsKeyedClampedAndMonotonic(t *testing.T) {
	up := newFakeUploader()
	m, _ := newTestManager(t, up, FileSpec{})

	a := m.Enqueue(testFile("a"))
	trA := up.next(t)
	b := m.Enqueue(testFile("b"))
	trB := up.next(t)

	trA.progress(40)
	trA.progress(30)
	trB.progress(-5)
	trB.progress(250)

	got, _ := m.Get(a.ID)
	require.Equal(t, 40, got.UploadProgress)
	got, _ = m.Get(b.ID)
	require.Equal(t, 100, got.UploadProgress)
	require.False(t, got.Uploaded)

	trA.done <- outcome{res: UploadResult{ID: "srv-a"}}
	trB.done <- outcome{res: UploadResult{ID: "srv-b"}}
	m.Wait()

	trA.progress(10)
	got, _ = m.Get(a.ID)
	require.Equal(t, 100, got.UploadProgress)
	require.Equal(t, "srv-a", got.ServerID)
}

func TestUploadFailureRemovesAndNotifies(t *testing.T) {
	up := newFakeUploader()
	m, q := newTestManager(t, up, FileSpec{})
	sub := q.Subscribe()

	m.Enqueue(testFile("report.pdf"))
	up.next(t).done <- outcome{err: errors.New("413 too large")}
	m.Wait()

	require.Empty(t, m.Attachments())
	require.Equal(t, []events.Notification{{Level: events.LevelError, Text: "Failed to upload report.pdf: 413 too large"}}, notifications(sub))
}

func TestEmptyServerIDIsAFailure(t *testing.T) {
	up := UploaderFunc(func(ctx context.Context, file File, onProgress func(int)) (UploadResult, error) {
		onProgress(100)
		return UploadResult{}, nil
	})
	m, q := newTestManager(t, up, FileSpec{})
	sub := q.Subscribe()

	m.Enqueue(testFile("blank.txt"))
	m.Wait()

	require.Empty(t, m.Attachments())
	var notes []events.Notification
	for _, ev := range drain(sub) {
		switch p := ev.Payload.(type) {
		case Snapshot:
			for _, a := range p.Attachments {
				require.Equal(t, a.Uploaded, a.ServerID != "", "snapshot %d: %+v", p.Version, a)
			}
		case events.Notification:
			notes = append(notes, p)
		}
	}
	require.Equal(t, []events.Notification{{Level: events.LevelError, Text: "Failed to upload blank.txt: " + ErrNoServerID.Error()}}, notes)
}

func TestSlowObserverSeesFinalSnapshotAndFailure(t *testing.T) {
	up := newFakeUploader()
	q := events.NewEventQueue(4)
	t.Cleanup(q.Close)
	m := NewManager(Options{Uploader: up, Events: q, Log: logger.Discard()})
	sub := q.Subscribe()

	good := m.Enqueue(testFile("good.txt"))
	tr := up.next(t)
	for p := 1; p <= 99; p++ {
		tr.progress(p)
	}
	tr.done <- outcome{res: UploadResult{ID: "srv-good"}}
	m.Wait()

	m.Enqueue(testFile("bad.txt"))
	tr = up.next(t)
	for p := 1; p <= 99; p++ {
		tr.progress(p)
	}
	tr.done <- outcome{err: errors.New("disk full")}
	m.Wait()

	// 观察者此前从未读取，现在依次读出全部事件。
	var last Snapshot
	var notes []string
	deadline := time.After(2 * time.Second)
	for len(notes) == 0 {
		select {
		case ev := <-sub:
			switch p := ev.Payload.(type) {
			case Snapshot:
				require.Greater(t, p.Version, last.Version)
				last = p
			case events.Notification:
				notes = append(notes, p.Text)
			}
		case <-deadline:
			t.Fatalf("timeout; last snapshot %+v", last)
		}
	}
	require.Equal(t, []string{"Failed to upload bad.txt: disk full"}, notes)
	require.Len(t, last.Attachments, 1)
	require.Equal(t, good.ID, last.Attachments[0].ID)
	require.True(t, last.Attachments[0].Uploaded)
	require.Equal(t, "srv-good", last.Attachments[0].ServerID)
}

func TestFailureAfterRemoveIsSilent(t *testing.T) {
	up := newFakeUploader()
	m, q := newTestManager(t, up, FileSpec{})
	sub := q.Subscribe()

	a := m.Enqueue(testFile("x"))
	tr := up.next(t)
	require.True(t, m.Remove(a.ID))
	require.False(t, m.Remove(a.ID))
	require.NoError(t, tr.ctx.Err(), "remove must not abort the transfer")

	tr.done <- outcome{err: errors.New("boom")}
	m.Wait()
	require.Empty(t, notifications(sub))
}

func TestNoUploaderFailsEachFile(t *testing.T) {
	m, q := newTestManager(t, nil, FileSpec{})
	sub := q.Subscribe()
	m.Enqueue(testFile("orphan"))
	m.Wait()
	require.Empty(t, m.Attachments())
	got := notifications(sub)
	require.Len(t, got, 1)
	require.Contains(t, got[0].Text, ErrNoUploader.Error())
}

func TestResetAbortsOutstandingSilently(t *testing.T) {
	up := newFakeUploader()
	m, q := newTestManager(t, up, FileSpec{})
	sub := q.Subscribe()

	m.Enqueue(testFile("a"))
	tr := up.next(t)
	m.Enqueue(testFile("b"))
	up.next(t).done <- outcome{res: UploadResult{ID: "srv-b"}}
	require.Eventually(t, func() bool { return len(m.Uploaded()) == 1 }, time.Second, 10*time.Millisecond)

	m.Reset()
	m.Wait()
	require.Error(t, tr.ctx.Err())
	require.Empty(t, m.Attachments())
	require.Empty(t, notifications(sub))
}

func TestObserversSeeOrderedSnapshots(t *testing.T) {
	up := newFakeUploader()
	m, q := newTestManager(t, up, FileSpec{})
	sub := q.Subscribe()

	m.Enqueue(testFile("a"))
	tr := up.next(t)
	tr.progress(50)
	tr.done <- outcome{res: UploadResult{ID: "srv-a"}}
	m.Wait()

	var versions []uint64
	var last Snapshot
	for _, ev := range drain(sub) {
		if ev.Type != events.EventAttachmentsChanged {
			continue
		}
		snap := ev.Payload.(Snapshot)
		versions = append(versions, snap.Version)
		last = snap
	}
	require.Equal(t, []uint64{1, 2, 3}, versions)
	require.Len(t, last.Attachments, 1)
	require.True(t, last.Attachments[0].Uploaded)
}

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestAcceptAppliesFileSpec(t *testing.T) {
	up := newFakeUploader()
	m, q := newTestManager(t, up, FileSpec{MaxSizeMB: 1, MaxFiles: 2, Accept: []string{"image/*", ".csv"}})
	sub := q.Subscribe()

	huge := File{Name: "huge.png", Size: 2 * 1024 * 1024, MimeType: "image/png"}
	doc := File{Name: "doc.pdf", Size: 10, MimeType: "application/pdf"}
	img := File{Name: "cat.png", Size: 10, MimeType: "image/png"}
	csv := File{Name: "data.CSV", Size: 10, MimeType: "text/csv"}
	extra := File{Name: "dog.jpg", Size: 10, MimeType: "image/jpeg"}

	got := m.Accept([]File{huge, doc, img, csv, extra})
	require.Equal(t, []string{"cat.png", "data.CSV"}, []string{got[0].Name, got[1].Name})
	require.Len(t, got, 2)

	texts := []string{}
	for _, n := range notifications(sub) {
		require.Equal(t, events.LevelError, n.Level)
		texts = append(texts, n.Text)
	}
	require.Equal(t, []string{
		"huge.png is larger than 1 MB",
		"doc.pdf: file type application/pdf is not accepted",
		"Cannot attach dog.jpg: at most 2 files per message",
	}, texts)

	up.next(t).done <- outcome{res: UploadResult{ID: "1"}}
	up.next(t).done <- outcome{res: UploadResult{ID: "2"}}
	m.Wait()
}

func TestFileSpecAccepts(t *testing.T) {
	cases := []struct {
		accept []string
		file   File
		want   bool
	}{
		{nil, File{MimeType: "anything/at-all"}, true},
		{[]string{"*/*"}, File{MimeType: "application/zip"}, true},
		{[]string{"*/*"}, File{}, true},
		{[]string{"image/*"}, File{MimeType: "image/webp"}, true},
		{[]string{"image/*"}, File{MimeType: "text/plain"}, false},
		{[]string{"application/pdf"}, File{MimeType: "Application/PDF"}, true},
		{[]string{".md"}, File{Name: "README.md", MimeType: "text/markdown"}, true},
		{[]string{"[bad"}, File{MimeType: "text/plain"}, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FileSpec{Accept: tc.accept}.Accepts(tc.file), "accept=%v file=%+v", tc.accept, tc.file)
	}
}
