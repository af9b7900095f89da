package tui

import (
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

func TestFmtElapsedCompact(t *testing.T) {
	cases := []struct {
		seconds  uint64
		expected string
	}{
		{seconds: 0, expected: "0s"},
		{seconds: 59, expected: "59s"},
		{seconds: 60, expected: "1m 00s"},
		{seconds: 3*60 + 5, expected: "3m 05s"},
		{seconds: 3600, expected: "1h 00m 00s"},
		{seconds: 25*3600 + 2*60 + 3, expected: "25h 02m 03s"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if got := fmtElapsedCompact(tc.seconds); got != tc.expected {
				t.Fatalf("fmtElapsedCompact(%d) = %q, want %q", tc.seconds, got, tc.expected)
			}
		})
	}
}

func TestStatusLineTimerPausesAndResumes(t *testing.T) {
	base := time.Unix(0, 0)
	now := base
	s := newStatusLine(func() time.Time { return now })
	s.Set(StatusUploading, "", "")

	now = base.Add(5 * time.Second)
	if got := s.elapsedSecondsAt(now); got != 5 {
		t.Fatalf("expected 5s before pause, got %d", got)
	}

	s.Set(StatusError, "", "")
	now = base.Add(10 * time.Second)
	if got := s.elapsedSecondsAt(now); got != 5 {
		t.Fatalf("expected paused elapsed 5, got %d", got)
	}

	s.Set(StatusStreaming, "", "")
	now = base.Add(13 * time.Second)
	if got := s.elapsedSecondsAt(now); got != 8 {
		t.Fatalf("expected resumed elapsed 8, got %d", got)
	}

	s.Set(StatusIdle, "", "")
	s.Set(StatusStreaming, "", "")
	if got := s.elapsedSecondsAt(now); got != 0 {
		t.Fatalf("expected timer to restart after idle, got %d", got)
	}
}

func TestStatusLineView(t *testing.T) {
	now := time.Unix(0, 0)
	s := newStatusLine(func() time.Time { return now })
	if got := s.View("•", 80); got != "" {
		t.Fatalf("idle status should render nothing, got %q", got)
	}

	s.Set(StatusUploading, "Uploading 2 files", "esc to cancel")
	got := ansi.Strip(s.View("•", 80))
	if want := "• Uploading 2 files (0s • esc to cancel)"; got != want {
		t.Fatalf("unexpected render output %q, want %q", got, want)
	}

	s.Set(StatusError, "Upload failed", "")
	if got := ansi.Strip(s.View("•", 80)); got != "! Upload failed" {
		t.Fatalf("unexpected error render %q", got)
	}
}

func TestStatusLineClampsToWidth(t *testing.T) {
	s := newStatusLine(nil)
	s.Set(StatusStreaming, "", "")
	for _, width := range []int{4, 10, 20} {
		out := ansi.Strip(s.View("•", width))
		if w := runewidth.StringWidth(out); w > width {
			t.Fatalf("rendered width %d exceeds %d: %q", w, width, out)
		}
	}
}
