package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// StatusState 枚举了状态行可显示的所有状态。
type StatusState int

const (
	// StatusStreaming 表示助手正在流式输出，计时器持续累加。
	StatusStreaming StatusState = iota
	// StatusUploading 表示附件上传未完成，计时器持续累加。
	StatusUploading
	// StatusError 表示最近一次操作失败。
	StatusError
	// StatusIdle 表示空闲，不显示状态行。
	StatusIdle
)

func (s StatusState) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusUploading:
		return "uploading"
	case StatusError:
		return "error"
	case StatusIdle:
		return "idle"
	default:
		return "unknown"
	}
}

func (s StatusState) defaultHeader() string {
	switch s {
	case StatusStreaming:
		return "Receiving reply"
	case StatusUploading:
		return "Uploading"
	case StatusError:
		return "Error"
	default:
		return ""
	}
}

func (s StatusState) tracksElapsed() bool {
	return s == StatusStreaming || s == StatusUploading
}

func (s StatusState) visible() bool {
	return s != StatusIdle
}

func (s StatusState) valid() bool {
	switch s {
	case StatusStreaming, StatusUploading, StatusError, StatusIdle:
		return true
	default:
		return false
	}
}

var statusHintStyle = lipgloss.NewStyle().Faint(true)

// statusLine 渲染与管理状态行（spinner + 标题 + 计时/提示）。
type statusLine struct {
	header string
	hint   string
	state  StatusState

	elapsedRunning time.Duration
	lastResumeAt   time.Time
	paused         bool

	clock func() time.Time
}

func newStatusLine(clock func() time.Time) *statusLine {
	if clock == nil {
		clock = time.Now
	}
	return &statusLine{state: StatusIdle, paused: true, clock: clock, lastResumeAt: clock()}
}

// Set 更新状态与标题；状态变化时按需暂停或恢复计时。
// 从空闲进入计时状态时计时清零。
func (s *statusLine) Set(state StatusState, header, hint string) {
	if !state.valid() {
		return
	}
	now := s.clock()
	if s.state == StatusIdle && state.tracksElapsed() {
		s.elapsedRunning = 0
	}
	switch {
	case state.tracksElapsed() && s.paused:
		s.resumeTimerAt(now)
	case !state.tracksElapsed() && !s.paused:
		s.pauseTimerAt(now)
	}
	s.state = state
	if header == "" {
		header = state.defaultHeader()
	}
	s.header = header
	s.hint = hint
}

func (s *statusLine) State() StatusState { return s.state }

// View 绘制状态行，宽度不足时截断；空闲时返回空串。
func (s *statusLine) View(frame string, width int) string {
	if !s.state.visible() || width <= 0 {
		return ""
	}
	if s.state == StatusError {
		frame = "!"
	}
	parts := []string{frame}
	if s.header != "" {
		parts = append(parts, s.header)
	}
	plain := strings.Join(parts, " ")
	hint := formatHint(fmtElapsedCompact(s.elapsedSecondsAt(s.clock())), s.hint, s.state.tracksElapsed())
	if hint == "" {
		return truncateToWidth(plain, width)
	}
	plain += " "
	if runewidth.StringWidth(plain) >= width {
		return truncateToWidth(plain, width)
	}
	return plain + statusHintStyle.Render(truncateToWidth(hint, width-runewidth.StringWidth(plain)))
}

func (s *statusLine) pauseTimerAt(now time.Time) {
	if s.paused {
		return
	}
	s.elapsedRunning += now.Sub(s.lastResumeAt)
	s.paused = true
}

func (s *statusLine) resumeTimerAt(now time.Time) {
	if !s.paused {
		return
	}
	s.lastResumeAt = now
	s.paused = false
}

func (s *statusLine) elapsedSecondsAt(now time.Time) uint64 {
	d := s.elapsedRunning
	if !s.paused {
		d += now.Sub(s.lastResumeAt)
	}
	return uint64(d.Seconds())
}

func formatHint(elapsed, hint string, timed bool) string {
	switch {
	case timed && hint != "":
		return fmt.Sprintf("(%s • %s)", elapsed, hint)
	case timed:
		return fmt.Sprintf("(%s)", elapsed)
	case hint != "":
		return fmt.Sprintf("(%s)", hint)
	default:
		return ""
	}
}

// fmtElapsedCompact 将秒数格式化为友好字符串。
func fmtElapsedCompact(elapsedSecs uint64) string {
	switch {
	case elapsedSecs < 60:
		return fmt.Sprintf("%ds", elapsedSecs)
	case elapsedSecs < 3600:
		minutes := elapsedSecs / 60
		seconds := elapsedSecs % 60
		return fmt.Sprintf("%dm %02ds", minutes, seconds)
	default:
		hours := elapsedSecs / 3600
		minutes := (elapsedSecs % 3600) / 60
		seconds := elapsedSecs % 60
		return fmt.Sprintf("%dh %02dm %02ds", hours, minutes, seconds)
	}
}

func truncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	w := 0
	out := make([]rune, 0, len(text))
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if w+rw > width {
			break
		}
		out = append(out, r)
		w += rw
	}
	return string(out)
}
