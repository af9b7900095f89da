package tui

import (
	"fmt"
	"strings"

	"chatbox/internal/attachment"
	"chatbox/internal/events"
	"chatbox/internal/history"
	"chatbox/internal/logger"
	"chatbox/internal/render"
	"chatbox/internal/session"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const searchLimit = 8

type Options struct {
	Session  *session.Session
	Terminal *render.Terminal
	// Cursor is drawn in place of the streaming marker when Terminal is nil.
	Cursor string
	// Copy writes to the system clipboard; defaults to atotto/clipboard.
	Copy func(string) error
	Log  *logger.LogEntry
}

type eqEventMsg struct {
	Event events.Event
}

type eqClosedMsg struct{}

var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	userPrefixStyle  = lipgloss.NewStyle().Faint(true).Bold(true)
	pendingStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	noticeStyle      = lipgloss.NewStyle().Faint(true).Italic(true)
	searchMatchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	hintStyle        = lipgloss.NewStyle().Faint(true)
)

type Model struct {
	session   *session.Session
	term      *render.Terminal
	cursor    string
	copy      func(string) error
	log       *logger.LogEntry
	renderers map[events.EventType]render.EventRenderer
	rctx      *render.Context
	eqSub     <-chan events.Event

	textarea textarea.Model
	viewport viewport.Model
	spin     spinner.Model
	bar      progress.Model
	status   *statusLine

	attachments []attachment.Attachment
	version     uint64
	autoScroll  bool
	streaming   bool

	searching     bool
	searchQuery   string
	searchResults []history.Match
	searchIdx     int

	width  int
	height int
}

func New(opts Options) *Model {
	ti := textarea.New()
	ti.Placeholder = "Send a message…  (/help for commands)"
	ti.Prompt = "› "
	ti.CharLimit = 0
	ti.SetWidth(90)
	ti.SetHeight(1)
	ti.ShowLineNumbers = false
	ti.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	sess := opts.Session
	if sess == nil {
		sess = session.New(session.Options{})
	}
	cursor := opts.Cursor
	if cursor == "" {
		cursor = render.DefaultCursor
	}
	copyFn := opts.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	log := opts.Log
	if log == nil {
		log = logger.Named("tui")
	}

	return &Model{
		session:    sess,
		term:       opts.Terminal,
		cursor:     cursor,
		copy:       copyFn,
		log:        log,
		renderers:  render.DefaultRenderers(),
		rctx:       &render.Context{Transcript: render.NewTranscript(), ThreadID: sess.ThreadID()},
		eqSub:      sess.Events.Subscribe(),
		textarea:   ti,
		viewport:   viewport.New(90, 12),
		spin:       spin,
		bar:        newProgressBar(),
		status:     newStatusLine(nil),
		autoScroll: true,
		width:      90,
		height:     24,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick, m.listenEvents())
}

func (m *Model) listenEvents() tea.Cmd {
	sub := m.eqSub
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return eqClosedMsg{}
		}
		return eqEventMsg{Event: ev}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m.finish(cmds...)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
		return m.finish(cmds...)
	case eqEventMsg:
		m.handleEvent(msg.Event)
		cmds = append(cmds, m.listenEvents())
		return m.finish(cmds...)
	case eqClosedMsg:
		return m.finish(cmds...)
	case tea.KeyMsg:
		if m.searching {
			return m.finish(m.handleSearchKey(msg))
		}
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.cancelPending()
			return m.finish(cmds...)
		case "ctrl+r":
			m.openSearch()
			return m.finish(cmds...)
		case "pgup":
			m.viewport.ViewUp()
			m.autoScroll = false
			return m.finish(cmds...)
		case "pgdown":
			m.viewport.ViewDown()
			m.autoScroll = m.viewport.AtBottom()
			return m.finish(cmds...)
		case "up":
			if m.recallPrev() {
				return m.finish(cmds...)
			}
		case "down":
			if m.recallNext() {
				return m.finish(cmds...)
			}
		case "alt+enter":
			text := m.textarea.Value()
			if strings.TrimSpace(text) != "" {
				m.session.Reply(text)
				m.clearInput()
			}
			return m.finish(cmds...)
		case "enter":
			if cmd := m.submit(); cmd != nil {
				cmds = append(cmds, cmd)
			}
			return m.finish(cmds...)
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	return m.finish(cmds...)
}

func (m *Model) finish(cmds ...tea.Cmd) (tea.Model, tea.Cmd) {
	m.refresh()
	return m, tea.Batch(cmds...)
}

// submit 处理回车：斜杠命令或发送消息。
func (m *Model) submit() tea.Cmd {
	input := m.textarea.Value()
	if cmd, ok := parseCommand(input); ok {
		m.clearInput()
		return m.runCommand(cmd)
	}
	if strings.TrimSpace(input) == "" && len(attachment.Completed(m.attachments)) == 0 {
		return nil
	}
	m.session.Submit(input)
	m.clearInput()
	return nil
}

func (m *Model) runCommand(cmd parsedCommand) tea.Cmd {
	switch cmd.Name {
	case CommandAttach:
		if len(cmd.Args) == 0 {
			m.notice(events.LevelError, "usage: /attach <path>...")
			return nil
		}
		var files []attachment.File
		for _, path := range cmd.Args {
			f, err := attachment.OpenPath(path)
			if err != nil {
				m.notice(events.LevelError, err.Error())
				continue
			}
			files = append(files, f)
		}
		m.session.Attachments.Accept(files)
	case CommandCancel, CommandRemove:
		items := m.session.Attachments.Attachments()
		idx, err := cmd.index(len(items))
		if err != nil {
			m.notice(events.LevelError, err.Error())
			return nil
		}
		if cmd.Name == CommandRemove {
			m.session.Attachments.Remove(items[idx].ID)
			return nil
		}
		if !m.session.Attachments.Cancel(items[idx].ID) {
			m.notice(events.LevelInfo, fmt.Sprintf("%s is not uploading", items[idx].Name))
		}
	case CommandReply:
		if cmd.Rest == "" {
			m.notice(events.LevelError, "usage: /reply <text>")
			return nil
		}
		m.session.Reply(cmd.Rest)
	case CommandNew:
		m.session.NewThread()
	case CommandCopy:
		text, ok := m.rctx.Transcript.LastAssistant()
		if !ok {
			m.notice(events.LevelInfo, "nothing to copy yet")
			return nil
		}
		if err := m.copy(text); err != nil {
			m.notice(events.LevelError, fmt.Sprintf("copy failed: %v", err))
			return nil
		}
		m.notice(events.LevelInfo, "copied last reply")
	case CommandHelp:
		m.notice(events.LevelInfo, helpText())
	case CommandQuit, CommandExit:
		return tea.Quit
	default:
		m.notice(events.LevelError, fmt.Sprintf("unknown command /%s", cmd.Name))
	}
	return nil
}

func (m *Model) handleEvent(ev events.Event) {
	m.session.Observe(ev)
	if m.rctx.ThreadID == "" {
		m.rctx.ThreadID = m.session.ThreadID()
	}
	switch ev.Type {
	case events.EventAttachmentsChanged:
		if snap, ok := ev.Payload.(attachment.Snapshot); ok && snap.Version > m.version {
			m.version = snap.Version
			m.attachments = snap.Attachments
		}
	case events.EventAutoScroll:
		m.autoScroll = true
	case events.EventStreamChunk:
		if chunk, ok := ev.Payload.(events.StreamChunk); ok {
			m.streaming = !chunk.Final
		}
	case events.EventThreadReset:
		m.streaming = false
		m.status.Set(StatusIdle, "", "")
	case events.EventNotification:
		if n, ok := ev.Payload.(events.Notification); ok && n.Level == events.LevelError {
			m.status.Set(StatusError, n.Text, "")
		}
	}
	render.Dispatch(m.rctx, m.renderers, ev)
	m.updateStatus()
}

func (m *Model) updateStatus() {
	pending := pendingCount(m.attachments)
	switch {
	case m.streaming:
		m.status.Set(StatusStreaming, "", "")
	case pending > 0:
		header := "Uploading 1 file"
		if pending > 1 {
			header = fmt.Sprintf("Uploading %d files", pending)
		}
		m.status.Set(StatusUploading, header, "esc to cancel")
	case m.status.State() != StatusError:
		m.status.Set(StatusIdle, "", "")
	}
}

func (m *Model) cancelPending() {
	for _, a := range m.session.Attachments.Attachments() {
		if !a.Uploaded {
			m.session.Attachments.Cancel(a.ID)
		}
	}
	if m.status.State() == StatusError {
		m.status.Set(StatusIdle, "", "")
	}
}

func (m *Model) recallPrev() bool {
	if m.textarea.Value() != "" && !m.session.Recall.Browsing() {
		return false
	}
	text, ok := m.session.Recall.Prev(m.textarea.Value())
	if ok {
		m.setInput(text)
	}
	return ok
}

func (m *Model) recallNext() bool {
	if !m.session.Recall.Browsing() {
		return false
	}
	text, ok := m.session.Recall.Next()
	if ok {
		m.setInput(text)
	}
	return ok
}

func (m *Model) openSearch() {
	m.searching = true
	m.searchQuery = ""
	m.searchIdx = 0
	m.searchResults = m.session.History.Search("", searchLimit)
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.searching = false
	case tea.KeyEnter:
		if m.searchIdx < len(m.searchResults) {
			m.setInput(m.searchResults[m.searchIdx].Entry.Content)
		}
		m.searching = false
	case tea.KeyUp, tea.KeyCtrlR:
		if m.searchIdx+1 < len(m.searchResults) {
			m.searchIdx++
		}
	case tea.KeyDown:
		if m.searchIdx > 0 {
			m.searchIdx--
		}
	case tea.KeyBackspace:
		if r := []rune(m.searchQuery); len(r) > 0 {
			m.searchQuery = string(r[:len(r)-1])
			m.runSearch()
		}
	case tea.KeySpace:
		m.searchQuery += " "
		m.runSearch()
	case tea.KeyRunes:
		m.searchQuery += string(msg.Runes)
		m.runSearch()
	}
	return nil
}

func (m *Model) runSearch() {
	m.searchResults = m.session.History.Search(m.searchQuery, searchLimit)
	m.searchIdx = 0
}

func (m *Model) notice(level events.NotificationLevel, text string) {
	m.rctx.Transcript.AppendNotice(events.Notification{Level: level, Text: text})
	m.autoScroll = true
}

func (m *Model) setInput(text string) {
	m.textarea.SetValue(text)
	m.textarea.CursorEnd()
}

func (m *Model) clearInput() {
	m.textarea.Reset()
	m.session.Recall.Reset()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.textarea.SetWidth(max(width, 10))
	m.viewport.Width = width
}

// refresh 重新计算布局并渲染转录。
func (m *Model) refresh() {
	lines := max(1, min(6, strings.Count(m.textarea.Value(), "\n")+1))
	m.textarea.SetHeight(lines)

	chrome := 1 + lines + 1 + 1 // header, input, status, hints
	if n := len(m.attachments); n > 0 {
		chrome += n
	}
	if m.searching {
		chrome += len(m.searchResults) + 1
	}
	m.viewport.Height = max(3, m.height-chrome)
	m.viewport.SetContent(m.renderTranscript())
	if m.autoScroll {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderTranscript() string {
	width := max(m.width-2, 10)
	body := lipgloss.NewStyle().Width(width)
	var blocks []string
	for _, e := range m.rctx.Transcript.Entries() {
		switch e.Role {
		case render.RoleUser:
			text := e.Content
			if e.Files > 0 {
				text += pendingStyle.Render(fmt.Sprintf("  [%d file(s)]", e.Files))
			}
			switch e.Status {
			case render.StatusQueued:
				text += pendingStyle.Render(" …")
			case render.StatusFailed:
				text += errorStyle.Render(" ✗ not delivered")
			}
			blocks = append(blocks, userPrefixStyle.Render("› ")+body.Render(text))
		case render.RoleAssistant:
			blocks = append(blocks, m.renderAssistant(e.Content))
		case render.RoleNotice:
			style := noticeStyle
			if e.Level == events.LevelError {
				style = errorStyle
			}
			blocks = append(blocks, style.Render(body.Render(e.Content)))
		}
	}
	if len(blocks) == 0 {
		return hintStyle.Render("Type a message to start. /attach adds files, /help lists commands.")
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderAssistant(content string) string {
	if m.term != nil {
		return m.term.Render(content)
	}
	return render.Plain(content, m.cursor)
}

func (m *Model) View() string {
	var b strings.Builder
	title := "chatbox"
	if thread := m.session.ThreadID(); thread != "" {
		title += hintStyle.Render("  thread " + thread)
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if chips := renderChips(m.attachments, m.bar, m.width); chips != "" {
		b.WriteString(chips)
		b.WriteString("\n")
	}
	b.WriteString(m.status.View(m.spin.View(), m.width))
	b.WriteString("\n")
	if m.searching {
		b.WriteString(m.renderSearch())
		b.WriteString("\n")
	}
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("enter send • alt+enter reply • ↑/↓ history • ctrl+r search • pgup/pgdown scroll • ctrl+c quit"))
	return b.String()
}

func (m *Model) renderSearch() string {
	lines := []string{hintStyle.Render("history search: ") + m.searchQuery}
	for i, r := range m.searchResults {
		text := truncateToWidth(strings.ReplaceAll(r.Entry.Content, "\n", " "), max(m.width-4, 10))
		if i == m.searchIdx {
			lines = append(lines, searchMatchStyle.Render("> "+text))
			continue
		}
		lines = append(lines, "  "+text)
	}
	return strings.Join(lines, "\n")
}
