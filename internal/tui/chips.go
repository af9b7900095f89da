package tui

import (
	"fmt"
	"strings"

	"chatbox/internal/attachment"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const chipNameWidth = 24

var (
	chipIndexStyle = lipgloss.NewStyle().Faint(true)
	chipDoneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
)

func newProgressBar() progress.Model {
	return progress.New(progress.WithDefaultGradient(), progress.WithWidth(12), progress.WithoutPercentage())
}

// renderChips 每个附件一行：序号、截断后的文件名、进度条或完成标记。
func renderChips(items []attachment.Attachment, bar progress.Model, width int) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items))
	for i, a := range items {
		name := runewidth.Truncate(a.Name, chipNameWidth, "…")
		name = runewidth.FillRight(name, chipNameWidth)
		var state string
		if a.Uploaded {
			state = chipDoneStyle.Render("✓ uploaded")
		} else {
			state = bar.ViewAs(float64(a.UploadProgress)/100) + fmt.Sprintf(" %3d%%", a.UploadProgress)
		}
		line := chipIndexStyle.Render(fmt.Sprintf("[%d] ", i+1)) + name + " " + state
		lines = append(lines, lipgloss.NewStyle().MaxWidth(max(width, 1)).Render(line))
	}
	return strings.Join(lines, "\n")
}

// pendingCount 返回仍在上传的附件数。
func pendingCount(items []attachment.Attachment) int {
	n := 0
	for _, a := range items {
		if !a.Uploaded {
			n++
		}
	}
	return n
}
