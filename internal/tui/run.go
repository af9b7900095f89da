package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run 封装 Bubble Tea 入口，阻塞直到用户退出。
func Run(opts Options) error {
	program := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
