package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// Command 表示内置斜杠命令的标识符。
type Command string

const (
	CommandAttach Command = "attach"
	CommandCancel Command = "cancel"
	CommandRemove Command = "remove"
	CommandReply  Command = "reply"
	CommandNew    Command = "new"
	CommandCopy   Command = "copy"
	CommandHelp   Command = "help"
	CommandQuit   Command = "quit"
	CommandExit   Command = "exit"
)

var commandHelp = []struct {
	usage string
	desc  string
}{
	{"/attach <path>...", "attach files to the next message"},
	{"/cancel <n>", "cancel the upload of attachment n"},
	{"/remove <n>", "detach attachment n"},
	{"/reply <text>", "send text as a reply"},
	{"/new", "start a new thread"},
	{"/copy", "copy the last reply to the clipboard"},
	{"/quit", "exit"},
}

// parsedCommand 是一行斜杠输入的解析结果。
type parsedCommand struct {
	Name Command
	Args []string
	// Rest 为命令名之后的原始文本。
	Rest string
}

// parseCommand 解析以 / 开头的输入；非命令输入返回 false。
func parseCommand(input string) (parsedCommand, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") || strings.HasPrefix(input, "//") {
		return parsedCommand{}, false
	}
	body := input[1:]
	name, rest, _ := strings.Cut(body, " ")
	if name == "" {
		return parsedCommand{}, false
	}
	cmd := parsedCommand{Name: Command(strings.ToLower(name)), Rest: strings.TrimSpace(rest)}
	if cmd.Rest != "" {
		cmd.Args = strings.Fields(cmd.Rest)
	}
	return cmd, true
}

// index 将第一个参数解析为 1 起始的附件序号。
func (c parsedCommand) index(count int) (int, error) {
	if len(c.Args) == 0 {
		return 0, fmt.Errorf("usage: /%s <n>", c.Name)
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil || n < 1 || n > count {
		return 0, fmt.Errorf("no attachment #%s", c.Args[0])
	}
	return n - 1, nil
}

func helpText() string {
	var b strings.Builder
	for i, h := range commandHelp {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%-18s %s", h.usage, h.desc)
	}
	return b.String()
}
