package events

import (
	"io"

	"chatbox/internal/logger"
)

// 默认的 SQ/EQ 日志文件路径。
const (
	DefaultSQLogPath = "logs/sq.log"
	DefaultEQLogPath = "logs/eq.log"
)

// log 复用全局 logger，标记事件组件。
var log = logger.Named("events")

// NewQueueLogger 为队列创建独立文件日志；路径为空或打开失败时回退到全局 logger。
func NewQueueLogger(component, path string) (*logger.LogEntry, io.Closer) {
	if path == "" {
		return logger.Named(component), nil
	}
	entry, closer, _, err := logger.SetupComponentFile(component, path)
	if err != nil {
		log.Warnf("failed to set up %s log file (%s): %v", component, path, err)
		return logger.Named(component), nil
	}
	return entry, closer
}
