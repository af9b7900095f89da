package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// 通知文案的 key 即英文格式串。
const (
	MsgUploadFailed    = "Failed to upload %s: %s"
	MsgUploadCancelled = "Cancelled upload of %s"
	MsgFileTooLarge    = "%s is larger than %d MB"
	MsgFileRejected    = "%s: file type %s is not accepted"
	MsgTooManyFiles    = "Cannot attach %s: at most %d files per message"
	MsgDeliveryFailed  = "Message could not be delivered: %s"
)

func init() {
	zh := language.SimplifiedChinese
	for key, msg := range map[string]string{
		MsgUploadFailed:    "上传 %s 失败：%s",
		MsgUploadCancelled: "已取消上传 %s",
		MsgFileTooLarge:    "%s 超过 %d MB",
		MsgFileRejected:    "%s：不接受 %s 类型的文件",
		MsgTooManyFiles:    "无法附加 %s：每条消息最多 %d 个文件",
		MsgDeliveryFailed:  "消息发送失败：%s",
	} {
		_ = message.SetString(zh, key, msg)
	}
}

// Printer 按语言格式化通知文案。零值使用默认语言。
type Printer struct {
	p *message.Printer
}

// NewPrinter 创建指定语言的 Printer。
func NewPrinter(lang Language) *Printer {
	return &Printer{p: message.NewPrinter(lang.Tag())}
}

// Sprintf 以 key 查找译文并格式化；缺少译文时使用 key 本身。
func (p *Printer) Sprintf(key string, args ...any) string {
	if p == nil || p.p == nil {
		return message.NewPrinter(DefaultLanguage.Tag()).Sprintf(key, args...)
	}
	return p.p.Sprintf(key, args...)
}
