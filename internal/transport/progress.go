package transport

import (
	"io"
	"sync"
)

// ProgressReader 包装上传内容，按已读字节数报告 0..100 的进度。
// 同一百分比只报告一次；total 未知（<=0）时仅在 EOF 报告 100。
type ProgressReader struct {
	r          io.Reader
	total      int64
	read       int64
	last       int
	onProgress func(int)
	mu         sync.Mutex
}

// NewProgressReader 创建进度读取器，onProgress 可为 nil。
func NewProgressReader(r io.Reader, total int64, onProgress func(int)) *ProgressReader {
	return &ProgressReader{r: r, total: total, last: -1, onProgress: onProgress}
}

func (p *ProgressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.mu.Lock()
	p.read += int64(n)
	pct := -1
	switch {
	case err == io.EOF:
		pct = 100
	case p.total > 0:
		pct = int(p.read * 100 / p.total)
		if pct > 99 {
			pct = 99
		}
	}
	report := pct > p.last
	if report {
		p.last = pct
	}
	p.mu.Unlock()

	if report && p.onProgress != nil {
		p.onProgress(pct)
	}
	return n, err
}

// BytesRead 返回已读取的字节数。
func (p *ProgressReader) BytesRead() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.read
}
