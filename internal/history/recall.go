package history

// Recall 负责输入框历史浏览状态（上下箭头），从最新条目向前遍历。
// cursor == len(entries) 表示当前在“最新输入”（非浏览历史）位置。
type Recall struct {
	store   *Store
	entries []string
	cursor  int
	draft   string
}

// NewRecall 基于 store 创建浏览状态。
func NewRecall(store *Store) *Recall {
	r := &Recall{store: store}
	r.Reset()
	return r
}

// Reset 重新读取历史快照并退出浏览。
func (r *Recall) Reset() {
	r.entries = nil
	if r.store != nil {
		r.entries = r.store.Texts()
	}
	r.cursor = len(r.entries)
	r.draft = ""
}

func (r *Recall) Browsing() bool {
	return r.cursor < len(r.entries)
}

// Prev 后退到更早的条目；首次进入浏览时保存 current 作为草稿。
func (r *Recall) Prev(current string) (string, bool) {
	if !r.Browsing() {
		r.Reset()
	}
	if len(r.entries) == 0 {
		return "", false
	}
	if r.cursor == len(r.entries) {
		r.draft = current
	}
	if r.cursor > 0 {
		r.cursor--
	}
	return r.entries[r.cursor], true
}

// Next 前进到更新的条目；越过最新条目时恢复草稿。
func (r *Recall) Next() (string, bool) {
	if len(r.entries) == 0 || r.cursor == len(r.entries) {
		return "", false
	}
	if r.cursor < len(r.entries)-1 {
		r.cursor++
		return r.entries[r.cursor], true
	}
	r.cursor = len(r.entries)
	return r.draft, true
}
