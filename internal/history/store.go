package history

import (
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
)

// Capacity 是输入历史保留的最大条目数。
const Capacity = 50

// Entry 是一次已提交的输入，记录后不再修改。
type Entry struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store 是有界的输入历史：超过容量时从最旧的一端淘汰。
type Store struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

// New 创建 Store；capacity <= 0 时使用 Capacity。
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Store{capacity: capacity}
}

// Record appends entry, evicting from the front until the length fits the capacity.
func (s *Store) Record(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]Entry, 0, min(len(s.entries)+1, s.capacity))
	if over := len(s.entries) + 1 - s.capacity; over > 0 {
		next = append(next, s.entries[over:]...)
	} else {
		next = append(next, s.entries...)
	}
	s.entries = append(next, entry)
}

// Append 以当前时间记录 content。空内容同样会被记录。
func (s *Store) Append(content string) Entry {
	entry := Entry{Content: content, CreatedAt: time.Now()}
	s.Record(entry)
	return entry
}

// Entries returns a copy of the history, oldest first.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Texts returns the recorded contents, oldest first.
func (s *Store) Texts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Content
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Capacity() int {
	return s.capacity
}

// Reset 清空历史（切换会话或线程时调用）。
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Match 是一次模糊搜索命中。
type Match struct {
	Entry   Entry
	Indexes []int
	Score   int
}

// Search 在历史中模糊匹配 query，按得分排序，同分时较新的条目在前。
// 空 query 返回全部条目，最新的在前。
func (s *Store) Search(query string, limit int) []Match {
	entries := s.Entries()
	query = strings.TrimSpace(query)
	var out []Match
	if query == "" {
		for i := len(entries) - 1; i >= 0; i-- {
			out = append(out, Match{Entry: entries[i]})
		}
		return truncate(out, limit)
	}

	// 倒序输入，让 fuzzy 的稳定排序在同分时优先较新的条目。
	keys := make([]string, len(entries))
	for i := range entries {
		keys[i] = strings.ToLower(entries[len(entries)-1-i].Content)
	}
	seen := map[string]bool{}
	for _, res := range fuzzy.Find(strings.ToLower(query), keys) {
		entry := entries[len(entries)-1-res.Index]
		if seen[entry.Content] {
			continue
		}
		seen[entry.Content] = true
		out = append(out, Match{Entry: entry, Indexes: res.MatchedIndexes, Score: res.Score})
	}
	return truncate(out, limit)
}

func truncate(matches []Match, limit int) []Match {
	if limit > 0 && len(matches) > limit {
		return matches[:limit]
	}
	return matches
}
