// Package history 保存本次会话最近生成的音频。
package history

import (
	"sync"
	"time"
)

// MaxItems 是历史记录上限，超出后最旧的一条被淘汰。
const MaxItems = 5

// Item 是一次成功合成的产物，创建后不再修改。
type Item struct {
	ID         string
	Text       string // 清洗后的文本
	Voice      string // 音色显示名
	VoiceID    string
	AudioURL   string // 会话内有效的音频引用
	Blob       []byte // 完整 WAV
	SampleRate int
	CreatedAt  time.Time
}

// ReleaseFunc 在条目被淘汰或清空时调用，用于释放 AudioURL 背后的资源。
type ReleaseFunc func(Item)

// Store 是按时间倒序、容量固定的内存历史。
type Store struct {
	mu      sync.RWMutex
	items   []Item
	maxSize int
	release ReleaseFunc
}

// NewStore 创建容量为 MaxItems 的历史。release 可为 nil。
func NewStore(release ReleaseFunc) *Store {
	return &Store{
		items:   make([]Item, 0, MaxItems+1),
		maxSize: MaxItems,
		release: release,
	}
}

// Record 把条目放到最前面，并淘汰超出容量的旧条目。
func (s *Store) Record(item Item) {
	s.mu.Lock()
	s.items = append([]Item{item}, s.items...)
	var evicted []Item
	if len(s.items) > s.maxSize {
		evicted = append(evicted, s.items[s.maxSize:]...)
		s.items = s.items[:s.maxSize]
	}
	s.mu.Unlock()

	s.releaseAll(evicted)
}

// Select 返回指定 ID 的条目，不会移除它。
func (s *Store) Select(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// List 返回全部条目的副本，最新的在前。
func (s *Store) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len 返回当前条目数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear 清空历史并释放所有条目。
func (s *Store) Clear() {
	s.mu.Lock()
	evicted := s.items
	s.items = make([]Item, 0, s.maxSize+1)
	s.mu.Unlock()

	s.releaseAll(evicted)
}

func (s *Store) releaseAll(items []Item) {
	if s.release == nil {
		return
	}
	for _, it := range items {
		s.release(it)
	}
}
