package progress

import (
	"context"
	"encoding/json"
	"sync"
)

// Storage 持久化原语：key → 序列化数据。key 不存在时 Get 返回 (nil, nil)。
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

// Encode 只序列化课程映射
func Encode(s State) ([]byte, error) {
	return json.Marshal(s.Courses)
}

// Decode 解析持久化数据。章节条目缺少 chapterId 时以 map key 补齐，未知课程忽略。
func Decode(blob []byte) (map[Course]CourseProgress, error) {
	raw := make(map[Course]CourseProgress)
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, err
	}

	out := make(map[Course]CourseProgress, len(Courses))
	for c, cp := range raw {
		if !c.Valid() {
			continue
		}
		fixed := make(CourseProgress, len(cp))
		for id, ch := range cp {
			if id == "" {
				continue
			}
			ch.ChapterID = id
			fixed[id] = ch
		}
		out[c] = fixed
	}
	return out, nil
}

// MemoryStorage 进程内实现
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

func (m *MemoryStorage) Set(ctx context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
