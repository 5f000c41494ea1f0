package progress

import (
	"color_academy_backend/pkg/logger"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 水合读取的超时，与调用方的取消无关
const loadTimeout = 5 * time.Second

// Store 单个用户的教程进度容器
type Store struct {
	dispatchMu sync.Mutex // 串行化 reduce、持久化与通知，订阅方按写入顺序收到快照

	mu     sync.RWMutex
	state  State
	loaded bool // 成功水合前拒绝持久化，避免空状态覆盖已存数据
	subs   map[int]func(State)
	nextID int

	storage Storage
	key     string
}

// NewStore storage 为 nil 时只保存在内存中
func NewStore(storage Storage, key string) *Store {
	return &Store{
		state:   NewState(),
		subs:    make(map[int]func(State)),
		storage: storage,
		key:     key,
	}
}

// Load 从持久化存储水合。数据缺失或损坏时回退为空状态；
// 读取失败时返回错误，容器保持未加载，之后可以重试。
func (s *Store) Load(ctx context.Context) error {
	courses := map[Course]CourseProgress{}

	if s.storage != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		blob, err := s.storage.Get(rctx, s.key)
		if err != nil {
			logger.Log.Warn("progress: read failed", zap.String("key", s.key), zap.Error(err))
			return fmt.Errorf("load progress: %w", err)
		}
		if blob != nil {
			decoded, err := Decode(blob)
			if err != nil {
				logger.Log.Warn("progress: corrupted blob, starting empty", zap.String("key", s.key), zap.Error(err))
			} else {
				courses = decoded
			}
		}
	}

	return s.Dispatch(ctx, Hydrate{Courses: courses})
}

// Loaded 是否已成功水合
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) Dispatch(ctx context.Context, a Action) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.RLock()
	prev, loaded := s.state, s.loaded
	s.mu.RUnlock()

	if a.persisted() && s.storage != nil && !loaded {
		return ErrNotLoaded
	}

	next, err := Reduce(prev, a)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = next
	if _, ok := a.(Hydrate); ok {
		s.loaded = true
	}
	subs := s.subscribers()
	s.mu.Unlock()

	var persistErr error
	if a.persisted() && s.storage != nil {
		persistErr = s.persist(ctx, a, next)
	}

	// 仍持有 dispatchMu，并发写入的通知不会交错
	snapshot := next.Clone()
	for _, fn := range subs {
		fn(snapshot)
	}
	return persistErr
}

func (s *Store) persist(ctx context.Context, a Action, st State) error {
	// 全部重置直接删除 key
	if _, ok := a.(ResetAll); ok {
		if err := s.storage.Delete(ctx, s.key); err != nil {
			logger.Log.Error("progress: delete failed", zap.String("key", s.key), zap.Error(err))
			return fmt.Errorf("delete progress: %w", err)
		}
		return nil
	}

	blob, err := Encode(st)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.storage.Set(ctx, s.key, blob); err != nil {
		logger.Log.Error("progress: persist failed", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("persist progress: %w", err)
	}
	return nil
}

func (s *Store) SetChapterProgress(ctx context.Context, course Course, chapterID string, p ChapterProgress) error {
	return s.Dispatch(ctx, SetChapterProgress{Course: course, ChapterID: chapterID, Progress: p})
}

func (s *Store) SetCurrentChapter(ctx context.Context, chapterID *string) error {
	return s.Dispatch(ctx, SetCurrentChapter{ChapterID: chapterID})
}

func (s *Store) ResetChapter(ctx context.Context, course Course, chapterID string) error {
	return s.Dispatch(ctx, ResetChapter{Course: course, ChapterID: chapterID})
}

func (s *Store) ResetCourse(ctx context.Context, course Course) error {
	return s.Dispatch(ctx, ResetCourse{Course: course})
}

func (s *Store) ResetAll(ctx context.Context) error {
	return s.Dispatch(ctx, ResetAll{})
}

// GetLevelProgress round(100 * completed / max(total, 1))
func (s *Store) GetLevelProgress(course Course) (int, error) {
	if !course.Valid() {
		return 0, ErrUnknownCourse
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LevelProgress(course), nil
}

func (s *Store) LevelCompletionRatio(course Course) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LevelCompletionRatio(course)
}

func (s *Store) Summary() []CourseSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Summary()
}

// State 返回深拷贝
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Subscribe 每次状态变化后调用 fn，返回取消函数（可重复调用）。
// fn 在 Dispatch 的调用方 goroutine 中执行，不能在 fn 内再写入同一容器。
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// 调用方需持有 mu
func (s *Store) subscribers() []func(State) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(State), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}
