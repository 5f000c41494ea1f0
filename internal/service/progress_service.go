package service

import (
	"color_academy_backend/internal/progress"
	"color_academy_backend/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"sync"
)

// ProgressService 每个用户一个进度容器，首次访问时从持久化存储水合
type ProgressService struct {
	storage progress.Storage
	prefix  string

	mu     sync.Mutex
	stores map[uint]*storeEntry
}

type storeEntry struct {
	mu    sync.Mutex // 串行化水合
	store *progress.Store
}

// ProgressView 接口返回的完整进度
type ProgressView struct {
	Courses          map[progress.Course]progress.CourseProgress `json:"courses"`
	CurrentChapterID *string                                     `json:"currentChapterId"`
	Summary          []progress.CourseSummary                    `json:"summary"`
}

// CourseView 单门课程
type CourseView struct {
	Course   progress.Course         `json:"course"`
	Percent  int                     `json:"percent"`
	Ratio    float64                 `json:"ratio"`
	Chapters progress.CourseProgress `json:"chapters"`
}

func NewProgressService(storage progress.Storage, prefix string) *ProgressService {
	return &ProgressService{
		storage: storage,
		prefix:  prefix,
		stores:  make(map[uint]*storeEntry),
	}
}

func (s *ProgressService) Key(userID uint) string {
	return fmt.Sprintf("%s:%d", s.prefix, userID)
}

// StoreFor 同一用户的多个连接共享一个容器，写入按章节后写覆盖。
// 读取存储失败时返回错误，下次访问重新水合。
func (s *ProgressService) StoreFor(ctx context.Context, userID uint) (*progress.Store, error) {
	s.mu.Lock()
	e, ok := s.stores[userID]
	if !ok {
		e = &storeEntry{store: progress.NewStore(s.storage, s.Key(userID))}
		s.stores[userID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.store.Loaded() {
		if err := e.store.Load(ctx); err != nil {
			return nil, err
		}
	}
	return e.store, nil
}

// Evict 登出时丢弃内存中的容器，当前章节随之清空
func (s *ProgressService) Evict(userID uint) {
	s.mu.Lock()
	delete(s.stores, userID)
	s.mu.Unlock()
}

func (s *ProgressService) Snapshot(ctx context.Context, userID uint) (ProgressView, error) {
	store, err := s.StoreFor(ctx, userID)
	if err != nil {
		return ProgressView{}, err
	}
	st := store.State()
	return ProgressView{
		Courses:          st.Courses,
		CurrentChapterID: st.CurrentChapterID,
		Summary:          st.Summary(),
	}, nil
}

func (s *ProgressService) Course(ctx context.Context, userID uint, course progress.Course) (CourseView, error) {
	store, err := s.StoreFor(ctx, userID)
	if err != nil {
		return CourseView{}, err
	}
	pct, err := store.GetLevelProgress(course)
	if err != nil {
		return CourseView{}, err
	}
	return CourseView{
		Course:   course,
		Percent:  pct,
		Ratio:    store.LevelCompletionRatio(course),
		Chapters: store.State().Courses[course],
	}, nil
}

// update 取得已水合的容器后执行写入
func (s *ProgressService) update(ctx context.Context, userID uint, fn func(*progress.Store) error) error {
	store, err := s.StoreFor(ctx, userID)
	if err != nil {
		return err
	}
	return fn(store)
}

func (s *ProgressService) SetChapterProgress(ctx context.Context, userID uint, course progress.Course, chapterID string, p progress.ChapterProgress) error {
	err := s.update(ctx, userID, func(st *progress.Store) error {
		return st.SetChapterProgress(ctx, course, chapterID, p)
	})
	observeWrite(course, err)
	return err
}

func (s *ProgressService) SetCurrentChapter(ctx context.Context, userID uint, chapterID *string) error {
	return s.update(ctx, userID, func(st *progress.Store) error {
		return st.SetCurrentChapter(ctx, chapterID)
	})
}

func (s *ProgressService) ResetChapter(ctx context.Context, userID uint, course progress.Course, chapterID string) error {
	err := s.update(ctx, userID, func(st *progress.Store) error {
		return st.ResetChapter(ctx, course, chapterID)
	})
	observeWrite(course, err)
	return err
}

func (s *ProgressService) ResetCourse(ctx context.Context, userID uint, course progress.Course) error {
	err := s.update(ctx, userID, func(st *progress.Store) error {
		return st.ResetCourse(ctx, course)
	})
	observeWrite(course, err)
	return err
}

func (s *ProgressService) ResetAll(ctx context.Context, userID uint) error {
	return s.update(ctx, userID, func(st *progress.Store) error {
		return st.ResetAll(ctx)
	})
}

// IsRejected 写入被状态规则拒绝，内存状态未改变
func IsRejected(err error) bool {
	return errors.Is(err, progress.ErrCompletionRegression) ||
		errors.Is(err, progress.ErrUnknownCourse) ||
		errors.Is(err, progress.ErrEmptyChapterID)
}

func observeWrite(course progress.Course, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsRejected(err):
		result = "rejected"
	default:
		// 读取或持久化失败
		result = "failed"
	}
	monitoring.ProgressWrites.WithLabelValues(string(course), result).Inc()
}
