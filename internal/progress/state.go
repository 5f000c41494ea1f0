// Package progress 保存教程学习进度：课程 → 章节 → 完成状态。
//
// Store 是显式实例，通过 Dispatch(Action) 修改状态，Reduce 为纯函数。
// 只有三门课程的章节映射会持久化，当前章节仅在会话内有效。
package progress

import (
	"errors"
	"math"
	"time"
)

type Course string

const (
	Beginner     Course = "beginner"
	Intermediate Course = "intermediate"
	Expert       Course = "expert"
)

// Courses 固定顺序
var Courses = []Course{Beginner, Intermediate, Expert}

func ParseCourse(s string) (Course, error) {
	c := Course(s)
	if !c.Valid() {
		return "", ErrUnknownCourse
	}
	return c, nil
}

func (c Course) Valid() bool {
	switch c {
	case Beginner, Intermediate, Expert:
		return true
	}
	return false
}

var (
	ErrUnknownCourse        = errors.New("unknown course")
	ErrEmptyChapterID       = errors.New("chapter id is required")
	ErrCompletionRegression = errors.New("completed chapter can only be reverted through reset")
	ErrUnknownAction        = errors.New("unknown progress action")
	ErrNotLoaded            = errors.New("progress not loaded from storage")
)

type ChapterProgress struct {
	ChapterID     string    `json:"chapterId"`
	Completed     bool      `json:"completed"`
	LastVisitedAt time.Time `json:"lastVisitedAt"`
	Score         *float64  `json:"score,omitempty"`
}

func (p ChapterProgress) equal(o ChapterProgress) bool {
	if p.ChapterID != o.ChapterID || p.Completed != o.Completed || !p.LastVisitedAt.Equal(o.LastVisitedAt) {
		return false
	}
	if (p.Score == nil) != (o.Score == nil) {
		return false
	}
	return p.Score == nil || *p.Score == *o.Score
}

type CourseProgress map[string]ChapterProgress

func (cp CourseProgress) clone() CourseProgress {
	out := make(CourseProgress, len(cp))
	for k, v := range cp {
		if v.Score != nil {
			s := *v.Score
			v.Score = &s
		}
		out[k] = v
	}
	return out
}

func (cp CourseProgress) CompletedCount() int {
	n := 0
	for _, ch := range cp {
		if ch.Completed {
			n++
		}
	}
	return n
}

// State TutorialState
type State struct {
	Courses          map[Course]CourseProgress `json:"courses"`
	CurrentChapterID *string                   `json:"currentChapterId"`
}

func NewState() State {
	s := State{Courses: make(map[Course]CourseProgress, len(Courses))}
	for _, c := range Courses {
		s.Courses[c] = CourseProgress{}
	}
	return s
}

// Clone 深拷贝，订阅者拿到的快照与内部状态互不影响
func (s State) Clone() State {
	out := State{Courses: make(map[Course]CourseProgress, len(s.Courses))}
	for c, cp := range s.Courses {
		out.Courses[c] = cp.clone()
	}
	for _, c := range Courses {
		if out.Courses[c] == nil {
			out.Courses[c] = CourseProgress{}
		}
	}
	if s.CurrentChapterID != nil {
		id := *s.CurrentChapterID
		out.CurrentChapterID = &id
	}
	return out
}

// LevelCompletionRatio completed / max(total, 1)，读取时计算不存储
func (s State) LevelCompletionRatio(c Course) float64 {
	cp := s.Courses[c]
	total := len(cp)
	if total < 1 {
		total = 1
	}
	return float64(cp.CompletedCount()) / float64(total)
}

// LevelProgress 百分比 [0,100]
func (s State) LevelProgress(c Course) int {
	return int(math.Round(100 * s.LevelCompletionRatio(c)))
}

type CourseSummary struct {
	Course    Course `json:"course"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
}

func (s State) Summary() []CourseSummary {
	out := make([]CourseSummary, 0, len(Courses))
	for _, c := range Courses {
		cp := s.Courses[c]
		out = append(out, CourseSummary{
			Course:    c,
			Completed: cp.CompletedCount(),
			Total:     len(cp),
			Percent:   s.LevelProgress(c),
		})
	}
	return out
}
