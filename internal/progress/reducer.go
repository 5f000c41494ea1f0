package progress

// Action 进度状态的修改指令
type Action interface {
	persisted() bool
}

// SetChapterProgress 按 chapterId 插入或更新，不影响其他章节
type SetChapterProgress struct {
	Course    Course
	ChapterID string
	Progress  ChapterProgress
}

// SetCurrentChapter ChapterID 为 nil 表示清空
type SetCurrentChapter struct {
	ChapterID *string
}

// ResetChapter 显式重置单个章节，唯一允许 completed 由 true 变 false 的途径
type ResetChapter struct {
	Course    Course
	ChapterID string
}

type ResetCourse struct {
	Course Course
}

type ResetAll struct{}

// Hydrate 用持久化数据替换课程映射，当前章节清空
type Hydrate struct {
	Courses map[Course]CourseProgress
}

func (SetChapterProgress) persisted() bool { return true }
func (SetCurrentChapter) persisted() bool  { return false }
func (ResetChapter) persisted() bool       { return true }
func (ResetCourse) persisted() bool        { return true }
func (ResetAll) persisted() bool           { return true }
func (Hydrate) persisted() bool            { return false }

// Reduce 纯函数：返回新状态，不修改入参。出错时返回原状态。
func Reduce(s State, a Action) (State, error) {
	switch act := a.(type) {
	case SetChapterProgress:
		if !act.Course.Valid() {
			return s, ErrUnknownCourse
		}
		if act.ChapterID == "" {
			return s, ErrEmptyChapterID
		}

		next := act.Progress
		next.ChapterID = act.ChapterID

		prev, exists := s.Courses[act.Course][act.ChapterID]
		if exists && prev.Completed && !next.Completed {
			return s, ErrCompletionRegression
		}
		if exists && prev.equal(next) {
			return s, nil
		}

		out := s.Clone()
		out.Courses[act.Course][act.ChapterID] = next
		return out, nil

	case SetCurrentChapter:
		out := s.Clone()
		if act.ChapterID == nil || *act.ChapterID == "" {
			out.CurrentChapterID = nil
		} else {
			id := *act.ChapterID
			out.CurrentChapterID = &id
		}
		return out, nil

	case ResetChapter:
		if !act.Course.Valid() {
			return s, ErrUnknownCourse
		}
		prev, exists := s.Courses[act.Course][act.ChapterID]
		if !exists {
			return s, nil
		}
		out := s.Clone()
		prev.Completed = false
		prev.Score = nil
		out.Courses[act.Course][act.ChapterID] = prev
		return out, nil

	case ResetCourse:
		if !act.Course.Valid() {
			return s, ErrUnknownCourse
		}
		out := s.Clone()
		out.Courses[act.Course] = CourseProgress{}
		return out, nil

	case ResetAll:
		return NewState(), nil

	case Hydrate:
		out := NewState()
		for c, cp := range act.Courses {
			if !c.Valid() {
				continue
			}
			out.Courses[c] = cp.clone()
		}
		return out, nil
	}

	return s, ErrUnknownAction
}
