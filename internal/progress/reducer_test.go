package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := NewState()
	next, err := Reduce(s, SetChapterProgress{Course: Beginner, ChapterID: "ch1", Progress: ChapterProgress{Completed: true}})
	require.NoError(t, err)

	assert.Empty(t, s.Courses[Beginner])
	assert.Len(t, next.Courses[Beginner], 1)
}

func TestReduceErrorReturnsOriginalState(t *testing.T) {
	s, err := Reduce(NewState(), SetChapterProgress{Course: Beginner, ChapterID: "ch1", Progress: ChapterProgress{Completed: true}})
	require.NoError(t, err)

	out, err := Reduce(s, SetChapterProgress{Course: Beginner, ChapterID: "ch1"})
	assert.ErrorIs(t, err, ErrCompletionRegression)
	assert.True(t, out.Courses[Beginner]["ch1"].Completed)
}

func TestReduceResetMissingChapterIsNoop(t *testing.T) {
	out, err := Reduce(NewState(), ResetChapter{Course: Expert, ChapterID: "nope"})
	require.NoError(t, err)
	assert.Empty(t, out.Courses[Expert])
}

func TestReduceSetCurrentChapter(t *testing.T) {
	id := "ch4"
	out, err := Reduce(NewState(), SetCurrentChapter{ChapterID: &id})
	require.NoError(t, err)
	require.NotNil(t, out.CurrentChapterID)
	assert.Equal(t, "ch4", *out.CurrentChapterID)

	id = "changed"
	assert.Equal(t, "ch4", *out.CurrentChapterID)

	out, err = Reduce(out, SetCurrentChapter{})
	require.NoError(t, err)
	assert.Nil(t, out.CurrentChapterID)
}

func TestReduceHydrateDropsUnknownCoursesAndCurrentChapter(t *testing.T) {
	id := "ch1"
	s := NewState()
	s.CurrentChapterID = &id

	out, err := Reduce(s, Hydrate{Courses: map[Course]CourseProgress{
		Beginner:        {"ch1": {ChapterID: "ch1", Completed: true}},
		Course("bogus"): {"x": {ChapterID: "x"}},
	}})
	require.NoError(t, err)
	assert.Nil(t, out.CurrentChapterID)
	assert.Len(t, out.Courses, len(Courses))
	assert.Equal(t, 100, out.LevelProgress(Beginner))
}

func TestSummary(t *testing.T) {
	s, _ := Reduce(NewState(), SetChapterProgress{Course: Beginner, ChapterID: "a", Progress: ChapterProgress{Completed: true}})
	s, _ = Reduce(s, SetChapterProgress{Course: Beginner, ChapterID: "b"})
	s, _ = Reduce(s, SetChapterProgress{Course: Beginner, ChapterID: "c"})

	sum := s.Summary()
	require.Len(t, sum, 3)
	assert.Equal(t, CourseSummary{Course: Beginner, Completed: 1, Total: 3, Percent: 33}, sum[0])
	assert.Equal(t, CourseSummary{Course: Intermediate, Percent: 0}, sum[1])
}

func TestDecodeFillsChapterIDs(t *testing.T) {
	courses, err := Decode([]byte(`{"expert":{"c1":{"completed":true,"score":9}},"bogus":{}}`))
	require.NoError(t, err)
	assert.NotContains(t, courses, Course("bogus"))
	assert.Equal(t, "c1", courses[Expert]["c1"].ChapterID)
	require.NotNil(t, courses[Expert]["c1"].Score)
	assert.Equal(t, 9.0, *courses[Expert]["c1"].Score)
}
