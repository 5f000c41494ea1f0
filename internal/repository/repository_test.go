package repository

import (
	"color_academy_backend/internal/model"
	"color_academy_backend/internal/progress"
	"color_academy_backend/pkg/database"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	return db
}

func TestProgressRepositoryKV(t *testing.T) {
	repo := NewProgressRepository(openDB(t))
	ctx := context.Background()

	blob, err := repo.Get(ctx, "tutorial-progress:1")
	require.NoError(t, err)
	assert.Nil(t, blob)

	require.NoError(t, repo.Set(ctx, "tutorial-progress:1", []byte(`{"beginner":{}}`)))
	require.NoError(t, repo.Set(ctx, "tutorial-progress:1", []byte(`{"expert":{}}`)))
	require.NoError(t, repo.Set(ctx, "tutorial-progress:2", []byte(`{}`)))

	blob, err = repo.Get(ctx, "tutorial-progress:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"expert":{}}`, string(blob))

	require.NoError(t, repo.Delete(ctx, "tutorial-progress:1"))
	blob, err = repo.Get(ctx, "tutorial-progress:1")
	require.NoError(t, err)
	assert.Nil(t, blob)

	blob, err = repo.Get(ctx, "tutorial-progress:2")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(blob))
}

// 数据库存储可以直接作为进度容器的持久化后端
func TestProgressRepositoryBacksStore(t *testing.T) {
	repo := NewProgressRepository(openDB(t))
	ctx := context.Background()

	first := progress.NewStore(repo, "k")
	require.NoError(t, first.Load(ctx))
	require.NoError(t, first.SetChapterProgress(ctx, progress.Beginner, "ch1", progress.ChapterProgress{Completed: true}))
	require.NoError(t, first.SetChapterProgress(ctx, progress.Beginner, "ch2", progress.ChapterProgress{}))

	second := progress.NewStore(repo, "k")
	require.NoError(t, second.Load(ctx))
	pct, err := second.GetLevelProgress(progress.Beginner)
	require.NoError(t, err)
	assert.Equal(t, 50, pct)
	assert.Nil(t, second.State().CurrentChapterID)

	// 全部重置删除该行
	require.NoError(t, second.ResetAll(ctx))
	blob, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, blob)
	var rows int64
	require.NoError(t, repo.DB.Model(&model.ProgressSnapshot{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(openDB(t))

	u := &model.User{Name: "Ana", Email: "ana@example.com", Role: model.Learner, Provider: model.ProviderLocal}
	require.NoError(t, repo.Create(u))
	require.NotZero(t, u.ID)

	found, err := repo.FindByEmail("ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = repo.FindByEmail("missing@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	ext := &model.User{Name: "Bo", Email: "bo@example.com", Provider: model.ProviderOAuth, Subject: "sub-9"}
	require.NoError(t, repo.Create(ext))
	found, err = repo.FindBySubject(model.ProviderOAuth, "sub-9")
	require.NoError(t, err)
	assert.Equal(t, ext.ID, found.ID)

	require.NoError(t, repo.TouchLastLogin(u.ID))
	found, err = repo.FindByID(u.ID)
	require.NoError(t, err)
	assert.False(t, found.LastLogin.IsZero())
}
