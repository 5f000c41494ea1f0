package controller

import (
	"color_academy_backend/internal/progress"
	"color_academy_backend/internal/service"
	"color_academy_backend/internal/util"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// ChapterProgressRequest 更新章节进度
type ChapterProgressRequest struct {
	Completed     bool       `json:"completed"`
	Score         *float64   `json:"score"`
	LastVisitedAt *time.Time `json:"lastVisitedAt"`
}

// CurrentChapterRequest chapterId 为 null 时清空
type CurrentChapterRequest struct {
	ChapterID *string `json:"chapterId"`
}

// 状态规则拒绝的写入按 4xx 返回，持久化失败时内存状态已生效
func (c *ProgressController) writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, progress.ErrUnknownCourse):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, progress.ErrCompletionRegression):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, progress.ErrEmptyChapterID):
		util.BadRequest(ctx, err.Error())
	default:
		util.Unavailable(ctx, err)
	}
}

func courseParam(ctx *gin.Context) (progress.Course, bool) {
	course, err := progress.ParseCourse(ctx.Param("course"))
	if err != nil {
		util.Error(ctx, http.StatusNotFound, err.Error())
		return "", false
	}
	return course, true
}

// GetProgress godoc
// @Summary 学习进度
// @Description 三门课程的章节进度、当前章节与汇总
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ProgressView} "成功"
// @Router /api/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	c.respondSnapshot(ctx, claims.UserID)
}

// GetCourse godoc
// @Summary 课程进度
// @Description 单门课程的完成百分比与章节明细
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   course path string true "beginner | intermediate | expert"
// @Success 200 {object} util.Response{data=service.CourseView} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/progress/{course} [get]
func (c *ProgressController) GetCourse(ctx *gin.Context) {
	course, ok := courseParam(ctx)
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	view, err := c.ProgressService.Course(ctx.Request.Context(), claims.UserID, course)
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// SetChapterProgress godoc
// @Summary 更新章节进度
// @Description 已完成的章节不能改回未完成，只能通过重置
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   course path string true "课程"
// @Param   chapterId path string true "章节"
// @Param   body body ChapterProgressRequest true "进度"
// @Success 200 {object} util.Response{data=service.CourseView} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 409 {object} util.Response "已完成章节不能回退"
// @Failure 502 {object} util.Response "持久化失败，可重试"
// @Router /api/progress/{course}/chapters/{chapterId} [put]
func (c *ProgressController) SetChapterProgress(ctx *gin.Context) {
	course, ok := courseParam(ctx)
	if !ok {
		return
	}
	var req ChapterProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	chapterID := ctx.Param("chapterId")
	p := progress.ChapterProgress{
		ChapterID:     chapterID,
		Completed:     req.Completed,
		Score:         req.Score,
		LastVisitedAt: time.Now().UTC(),
	}
	if req.LastVisitedAt != nil {
		p.LastVisitedAt = req.LastVisitedAt.UTC()
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.ProgressService.SetChapterProgress(ctx.Request.Context(), claims.UserID, course, chapterID, p); err != nil {
		c.writeError(ctx, err)
		return
	}
	c.respondCourse(ctx, claims.UserID, course)
}

// ResetChapter godoc
// @Summary 重置章节
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   course path string true "课程"
// @Param   chapterId path string true "章节"
// @Success 200 {object} util.Response{data=service.CourseView} "成功"
// @Router /api/progress/{course}/chapters/{chapterId}/reset [post]
func (c *ProgressController) ResetChapter(ctx *gin.Context) {
	course, ok := courseParam(ctx)
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	if err := c.ProgressService.ResetChapter(ctx.Request.Context(), claims.UserID, course, ctx.Param("chapterId")); err != nil {
		c.writeError(ctx, err)
		return
	}
	c.respondCourse(ctx, claims.UserID, course)
}

// ResetCourse godoc
// @Summary 重置课程
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   course path string true "课程"
// @Success 200 {object} util.Response{data=service.CourseView} "成功"
// @Router /api/progress/{course}/reset [post]
func (c *ProgressController) ResetCourse(ctx *gin.Context) {
	course, ok := courseParam(ctx)
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	if err := c.ProgressService.ResetCourse(ctx.Request.Context(), claims.UserID, course); err != nil {
		c.writeError(ctx, err)
		return
	}
	c.respondCourse(ctx, claims.UserID, course)
}

// ResetAll godoc
// @Summary 重置全部进度
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ProgressView} "成功"
// @Router /api/progress/reset [post]
func (c *ProgressController) ResetAll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.ProgressService.ResetAll(ctx.Request.Context(), claims.UserID); err != nil {
		c.writeError(ctx, err)
		return
	}
	c.respondSnapshot(ctx, claims.UserID)
}

// SetCurrentChapter godoc
// @Summary 设置当前章节
// @Description 仅在会话内有效，不会持久化
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CurrentChapterRequest true "当前章节"
// @Success 200 {object} util.Response{data=service.ProgressView} "成功"
// @Router /api/progress/current [put]
func (c *ProgressController) SetCurrentChapter(ctx *gin.Context) {
	var req CurrentChapterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)
	if err := c.ProgressService.SetCurrentChapter(ctx.Request.Context(), claims.UserID, req.ChapterID); err != nil {
		c.writeError(ctx, err)
		return
	}
	c.respondSnapshot(ctx, claims.UserID)
}

func (c *ProgressController) respondSnapshot(ctx *gin.Context, userID uint) {
	view, err := c.ProgressService.Snapshot(ctx.Request.Context(), userID)
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

func (c *ProgressController) respondCourse(ctx *gin.Context, userID uint, course progress.Course) {
	view, err := c.ProgressService.Course(ctx.Request.Context(), userID, course)
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
