package controller

import (
	"color_academy_backend/internal/service"
	"color_academy_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ImageController struct {
	ImageService *service.ImageService
}

func NewImageController(imageService *service.ImageService) *ImageController {
	return &ImageController{ImageService: imageService}
}

// ListImages godoc
// @Summary 练习图片
// @Tags 练习
// @Produce  json
// @Security ApiKeyAuth
// @Param   limit query int false "返回条数"
// @Success 200 {object} util.Response{data=util.ListResponse} "成功"
// @Failure 502 {object} util.Response "网关不可用，可重试"
// @Router /api/images [get]
func (c *ImageController) ListImages(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	records, err := c.ImageService.List(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.Unavailable(ctx, err)
		return
	}
	util.Success(ctx, limitRecords(ctx, records))
}

// UploadImage godoc
// @Summary 上传练习图片
// @Description 校验文件类型与大小，生成缩略图后写入对象存储并登记记录
// @Tags 练习
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   file formData file true "图片"
// @Param   purpose formData string false "用途，如 before / after / swatch"
// @Success 201 {object} util.Response{data=object} "上传成功"
// @Failure 400 {object} util.Response "文件不合法"
// @Failure 413 {object} util.Response "文件过大"
// @Failure 502 {object} util.Response "存储不可用，可重试"
// @Router /api/images/upload [post]
func (c *ImageController) UploadImage(ctx *gin.Context) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "请选择要上传的文件")
		return
	}

	claims := util.GetUserFromContext(ctx)
	rec, err := c.ImageService.Upload(ctx.Request.Context(), claims.UserID, fh, ctx.PostForm("purpose"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrFileTooLarge):
			util.Error(ctx, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, util.ErrUnsupportedFile):
			util.BadRequest(ctx, err.Error())
		default:
			util.Unavailable(ctx, err)
		}
		return
	}
	util.Created(ctx, rec)
}
