package controller

import (
	"color_academy_backend/internal/gateway"
	"color_academy_backend/internal/service"
	"color_academy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type FormulaController struct {
	FormulaService *service.FormulaService
}

func NewFormulaController(formulaService *service.FormulaService) *FormulaController {
	return &FormulaController{FormulaService: formulaService}
}

// limitRecords ?limit= 截取最近的记录
func limitRecords(ctx *gin.Context, records []gateway.Record) util.ListResponse {
	total := len(records)
	limit := util.ParseLimit(ctx.Query("limit"), total, 200)
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return util.ListResponse{List: records, Total: total}
}

// ListFormulas godoc
// @Summary 已保存的配方
// @Tags 调色
// @Produce  json
// @Security ApiKeyAuth
// @Param   limit query int false "返回条数"
// @Success 200 {object} util.Response{data=util.ListResponse} "成功"
// @Failure 502 {object} util.Response "网关不可用，可重试"
// @Router /api/formulas [get]
func (c *FormulaController) ListFormulas(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	records, err := c.FormulaService.ListFormulas(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.Unavailable(ctx, err)
		return
	}
	util.Success(ctx, limitRecords(ctx, records))
}

// SaveFormula godoc
// @Summary 保存配方
// @Tags 调色
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.FormulaRequest true "配方"
// @Success 201 {object} util.Response{data=gateway.Ack} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 502 {object} util.Response "网关不可用，可重试"
// @Router /api/formulas [post]
func (c *FormulaController) SaveFormula(ctx *gin.Context) {
	var req service.FormulaRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	ack, err := c.FormulaService.SaveFormula(ctx.Request.Context(), claims.UserID, &req)
	if err != nil {
		util.Unavailable(ctx, err)
		return
	}
	util.Created(ctx, ack)
}

// ListSolverEntries godoc
// @Summary 求解记录
// @Tags 调色
// @Produce  json
// @Security ApiKeyAuth
// @Param   limit query int false "返回条数"
// @Success 200 {object} util.Response{data=util.ListResponse} "成功"
// @Failure 502 {object} util.Response "网关不可用，可重试"
// @Router /api/solver [get]
func (c *FormulaController) ListSolverEntries(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	records, err := c.FormulaService.ListSolverEntries(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.Unavailable(ctx, err)
		return
	}
	util.Success(ctx, limitRecords(ctx, records))
}

// SaveSolverEntry godoc
// @Summary 保存求解记录
// @Tags 调色
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.SolverRequest true "求解输入与结果"
// @Success 201 {object} util.Response{data=gateway.Ack} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 502 {object} util.Response "网关不可用，可重试"
// @Router /api/solver [post]
func (c *FormulaController) SaveSolverEntry(ctx *gin.Context) {
	var req service.SolverRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	ack, err := c.FormulaService.SaveSolverEntry(ctx.Request.Context(), claims.UserID, &req)
	if err != nil {
		util.Unavailable(ctx, err)
		return
	}
	util.Created(ctx, ack)
}
