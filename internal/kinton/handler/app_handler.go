package handler

import (
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/service"
	"github.com/gin-gonic/gin"
)

// AppHandler 应用处理器
type AppHandler struct {
	svc *service.AppService
}

// NewAppHandler 创建应用处理器
func NewAppHandler(svc *service.AppService) *AppHandler {
	return &AppHandler{svc: svc}
}

// CreateAppRequest 创建应用请求
type CreateAppRequest struct {
	Code  string            `json:"code" binding:"required"`
	Names map[string]string `json:"names" binding:"required"`
	Kind  string            `json:"kind"`
}

// List 应用列表
// GET /api/v1/apps
func (h *AppHandler) List(c *gin.Context) {
	activeOnly := c.Query("include_inactive") != "true"
	apps, err := h.svc.List(c.Request.Context(), activeOnly)
	if err != nil {
		InternalError(c, "获取应用列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": apps})
}

// Create 创建应用
// POST /api/v1/apps
func (h *AppHandler) Create(c *gin.Context) {
	var req CreateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	names := entity.JSONB{}
	for locale, v := range req.Names {
		names[locale] = v
	}
	app := &entity.Application{
		Code:  req.Code,
		Names: names,
		Kind:  req.Kind,
	}
	created, err := h.svc.Create(c.Request.Context(), GetUserID(c), app)
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, created)
}

// Get 应用详情（含字段定义）
// GET /api/v1/apps/:code
func (h *AppHandler) Get(c *gin.Context) {
	app, fields, err := h.svc.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"app": app, "fields": fields})
}

// AddField 添加字段定义
// POST /api/v1/apps/:code/fields
func (h *AppHandler) AddField(c *gin.Context) {
	var field entity.FieldDefinition
	if err := c.ShouldBindJSON(&field); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	created, err := h.svc.AddField(c.Request.Context(), GetUserID(c), c.Param("code"), &field)
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, created)
}

// Delete 软删除应用
// DELETE /api/v1/apps/:code
func (h *AppHandler) Delete(c *gin.Context) {
	if err := h.svc.SoftDelete(c.Request.Context(), GetUserID(c), c.Param("code")); err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// Purge 硬清除已软删除的应用
// POST /api/v1/apps/:code/purge
func (h *AppHandler) Purge(c *gin.Context) {
	if err := h.svc.Purge(c.Request.Context(), GetUserID(c), c.Param("code")); err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"purged": true})
}
