package handler

import (
	"github.com/katsuopg/kinton/internal/kinton/service"
	"github.com/gin-gonic/gin"
)

// TemplateHandler 模板处理器
type TemplateHandler struct {
	svc *service.TemplateService
}

// NewTemplateHandler 创建模板处理器
func NewTemplateHandler(svc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// ExtractTemplateRequest 提取模板请求
type ExtractTemplateRequest struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// InstantiateRequest 模板实例化请求
type InstantiateRequest struct {
	AppCode string            `json:"app_code" binding:"required"`
	Names   map[string]string `json:"names"`
}

// List 模板列表
// GET /api/v1/templates
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.svc.List(c.Request.Context())
	if err != nil {
		InternalError(c, "获取模板列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": templates})
}

// Extract 把应用配置提取为模板
// POST /api/v1/apps/:code/template
func (h *TemplateHandler) Extract(c *gin.Context) {
	var req ExtractTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	tmpl, err := h.svc.Extract(c.Request.Context(), GetUserID(c), c.Param("code"),
		req.Code, req.Name, req.Description)
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, tmpl)
}

// Instantiate 从模板创建应用
// POST /api/v1/templates/:id/instantiate
func (h *TemplateHandler) Instantiate(c *gin.Context) {
	var req InstantiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	app, err := h.svc.Instantiate(c.Request.Context(), GetUserID(c), c.Param("id"),
		req.AppCode, req.Names)
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, app)
}
