package handler

import (
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/service"
	"github.com/gin-gonic/gin"
)

// PermissionHandler 权限处理器
type PermissionHandler struct {
	svc *service.PermissionService
}

// NewPermissionHandler 创建权限处理器
func NewPermissionHandler(svc *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{svc: svc}
}

// ListAppRules 应用级权限规则列表
// GET /api/v1/apps/:code/permissions/app
func (h *PermissionHandler) ListAppRules(c *gin.Context) {
	rules, err := h.svc.ListAppRules(c.Request.Context(), c.Param("code"))
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"items": rules})
}

// CreateAppRule 创建应用级权限规则
// POST /api/v1/apps/:code/permissions/app
func (h *PermissionHandler) CreateAppRule(c *gin.Context) {
	var rule entity.AppPermissionRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.svc.CreateAppRule(c.Request.Context(), c.Param("code"), &rule); err != nil {
		WriteError(c, err)
		return
	}
	Created(c, rule)
}

// ListRecordRules 记录级权限规则列表
// GET /api/v1/apps/:code/permissions/records
func (h *PermissionHandler) ListRecordRules(c *gin.Context) {
	rules, err := h.svc.ListRecordRules(c.Request.Context(), c.Param("code"))
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"items": rules})
}

// CreateRecordRule 创建记录级权限规则
// POST /api/v1/apps/:code/permissions/records
func (h *PermissionHandler) CreateRecordRule(c *gin.Context) {
	var rule entity.RecordPermissionRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.svc.CreateRecordRule(c.Request.Context(), c.Param("code"), &rule); err != nil {
		WriteError(c, err)
		return
	}
	Created(c, rule)
}

// CheckCapability 当前用户对应用的某项能力判定
// GET /api/v1/apps/:code/permissions/check?op=view
func (h *PermissionHandler) CheckCapability(c *gin.Context) {
	op := entity.Capability(c.Query("op"))
	if op == "" {
		BadRequest(c, "op 参数不能为空")
		return
	}

	allowed, err := h.svc.Authorize(c.Request.Context(), GetUserID(c), c.Param("code"), op)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"allowed": allowed})
}
