package handler

import (
	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/service"
	"github.com/gin-gonic/gin"
)

// ProcessHandler 流程处理器
type ProcessHandler struct {
	svc *service.ProcessService
}

// NewProcessHandler 创建流程处理器
func NewProcessHandler(svc *service.ProcessService) *ProcessHandler {
	return &ProcessHandler{svc: svc}
}

// ReplaceDefinitionRequest 流程定义替换请求
type ReplaceDefinitionRequest struct {
	Enabled  bool                 `json:"enabled"`
	Statuses []engine.StatusInput `json:"statuses" binding:"required"`
	Actions  []engine.ActionInput `json:"actions"`
}

// ApplyActionRequest 执行动作请求
type ApplyActionRequest struct {
	ActionID string `json:"action_id" binding:"required"`
	Comment  string `json:"comment"`
}

// GetDefinition 获取流程定义
// GET /api/v1/apps/:code/process
func (h *ProcessHandler) GetDefinition(c *gin.Context) {
	def, err := h.svc.GetDefinition(c.Request.Context(), c.Param("code"))
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, def)
}

// ReplaceDefinition 原子替换流程定义
// PUT /api/v1/apps/:code/process
func (h *ProcessHandler) ReplaceDefinition(c *gin.Context) {
	var req ReplaceDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	def, err := h.svc.ReplaceDefinition(c.Request.Context(), GetUserID(c), c.Param("code"),
		req.Enabled, req.Statuses, req.Actions)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, def)
}

// ListAvailableActions 列举当前用户可执行的动作
// GET /api/v1/apps/:code/records/:number/actions
func (h *ProcessHandler) ListAvailableActions(c *gin.Context) {
	number, ok := recordNumberParam(c)
	if !ok {
		return
	}
	actions, err := h.svc.ListAvailableActions(c.Request.Context(), GetUserID(c), c.Param("code"), number)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"items": actions})
}

// ApplyAction 执行流程动作
// POST /api/v1/apps/:code/records/:number/actions
func (h *ProcessHandler) ApplyAction(c *gin.Context) {
	number, ok := recordNumberParam(c)
	if !ok {
		return
	}
	var req ApplyActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	status, err := h.svc.ApplyAction(c.Request.Context(), GetUserID(c), c.Param("code"), number,
		req.ActionID, req.Comment)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"status": status})
}

// ListActionLogs 记录的流程动作日志
// GET /api/v1/apps/:code/records/:number/action-logs
func (h *ProcessHandler) ListActionLogs(c *gin.Context) {
	number, ok := recordNumberParam(c)
	if !ok {
		return
	}
	logs, err := h.svc.ListActionLogs(c.Request.Context(), GetUserID(c), c.Param("code"), number)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"items": logs})
}
