package handler

import (
	"errors"
	"strconv"

	"github.com/katsuopg/kinton/internal/config"
	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Auth       *AuthHandler
	User       *UserHandler
	App        *AppHandler
	Record     *RecordHandler
	Process    *ProcessHandler
	Permission *PermissionHandler
	Template   *TemplateHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:       NewAuthHandler(svc.Auth),
		User:       NewUserHandler(svc.User),
		App:        NewAppHandler(svc.App),
		Record:     NewRecordHandler(svc.Record, svc.Export, svc.Attachment),
		Process:    NewProcessHandler(svc.Process),
		Permission: NewPermissionHandler(svc.Permission),
		Template:   NewTemplateHandler(svc.Template),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 并发冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// WriteError 业务错误统一映射为HTTP响应。
// 校验错误附带逐字段错误列表，其余按哨兵错误归类。
func WriteError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(400, Response{
			Code:    40010,
			Message: "字段校验失败",
			Data:    gin.H{"errors": vErr.Result.Errors},
		})
		return
	}

	switch {
	case errors.Is(err, engine.ErrNotFound):
		NotFound(c, "资源不存在")
	case errors.Is(err, engine.ErrPermissionDenied):
		Forbidden(c, "没有操作权限")
	case errors.Is(err, engine.ErrStaleTransition):
		Conflict(c, "记录状态已变化，请刷新后重试")
	case errors.Is(err, engine.ErrCommentRequired):
		BadRequest(c, "该动作必须填写意见")
	case errors.Is(err, engine.ErrStructural):
		BadRequest(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// recordNumberParam 解析路径中的记录编号
func recordNumberParam(c *gin.Context) (int64, bool) {
	n, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || n <= 0 {
		BadRequest(c, "记录编号无效")
		return 0, false
	}
	return n, true
}

// ============================================================
// User Handler
// ============================================================

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		InternalError(c, "获取用户列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": users})
}
