package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/katsuopg/kinton/internal/kinton/service"
	"github.com/gin-gonic/gin"
)

// RecordHandler 记录处理器
type RecordHandler struct {
	svc           *service.RecordService
	exportSvc     *service.ExportService
	attachmentSvc *service.AttachmentService
}

// NewRecordHandler 创建记录处理器
func NewRecordHandler(svc *service.RecordService, exportSvc *service.ExportService,
	attachmentSvc *service.AttachmentService) *RecordHandler {
	return &RecordHandler{svc: svc, exportSvc: exportSvc, attachmentSvc: attachmentSvc}
}

// RecordRequest 记录写入请求
type RecordRequest struct {
	Data map[string]interface{} `json:"data" binding:"required"`
}

// CommentRequest 评论请求
type CommentRequest struct {
	Body string `json:"body" binding:"required"`
}

// List 记录列表
// GET /api/v1/apps/:code/records
func (h *RecordHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	records, total, err := h.svc.List(c.Request.Context(), GetUserID(c), c.Param("code"), page, pageSize)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{
		"items":     records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Create 创建记录
// POST /api/v1/apps/:code/records
func (h *RecordHandler) Create(c *gin.Context) {
	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	record, err := h.svc.Create(c.Request.Context(), GetUserID(c), c.Param("code"), req.Data)
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, record)
}

// Validate 只校验不保存
// POST /api/v1/apps/:code/records/validate
func (h *RecordHandler) Validate(c *gin.Context) {
	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.svc.ValidateDocument(c.Request.Context(), c.Param("code"), req.Data)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, result)
}

// Get 记录详情
// GET /api/v1/apps/:code/records/:number
func (h *RecordHandler) Get(c *gin.Context) {
	number, ok := recordNumberParam(c)
	if !ok {
		return
	}
	record, err := h.svc.Get(c.Request.Context(), GetUserID(c), c.Param("code"), number)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, record)
}

// Update 更新记录
// PUT /api/v1/apps/:code/records/:number
func (h *RecordHandler) Update(c *gin.Context) {
	number, ok := recordNumberParam(c)
	if !ok {
		return
	}
	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	record, err := h.svc.Update(c.Request.Context(), GetUserID(c), c.Param("code"), number, req.Data)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, record)
}

// Delete 删除记录
// DELETE /api/v1/apps/:code/records/:number
func (h *RecordHandler) Delete(c *gin.Context) {
	number, ok := recordNumberParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), GetUserID(c), c.Param("code"), number); err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// AddComment 添加记录评论
// POST /api/v1/apps/:code/records/:number/comments
func (h *RecordHandler) AddComment(c *gin.Context) {
	number, ok := recordNumberParam(c)
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	comment, err := h.svc.AddComment(c.Request.Context(), GetUserID(c), c.Param("code"), number, req.Body)
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, comment)
}

// Export 记录导出为XLSX
// GET /api/v1/apps/:code/export
func (h *RecordHandler) Export(c *gin.Context) {
	appCode := c.Param("code")
	file, err := h.exportSvc.ExportXLSX(c.Request.Context(), GetUserID(c), appCode)
	if err != nil {
		WriteError(c, err)
		return
	}
	defer file.Close()

	fileName := url.PathEscape(appCode + ".xlsx")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", fileName))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := file.Write(c.Writer); err != nil {
		InternalError(c, "导出失败: "+err.Error())
	}
}

// UploadAttachment 上传记录附件
// POST /api/v1/apps/:code/records/:number/attachments
func (h *RecordHandler) UploadAttachment(c *gin.Context) {
	number, ok := recordNumberParam(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件")
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	attachment, err := h.attachmentSvc.Upload(c.Request.Context(), GetUserID(c), c.Param("code"), number,
		c.PostForm("field_code"), fileHeader.Filename, src, fileHeader.Size,
		fileHeader.Header.Get("Content-Type"))
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, attachment)
}

// DownloadAttachment 下载附件
// GET /api/v1/attachments/:id
func (h *RecordHandler) DownloadAttachment(c *gin.Context) {
	attachment, reader, err := h.attachmentSvc.Download(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	defer reader.Close()

	fileName := url.PathEscape(attachment.FileName)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", fileName))
	contentType := attachment.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, attachment.FileSize, contentType, reader, nil)
}

// DeleteAttachment 删除附件
// DELETE /api/v1/attachments/:id
func (h *RecordHandler) DeleteAttachment(c *gin.Context) {
	if err := h.attachmentSvc.Delete(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}
