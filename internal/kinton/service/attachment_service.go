package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
)

// AttachmentService 附件服务：记录附件的对象存储与侧表登记
type AttachmentService struct {
	db          *gorm.DB
	appRepo     *repository.AppRepository
	recordRepo  *repository.RecordRepository
	permSvc     *PermissionService
	minioClient *minio.Client
	bucket      string
}

// NewAttachmentService 创建附件服务。minioClient 为 nil 时附件功能不可用。
func NewAttachmentService(db *gorm.DB, appRepo *repository.AppRepository, recordRepo *repository.RecordRepository,
	permSvc *PermissionService, minioClient *minio.Client, bucket string) *AttachmentService {
	return &AttachmentService{
		db:          db,
		appRepo:     appRepo,
		recordRepo:  recordRepo,
		permSvc:     permSvc,
		minioClient: minioClient,
		bucket:      bucket,
	}
}

// Upload 上传附件：对象写入MinIO，元数据写入附件表
func (s *AttachmentService) Upload(ctx context.Context, userID, appCode string, recordNumber int64,
	fieldCode, fileName string, reader io.Reader, size int64, contentType string) (*entity.RecordAttachment, error) {

	if s.minioClient == nil {
		return nil, fmt.Errorf("对象存储未配置")
	}

	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	record, err := s.recordRepo.FindByNumber(ctx, app.ID, recordNumber)
	if err != nil {
		return nil, engine.ErrNotFound
	}

	allowed, err := s.permSvc.AuthorizeRecord(ctx, userID, app, entity.CapEdit, record.Data)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, engine.ErrPermissionDenied
	}

	attachment := &entity.RecordAttachment{
		ID:         uuid.New().String(),
		AppID:      app.ID,
		RecordID:   record.ID,
		FieldCode:  fieldCode,
		FileName:   fileName,
		FileSize:   size,
		MimeType:   contentType,
		UploadedBy: userID,
		CreatedAt:  time.Now(),
	}
	attachment.ObjectKey = fmt.Sprintf("%s/%s/%s_%s", app.Code, record.ID, attachment.ID, fileName)

	if _, err := s.minioClient.PutObject(ctx, s.bucket, attachment.ObjectKey, reader, size,
		minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return nil, fmt.Errorf("上传附件失败: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(attachment).Error; err != nil {
		// 行写入失败时回收已上传的对象
		s.RemoveObjects(context.Background(), []string{attachment.ObjectKey})
		return nil, fmt.Errorf("登记附件失败: %w", err)
	}
	return attachment, nil
}

// authorizeAttachment 按附件所属记录做记录级授权
func (s *AttachmentService) authorizeAttachment(ctx context.Context, userID string,
	attachment *entity.RecordAttachment, op entity.Capability) error {

	app, err := s.appRepo.FindByID(ctx, attachment.AppID)
	if err != nil {
		return engine.ErrNotFound
	}
	record, err := s.recordRepo.FindByID(ctx, attachment.RecordID)
	if err != nil {
		return engine.ErrNotFound
	}
	allowed, err := s.permSvc.AuthorizeRecord(ctx, userID, app, op, record.Data)
	if err != nil {
		return err
	}
	if !allowed {
		return engine.ErrPermissionDenied
	}
	return nil
}

// Download 获取附件对象流，要求对所属记录有查看权限
func (s *AttachmentService) Download(ctx context.Context, userID, attachmentID string) (*entity.RecordAttachment, io.ReadCloser, error) {
	var attachment entity.RecordAttachment
	if err := s.db.WithContext(ctx).Where("id = ?", attachmentID).First(&attachment).Error; err != nil {
		return nil, nil, engine.ErrNotFound
	}
	if err := s.authorizeAttachment(ctx, userID, &attachment, entity.CapView); err != nil {
		return nil, nil, err
	}

	if s.minioClient == nil {
		return nil, nil, fmt.Errorf("对象存储未配置")
	}
	obj, err := s.minioClient.GetObject(ctx, s.bucket, attachment.ObjectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("读取附件失败: %w", err)
	}
	return &attachment, obj, nil
}

// Delete 删除附件：要求对所属记录有编辑权限，先删行再删对象
func (s *AttachmentService) Delete(ctx context.Context, userID, attachmentID string) error {
	var attachment entity.RecordAttachment
	if err := s.db.WithContext(ctx).Where("id = ?", attachmentID).First(&attachment).Error; err != nil {
		return engine.ErrNotFound
	}
	if err := s.authorizeAttachment(ctx, userID, &attachment, entity.CapEdit); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&attachment).Error; err != nil {
		return fmt.Errorf("删除附件失败: %w", err)
	}
	s.RemoveObjects(ctx, []string{attachment.ObjectKey})
	return nil
}

// RemoveObjects 尽力删除对象存储中的文件，失败只记日志。
// 对象存储不参与数据库事务，残留对象由后台清理兜底。
func (s *AttachmentService) RemoveObjects(ctx context.Context, keys []string) {
	if s.minioClient == nil {
		return
	}
	for _, key := range keys {
		if err := s.minioClient.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			log.Printf("[AttachmentService] 删除对象失败 key=%s: %v", key, err)
		}
	}
}
