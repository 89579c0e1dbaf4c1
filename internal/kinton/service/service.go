package service

import (
	"context"

	"github.com/katsuopg/kinton/internal/config"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Auth       *AuthService
	User       *UserService
	App        *AppService
	Record     *RecordService
	Process    *ProcessService
	Permission *PermissionService
	Template   *TemplateService
	Export     *ExportService
	Attachment *AttachmentService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config) *Services {
	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			// 对象存储不可用时附件功能降级，其余功能不受影响
			minioClient = nil
		}
	}

	permSvc := NewPermissionService(repos.App, repos.Permission)
	attachmentSvc := NewAttachmentService(db, repos.App, repos.Record, permSvc, minioClient, cfg.MinIO.Bucket)

	return &Services{
		Auth:       NewAuthService(repos.User, repos.Permission, rdb, cfg),
		User:       NewUserService(repos.User),
		App:        NewAppService(db, repos.App, permSvc, attachmentSvc),
		Record:     NewRecordService(db, repos.App, repos.Record, repos.Process, permSvc),
		Process:    NewProcessService(db, repos.App, repos.Record, repos.Process, permSvc),
		Permission: permSvc,
		Template:   NewTemplateService(db, repos.App, repos.Permission, repos.Process, repos.Template, permSvc),
		Export:     NewExportService(repos.App, repos.Record, permSvc),
		Attachment: attachmentSvc,
	}
}

// UserService 用户服务
type UserService struct {
	repo *repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// ListAll 获取所有活跃用户
func (s *UserService) ListAll(ctx context.Context) ([]entity.User, error) {
	return s.repo.ListActive(ctx)
}
