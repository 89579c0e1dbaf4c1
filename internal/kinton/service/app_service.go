package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var appCodePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// AppService 应用服务：应用与字段管理、软删除、级联清除
type AppService struct {
	db            *gorm.DB
	appRepo       *repository.AppRepository
	permSvc       *PermissionService
	attachmentSvc *AttachmentService
}

// NewAppService 创建应用服务
func NewAppService(db *gorm.DB, appRepo *repository.AppRepository, permSvc *PermissionService,
	attachmentSvc *AttachmentService) *AppService {
	return &AppService{
		db:            db,
		appRepo:       appRepo,
		permSvc:       permSvc,
		attachmentSvc: attachmentSvc,
	}
}

// Create 创建应用
func (s *AppService) Create(ctx context.Context, userID string, app *entity.Application) (*entity.Application, error) {
	if !appCodePattern.MatchString(app.Code) {
		return nil, fmt.Errorf("%w: 应用代码只能包含小写字母、数字和下划线", engine.ErrStructural)
	}
	if app.Kind == "" {
		app.Kind = entity.AppKindCustom
	}

	app.ID = uuid.New().String()
	app.IsActive = true
	app.NextRecordNumber = 1
	app.CreatedBy = userID
	app.CreatedAt = time.Now()
	app.UpdatedAt = time.Now()
	if err := s.appRepo.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("创建应用失败: %w", err)
	}
	return app, nil
}

// Get 获取应用（含字段定义）
func (s *AppService) Get(ctx context.Context, appCode string) (*entity.Application, []entity.FieldDefinition, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, nil, engine.ErrNotFound
	}
	fields, err := s.appRepo.ListFields(ctx, app.ID, false)
	if err != nil {
		return nil, nil, fmt.Errorf("加载字段定义失败: %w", err)
	}
	return app, fields, nil
}

// List 获取应用列表
func (s *AppService) List(ctx context.Context, activeOnly bool) ([]entity.Application, error) {
	return s.appRepo.List(ctx, activeOnly)
}

// AddField 添加字段定义
func (s *AppService) AddField(ctx context.Context, userID, appCode string, field *entity.FieldDefinition) (*entity.FieldDefinition, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}

	allowed, err := s.permSvc.Authorize(ctx, userID, appCode, entity.CapManage)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, engine.ErrPermissionDenied
	}

	field.ID = uuid.New().String()
	field.AppID = app.ID
	field.IsActive = true
	field.CreatedAt = time.Now()
	field.UpdatedAt = time.Now()
	if err := s.appRepo.CreateField(ctx, field); err != nil {
		return nil, fmt.Errorf("创建字段失败: %w", err)
	}
	return field, nil
}

// SoftDelete 软删除应用：打停用标记并记录时间与操作人，数据保留
func (s *AppService) SoftDelete(ctx context.Context, userID, appCode string) error {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return engine.ErrNotFound
	}

	allowed, err := s.permSvc.Authorize(ctx, userID, appCode, entity.CapManage)
	if err != nil {
		return err
	}
	if !allowed {
		return engine.ErrPermissionDenied
	}

	now := time.Now()
	app.IsActive = false
	app.DeletedAt = &now
	app.DeletedBy = userID
	app.UpdatedAt = now
	return s.appRepo.Update(ctx, app)
}

// purgeStep 级联清除的一步：表名 + 执行删除
type purgeStep struct {
	table  string
	delete func(tx *gorm.DB, appID string) error
}

func byAppID(model interface{}) func(tx *gorm.DB, appID string) error {
	return func(tx *gorm.DB, appID string) error {
		return tx.Where("app_id = ?", appID).Delete(model).Error
	}
}

// purgeSteps 依赖顺序的删除序列。被引用的行永远晚于引用它的行删除，
// 测试直接校验这一顺序。
var purgeSteps = []purgeStep{
	{"record_attachments", byAppID(&entity.RecordAttachment{})},
	{"record_comments", byAppID(&entity.RecordComment{})},
	{"process_action_logs", byAppID(&entity.ProcessActionLog{})},
	{"record_process_states", byAppID(&entity.RecordProcessState{})},
	{"process_action_executors", func(tx *gorm.DB, appID string) error {
		return tx.Where("action_id IN (?)",
			tx.Model(&entity.ProcessAction{}).Select("process_actions.id").
				Joins("JOIN process_definitions ON process_definitions.id = process_actions.definition_id").
				Where("process_definitions.app_id = ?", appID),
		).Delete(&entity.ProcessActionExecutor{}).Error
	}},
	{"process_actions", func(tx *gorm.DB, appID string) error {
		return tx.Where("definition_id IN (?)",
			tx.Model(&entity.ProcessDefinition{}).Select("id").Where("app_id = ?", appID),
		).Delete(&entity.ProcessAction{}).Error
	}},
	{"process_statuses", func(tx *gorm.DB, appID string) error {
		return tx.Where("definition_id IN (?)",
			tx.Model(&entity.ProcessDefinition{}).Select("id").Where("app_id = ?", appID),
		).Delete(&entity.ProcessStatus{}).Error
	}},
	{"process_definitions", byAppID(&entity.ProcessDefinition{})},
	{"record_permission_rules", byAppID(&entity.RecordPermissionRule{})},
	{"app_permission_rules", byAppID(&entity.AppPermissionRule{})},
	{"records", byAppID(&entity.Record{})},
	{"field_definitions", byAppID(&entity.FieldDefinition{})},
	{"app_templates", func(tx *gorm.DB, appID string) error {
		// 模板快照自洽，只需清掉指向被清除应用的来源引用
		return tx.Model(&entity.AppTemplate{}).
			Where("source_app_id = ?", appID).
			Update("source_app_id", "").Error
	}},
	{"applications", func(tx *gorm.DB, appID string) error {
		return tx.Where("id = ?", appID).Delete(&entity.Application{}).Error
	}},
}

// PurgeOrder 返回级联清除的表删除顺序（供测试与运维检查）
func PurgeOrder() []string {
	order := make([]string, len(purgeSteps))
	for i, step := range purgeSteps {
		order[i] = step.table
	}
	return order
}

// Purge 硬清除已软删除的应用及全部从属数据。
// 行删除在单个事务内按依赖顺序执行；对象存储里的附件文件在
// 事务提交后尽力删除（对象存储不参与数据库事务）。
func (s *AppService) Purge(ctx context.Context, userID, appCode string) error {
	app, err := s.appRepo.FindByCode(ctx, appCode, true)
	if err != nil {
		return engine.ErrNotFound
	}
	if app.DeletedAt == nil {
		return fmt.Errorf("%w: 应用必须先软删除才能清除", engine.ErrStructural)
	}

	id, err := s.permSvc.ResolveIdentity(ctx, userID)
	if err != nil {
		return err
	}
	// 清除是不可逆操作，仅系统管理员可执行
	if !id.IsSystemAdmin() {
		return engine.ErrPermissionDenied
	}

	// 附件对象键先收集，行删掉后就查不到了
	var objectKeys []string
	if s.attachmentSvc != nil {
		var attachments []entity.RecordAttachment
		if err := s.db.WithContext(ctx).Where("app_id = ?", app.ID).Find(&attachments).Error; err != nil {
			return fmt.Errorf("加载附件清单失败: %w", err)
		}
		for _, a := range attachments {
			objectKeys = append(objectKeys, a.ObjectKey)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range purgeSteps {
			if err := step.delete(tx, app.ID); err != nil {
				return fmt.Errorf("清除 %s 失败: %w", step.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.attachmentSvc != nil && len(objectKeys) > 0 {
		s.attachmentSvc.RemoveObjects(ctx, objectKeys)
	}
	return nil
}
