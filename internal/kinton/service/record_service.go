package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ValidationError 字段校验失败，携带逐字段错误列表
type ValidationError struct {
	Result engine.ValidationResult
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Errors))
	for _, fe := range e.Result.Errors {
		msgs = append(msgs, fe.Message)
	}
	return "字段校验失败: " + strings.Join(msgs, "; ")
}

// RecordService 记录服务：校验后写入、编号、评论
type RecordService struct {
	db          *gorm.DB
	appRepo     *repository.AppRepository
	recordRepo  *repository.RecordRepository
	processRepo *repository.ProcessRepository
	permSvc     *PermissionService
}

// NewRecordService 创建记录服务
func NewRecordService(db *gorm.DB, appRepo *repository.AppRepository, recordRepo *repository.RecordRepository,
	processRepo *repository.ProcessRepository, permSvc *PermissionService) *RecordService {
	return &RecordService{
		db:          db,
		appRepo:     appRepo,
		recordRepo:  recordRepo,
		processRepo: processRepo,
		permSvc:     permSvc,
	}
}

// ValidateDocument 只做校验不落库（对外暴露的 validateRecord 契约）
func (s *RecordService) ValidateDocument(ctx context.Context, appCode string, doc map[string]interface{}) (engine.ValidationResult, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return engine.ValidationResult{}, engine.ErrNotFound
	}
	fields, err := s.appRepo.ListFields(ctx, app.ID, true)
	if err != nil {
		return engine.ValidationResult{}, fmt.Errorf("加载字段定义失败: %w", err)
	}
	return engine.Validate(fields, doc), nil
}

// Create 创建记录。流程：授权 → 校验 → 事务内取编号并落库 →
// 流程启用的应用同时建立初始流程状态。
func (s *RecordService) Create(ctx context.Context, userID, appCode string, doc map[string]interface{}) (*entity.Record, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}

	allowed, err := s.permSvc.Authorize(ctx, userID, appCode, entity.CapAdd)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, engine.ErrPermissionDenied
	}

	fields, err := s.appRepo.ListFields(ctx, app.ID, true)
	if err != nil {
		return nil, fmt.Errorf("加载字段定义失败: %w", err)
	}
	if result := engine.Validate(fields, doc); !result.Valid {
		return nil, &ValidationError{Result: result}
	}

	// 流程定义在事务外加载，初始状态在事务内一并写入
	def, err := s.processRepo.FindDefinitionByApp(ctx, app.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("加载流程定义失败: %w", err)
	}

	record := &entity.Record{
		ID:        uuid.New().String(),
		AppID:     app.ID,
		Data:      entity.JSONB(doc),
		CreatedBy: userID,
		UpdatedBy: userID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := repository.NextRecordNumber(tx, app.ID)
		if err != nil {
			return fmt.Errorf("分配记录编号失败: %w", err)
		}
		record.RecordNumber = number

		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("创建记录失败: %w", err)
		}

		if def != nil && def.Enabled {
			initial, err := engine.InitialStatus(def.Statuses)
			if err != nil {
				return err
			}
			state := &entity.RecordProcessState{
				ID:        uuid.New().String(),
				AppID:     app.ID,
				RecordID:  record.ID,
				StatusID:  initial.ID,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			if err := tx.Create(state).Error; err != nil {
				return fmt.Errorf("创建流程状态失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Get 获取记录（记录级 view 判定）
func (s *RecordService) Get(ctx context.Context, userID, appCode string, recordNumber int64) (*entity.Record, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	record, err := s.recordRepo.FindByNumber(ctx, app.ID, recordNumber)
	if err != nil {
		return nil, engine.ErrNotFound
	}

	allowed, err := s.permSvc.AuthorizeRecord(ctx, userID, app, entity.CapView, record.Data)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, engine.ErrPermissionDenied
	}
	return record, nil
}

// Update 更新记录。记录级 edit 判定针对修改前的文档求值。
func (s *RecordService) Update(ctx context.Context, userID, appCode string, recordNumber int64, doc map[string]interface{}) (*entity.Record, error) {
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

	fields, err := s.appRepo.ListFields(ctx, app.ID, true)
	if err != nil {
		return nil, fmt.Errorf("加载字段定义失败: %w", err)
	}
	if result := engine.Validate(fields, doc); !result.Valid {
		return nil, &ValidationError{Result: result}
	}

	record.Data = entity.JSONB(doc)
	record.UpdatedBy = userID
	record.UpdatedAt = time.Now()
	if err := s.recordRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("更新记录失败: %w", err)
	}
	return record, nil
}

// Delete 删除记录（记录级 delete 判定）
func (s *RecordService) Delete(ctx context.Context, userID, appCode string, recordNumber int64) error {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return engine.ErrNotFound
	}
	record, err := s.recordRepo.FindByNumber(ctx, app.ID, recordNumber)
	if err != nil {
		return engine.ErrNotFound
	}

	allowed, err := s.permSvc.AuthorizeRecord(ctx, userID, app, entity.CapDelete, record.Data)
	if err != nil {
		return err
	}
	if !allowed {
		return engine.ErrPermissionDenied
	}
	return s.recordRepo.Delete(ctx, record)
}

// List 获取记录列表（应用级 view 判定）
func (s *RecordService) List(ctx context.Context, userID, appCode string, page, pageSize int) ([]entity.Record, int64, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, 0, engine.ErrNotFound
	}

	allowed, err := s.permSvc.Authorize(ctx, userID, appCode, entity.CapView)
	if err != nil {
		return nil, 0, err
	}
	if !allowed {
		return nil, 0, engine.ErrPermissionDenied
	}
	return s.recordRepo.ListByApp(ctx, app.ID, page, pageSize)
}

// AddComment 添加记录评论（记录级 view 即可评论）
func (s *RecordService) AddComment(ctx context.Context, userID, appCode string, recordNumber int64, body string) (*entity.RecordComment, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	record, err := s.recordRepo.FindByNumber(ctx, app.ID, recordNumber)
	if err != nil {
		return nil, engine.ErrNotFound
	}

	allowed, err := s.permSvc.AuthorizeRecord(ctx, userID, app, entity.CapView, record.Data)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, engine.ErrPermissionDenied
	}

	comment := &entity.RecordComment{
		ID:        uuid.New().String(),
		AppID:     app.ID,
		RecordID:  record.ID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := s.recordRepo.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("创建评论失败: %w", err)
	}
	return comment, nil
}
