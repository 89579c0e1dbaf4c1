package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateService 模板服务：应用配置的提取与实例化
type TemplateService struct {
	db           *gorm.DB
	appRepo      *repository.AppRepository
	permRepo     *repository.PermissionRepository
	processRepo  *repository.ProcessRepository
	templateRepo *repository.TemplateRepository
	permSvc      *PermissionService
}

// NewTemplateService 创建模板服务
func NewTemplateService(db *gorm.DB, appRepo *repository.AppRepository, permRepo *repository.PermissionRepository,
	processRepo *repository.ProcessRepository, templateRepo *repository.TemplateRepository,
	permSvc *PermissionService) *TemplateService {
	return &TemplateService{
		db:           db,
		appRepo:      appRepo,
		permRepo:     permRepo,
		processRepo:  processRepo,
		templateRepo: templateRepo,
		permSvc:      permSvc,
	}
}

// List 获取模板列表
func (s *TemplateService) List(ctx context.Context) ([]entity.AppTemplate, error) {
	return s.templateRepo.List(ctx)
}

// Extract 把应用的完整配置提取为模板。
// 流程动作在快照里用状态位置引用，实例化时重新生成ID。
func (s *TemplateService) Extract(ctx context.Context, userID, appCode, code, name, description string) (*entity.AppTemplate, error) {
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

	fields, err := s.appRepo.ListFields(ctx, app.ID, true)
	if err != nil {
		return nil, fmt.Errorf("加载字段定义失败: %w", err)
	}
	appRules, err := s.permRepo.ListAppRules(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("加载权限规则失败: %w", err)
	}
	recordRules, err := s.permRepo.ListRecordRules(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("加载记录级权限规则失败: %w", err)
	}

	def, err := s.processRepo.FindDefinitionByApp(ctx, app.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("加载流程定义失败: %w", err)
	}

	snap := engine.ExtractSnapshot(app, fields, appRules, recordRules, def)
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("序列化模板快照失败: %w", err)
	}

	tmpl := &entity.AppTemplate{
		ID:          uuid.New().String(),
		Code:        code,
		Name:        name,
		Description: description,
		Snapshot:    raw,
		SourceAppID: app.ID,
		CreatedBy:   userID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.templateRepo.Create(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("创建模板失败: %w", err)
	}
	return tmpl, nil
}

// Instantiate 从模板创建新应用。
// 状态按顺序重放并登记位置→新ID映射，动作经映射解析；
// 全部插入在单个事务内完成。
func (s *TemplateService) Instantiate(ctx context.Context, userID, templateID, newAppCode string, names map[string]string) (*entity.Application, error) {
	tmpl, err := s.templateRepo.FindByID(ctx, templateID)
	if err != nil {
		return nil, engine.ErrNotFound
	}

	var snap entity.TemplateSnapshot
	if err := json.Unmarshal(tmpl.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("%w: 模板快照无法解析", engine.ErrStructural)
	}

	appNames := entity.JSONB{}
	for locale, v := range snap.Names {
		appNames[locale] = v
	}
	for locale, v := range names {
		appNames[locale] = v
	}

	app := &entity.Application{
		ID:               uuid.New().String(),
		Code:             newAppCode,
		Names:            appNames,
		Kind:             snap.Kind,
		IsActive:         true,
		NextRecordNumber: 1,
		CreatedBy:        userID,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	plan := engine.PlanInstantiate(&snap, app.ID, func() string {
		return uuid.New().String()
	})

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(app).Error; err != nil {
			return fmt.Errorf("创建应用失败: %w", err)
		}
		if len(plan.Fields) > 0 {
			if err := tx.Create(plan.Fields).Error; err != nil {
				return fmt.Errorf("创建字段失败: %w", err)
			}
		}
		if len(plan.AppRules) > 0 {
			if err := tx.Create(plan.AppRules).Error; err != nil {
				return fmt.Errorf("创建权限规则失败: %w", err)
			}
		}
		if len(plan.RecordRules) > 0 {
			if err := tx.Create(plan.RecordRules).Error; err != nil {
				return fmt.Errorf("创建记录级权限规则失败: %w", err)
			}
		}
		if plan.Definition != nil {
			plan.Definition.CreatedAt = time.Now()
			plan.Definition.UpdatedAt = time.Now()
			if err := tx.Create(plan.Definition).Error; err != nil {
				return fmt.Errorf("创建流程定义失败: %w", err)
			}
			if len(plan.Statuses) > 0 {
				if err := tx.Create(plan.Statuses).Error; err != nil {
					return fmt.Errorf("创建流程状态失败: %w", err)
				}
			}
			if len(plan.Actions) > 0 {
				if err := tx.Create(plan.Actions).Error; err != nil {
					return fmt.Errorf("创建流程动作失败: %w", err)
				}
			}
			if len(plan.Executors) > 0 {
				if err := tx.Create(plan.Executors).Error; err != nil {
					return fmt.Errorf("创建执行人限制失败: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}
