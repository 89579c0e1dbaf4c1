package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProcessService 流程服务：动作列举、迁移执行、定义替换
type ProcessService struct {
	db          *gorm.DB
	appRepo     *repository.AppRepository
	recordRepo  *repository.RecordRepository
	processRepo *repository.ProcessRepository
	permSvc     *PermissionService
}

// NewProcessService 创建流程服务
func NewProcessService(db *gorm.DB, appRepo *repository.AppRepository, recordRepo *repository.RecordRepository,
	processRepo *repository.ProcessRepository, permSvc *PermissionService) *ProcessService {
	return &ProcessService{
		db:          db,
		appRepo:     appRepo,
		recordRepo:  recordRepo,
		processRepo: processRepo,
		permSvc:     permSvc,
	}
}

// ListAvailableActions 列举记录当前状态下该用户可执行的动作
func (s *ProcessService) ListAvailableActions(ctx context.Context, userID, appCode string, recordNumber int64) ([]entity.ProcessAction, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	record, err := s.recordRepo.FindByNumber(ctx, app.ID, recordNumber)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	if record.ProcessState == nil {
		return nil, engine.ErrNotFound
	}

	def, err := s.processRepo.FindDefinitionByApp(ctx, app.ID)
	if err != nil || !def.Enabled {
		return nil, engine.ErrNotFound
	}

	id, err := s.permSvc.ResolveIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}
	return engine.AvailableActions(def.Actions, record.ProcessState.StatusID, record.Data, id), nil
}

// ApplyAction 执行流程动作。
// 行锁内复核当前状态后再迁移（check-and-set），并发的第二次迁移请求
// 会因状态已变化收到 ErrStaleTransition。
func (s *ProcessService) ApplyAction(ctx context.Context, userID, appCode string, recordNumber int64,
	actionID, comment string) (*entity.ProcessStatus, error) {

	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	record, err := s.recordRepo.FindByNumber(ctx, app.ID, recordNumber)
	if err != nil {
		return nil, engine.ErrNotFound
	}

	def, err := s.processRepo.FindDefinitionByApp(ctx, app.ID)
	if err != nil || !def.Enabled {
		return nil, engine.ErrNotFound
	}

	var action *entity.ProcessAction
	for i := range def.Actions {
		if def.Actions[i].ID == actionID {
			action = &def.Actions[i]
			break
		}
	}
	if action == nil {
		return nil, engine.ErrNotFound
	}

	id, err := s.permSvc.ResolveIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 执行人限制与过滤条件：动作必须出现在该用户的可用动作里
	available := engine.AvailableActions(def.Actions, action.FromStatusID, record.Data, id)
	permitted := false
	for _, a := range available {
		if a.ID == action.ID {
			permitted = true
			break
		}
	}
	if !permitted {
		return nil, engine.ErrPermissionDenied
	}

	var toStatus *entity.ProcessStatus
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := repository.FindStateForUpdate(tx, record.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return engine.ErrNotFound
			}
			return err
		}

		toID, err := engine.PlanTransition(action, state.StatusID, comment)
		if err != nil {
			return err
		}
		for i := range def.Statuses {
			if def.Statuses[i].ID == toID {
				toStatus = &def.Statuses[i]
				break
			}
		}
		if toStatus == nil {
			return fmt.Errorf("%w: 动作指向不存在的状态", engine.ErrStructural)
		}

		if err := tx.Model(&entity.RecordProcessState{}).
			Where("id = ?", state.ID).
			Updates(map[string]interface{}{
				"status_id":  toID,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("更新流程状态失败: %w", err)
		}

		log := &entity.ProcessActionLog{
			ID:           uuid.New().String(),
			AppID:        app.ID,
			RecordID:     record.ID,
			ActionID:     action.ID,
			ActionName:   action.Name,
			FromStatusID: state.StatusID,
			ToStatusID:   toID,
			Comment:      comment,
			OperatorID:   userID,
			CreatedAt:    time.Now(),
		}
		if err := tx.Create(log).Error; err != nil {
			return fmt.Errorf("写入动作日志失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toStatus, nil
}

// ReplaceDefinition 原子替换应用的整个流程定义。
// 删除旧状态/动作/执行人限制，按提交列表重建；临时ID重映射为新ID，
// 引用无法解析状态的动作丢弃。既有记录的流程状态重置到新的初始状态。
func (s *ProcessService) ReplaceDefinition(ctx context.Context, userID, appCode string, enabled bool,
	statuses []engine.StatusInput, actions []engine.ActionInput) (*entity.ProcessDefinition, error) {

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

	// 首次提交时定义行也在事务内创建，结构校验失败不能留下空定义
	createDef := false
	def, err := s.processRepo.FindDefinitionByApp(ctx, app.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("加载流程定义失败: %w", err)
		}
		createDef = true
		def = &entity.ProcessDefinition{
			ID:        uuid.New().String(),
			AppID:     app.ID,
			Enabled:   enabled,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
	}

	plan, err := engine.PlanReplace(def.ID, statuses, actions, func() string {
		return uuid.New().String()
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if createDef {
			if err := tx.Create(def).Error; err != nil {
				return fmt.Errorf("创建流程定义失败: %w", err)
			}
		}

		// 旧定义按依赖顺序清空
		if err := tx.Where("action_id IN (?)",
			tx.Model(&entity.ProcessAction{}).Select("id").Where("definition_id = ?", def.ID),
		).Delete(&entity.ProcessActionExecutor{}).Error; err != nil {
			return err
		}
		if err := tx.Where("definition_id = ?", def.ID).Delete(&entity.ProcessAction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("definition_id = ?", def.ID).Delete(&entity.ProcessStatus{}).Error; err != nil {
			return err
		}

		if len(plan.Statuses) > 0 {
			if err := tx.Create(plan.Statuses).Error; err != nil {
				return err
			}
		}
		if len(plan.Actions) > 0 {
			if err := tx.Create(plan.Actions).Error; err != nil {
				return err
			}
		}
		if len(plan.Executors) > 0 {
			if err := tx.Create(plan.Executors).Error; err != nil {
				return err
			}
		}

		// 既有记录指向的旧状态已不存在，整体重置到新初始状态
		if err := tx.Model(&entity.RecordProcessState{}).
			Where("app_id = ?", app.ID).
			Updates(map[string]interface{}{
				"status_id":  plan.InitialStatusID,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		return tx.Model(&entity.ProcessDefinition{}).
			Where("id = ?", def.ID).
			Updates(map[string]interface{}{
				"enabled":    enabled,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.processRepo.FindDefinitionByApp(ctx, app.ID)
}

// GetDefinition 获取应用的流程定义
func (s *ProcessService) GetDefinition(ctx context.Context, appCode string) (*entity.ProcessDefinition, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	def, err := s.processRepo.FindDefinitionByApp(ctx, app.ID)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	return def, nil
}

// ListActionLogs 获取记录的流程动作日志
func (s *ProcessService) ListActionLogs(ctx context.Context, userID, appCode string, recordNumber int64) ([]entity.ProcessActionLog, error) {
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
	return s.processRepo.ListActionLogs(ctx, record.ID)
}
