package repository

import (
	"context"
	"errors"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessRepository 流程仓库
type ProcessRepository struct {
	db *gorm.DB
}

// NewProcessRepository 创建流程仓库
func NewProcessRepository(db *gorm.DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

// FindDefinitionByApp 获取应用的流程定义（含状态、动作、执行人限制）
func (r *ProcessRepository) FindDefinitionByApp(ctx context.Context, appID string) (*entity.ProcessDefinition, error) {
	var def entity.ProcessDefinition
	err := r.db.WithContext(ctx).
		Preload("Statuses", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order")
		}).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order")
		}).
		Preload("Actions.Executors").
		Where("app_id = ?", appID).
		First(&def).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &def, nil
}

// FindState 获取记录的流程状态
func (r *ProcessRepository) FindState(ctx context.Context, recordID string) (*entity.RecordProcessState, error) {
	var state entity.RecordProcessState
	err := r.db.WithContext(ctx).Where("record_id = ?", recordID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

// FindStateForUpdate 在事务内加行锁获取记录的流程状态。
// 迁移前的状态复核必须在该锁内完成，否则并发迁移会互相覆盖。
func FindStateForUpdate(tx *gorm.DB, recordID string) (*entity.RecordProcessState, error) {
	var state entity.RecordProcessState
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("record_id = ?", recordID).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

// ListActionLogs 获取记录的流程动作日志
func (r *ProcessRepository) ListActionLogs(ctx context.Context, recordID string) ([]entity.ProcessActionLog, error) {
	var logs []entity.ProcessActionLog
	err := r.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}
