package repository

import (
	"context"
	"errors"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppRepository 应用仓库
type AppRepository struct {
	db *gorm.DB
}

// NewAppRepository 创建应用仓库
func NewAppRepository(db *gorm.DB) *AppRepository {
	return &AppRepository{db: db}
}

// FindByID 根据ID查找应用
func (r *AppRepository) FindByID(ctx context.Context, id string) (*entity.Application, error) {
	var app entity.Application
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

// FindByCode 根据代码查找应用。includeDeleted 为假时不返回已软删除的应用。
func (r *AppRepository) FindByCode(ctx context.Context, code string, includeDeleted bool) (*entity.Application, error) {
	var app entity.Application
	query := r.db.WithContext(ctx).Where("code = ?", code)
	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	err := query.First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

// List 获取应用列表
func (r *AppRepository) List(ctx context.Context, activeOnly bool) ([]entity.Application, error) {
	var apps []entity.Application
	query := r.db.WithContext(ctx).Where("deleted_at IS NULL")
	if activeOnly {
		query = query.Where("is_active = true")
	}
	err := query.Order("sort_order, code").Find(&apps).Error
	return apps, err
}

// Create 创建应用
func (r *AppRepository) Create(ctx context.Context, app *entity.Application) error {
	return r.db.WithContext(ctx).Create(app).Error
}

// Update 更新应用
func (r *AppRepository) Update(ctx context.Context, app *entity.Application) error {
	return r.db.WithContext(ctx).Save(app).Error
}

// ListFields 获取应用的字段定义。activeOnly 为真时只返回启用字段。
func (r *AppRepository) ListFields(ctx context.Context, appID string, activeOnly bool) ([]entity.FieldDefinition, error) {
	var fields []entity.FieldDefinition
	query := r.db.WithContext(ctx).Where("app_id = ?", appID)
	if activeOnly {
		query = query.Where("is_active = true")
	}
	err := query.Order("sort_order, code").Find(&fields).Error
	return fields, err
}

// CreateField 创建字段定义
func (r *AppRepository) CreateField(ctx context.Context, field *entity.FieldDefinition) error {
	return r.db.WithContext(ctx).Create(field).Error
}

// UpdateField 更新字段定义
func (r *AppRepository) UpdateField(ctx context.Context, field *entity.FieldDefinition) error {
	return r.db.WithContext(ctx).Save(field).Error
}

// NextRecordNumber 在事务内锁定应用行并取下一个记录编号
func NextRecordNumber(tx *gorm.DB, appID string) (int64, error) {
	var app entity.Application
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", appID).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	number := app.NextRecordNumber
	if err := tx.Model(&entity.Application{}).
		Where("id = ?", appID).
		Update("next_record_number", number+1).Error; err != nil {
		return 0, err
	}
	return number, nil
}
