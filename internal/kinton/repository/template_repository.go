package repository

import (
	"context"
	"errors"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"gorm.io/gorm"
)

// TemplateRepository 应用模板仓库
type TemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建模板仓库
func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// FindByID 根据ID查找模板
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*entity.AppTemplate, error) {
	var tmpl entity.AppTemplate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tmpl, nil
}

// List 获取模板列表
func (r *TemplateRepository) List(ctx context.Context) ([]entity.AppTemplate, error) {
	var templates []entity.AppTemplate
	err := r.db.WithContext(ctx).Order("code").Find(&templates).Error
	return templates, err
}

// Create 创建模板
func (r *TemplateRepository) Create(ctx context.Context, tmpl *entity.AppTemplate) error {
	return r.db.WithContext(ctx).Create(tmpl).Error
}

// Delete 删除模板
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.AppTemplate{}).Error
}
