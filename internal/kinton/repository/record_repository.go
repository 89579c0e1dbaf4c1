package repository

import (
	"context"
	"errors"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"gorm.io/gorm"
)

// RecordRepository 记录仓库
type RecordRepository struct {
	db *gorm.DB
}

// NewRecordRepository 创建记录仓库
func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// FindByID 根据ID查找记录
func (r *RecordRepository) FindByID(ctx context.Context, id string) (*entity.Record, error) {
	var record entity.Record
	err := r.db.WithContext(ctx).
		Preload("ProcessState").
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByNumber 根据应用内编号查找记录
func (r *RecordRepository) FindByNumber(ctx context.Context, appID string, number int64) (*entity.Record, error) {
	var record entity.Record
	err := r.db.WithContext(ctx).
		Preload("ProcessState").
		Where("app_id = ? AND record_number = ?", appID, number).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListByApp 获取应用的记录列表（分页）
func (r *RecordRepository) ListByApp(ctx context.Context, appID string, page, pageSize int) ([]entity.Record, int64, error) {
	var records []entity.Record
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Record{}).Where("app_id = ?", appID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("record_number DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	return records, total, err
}

// Update 更新记录
func (r *RecordRepository) Update(ctx context.Context, record *entity.Record) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// Delete 删除记录及其流程状态
func (r *RecordRepository) Delete(ctx context.Context, record *entity.Record) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ?", record.ID).Delete(&entity.RecordProcessState{}).Error; err != nil {
			return err
		}
		if err := tx.Where("record_id = ?", record.ID).Delete(&entity.RecordComment{}).Error; err != nil {
			return err
		}
		return tx.Delete(record).Error
	})
}

// CreateComment 创建记录评论
func (r *RecordRepository) CreateComment(ctx context.Context, comment *entity.RecordComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// ListComments 获取记录评论
func (r *RecordRepository) ListComments(ctx context.Context, recordID string) ([]entity.RecordComment, error) {
	var comments []entity.RecordComment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("record_id = ?", recordID).
		Order("created_at DESC").
		Find(&comments).Error
	return comments, err
}

// ListAttachments 获取记录附件
func (r *RecordRepository) ListAttachments(ctx context.Context, recordID string) ([]entity.RecordAttachment, error) {
	var attachments []entity.RecordAttachment
	err := r.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("created_at").
		Find(&attachments).Error
	return attachments, err
}
