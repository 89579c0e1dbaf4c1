package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	App        *AppRepository
	Record     *RecordRepository
	User       *UserRepository
	Permission *PermissionRepository
	Process    *ProcessRepository
	Template   *TemplateRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		App:        NewAppRepository(db),
		Record:     NewRecordRepository(db),
		User:       NewUserRepository(db),
		Permission: NewPermissionRepository(db),
		Process:    NewProcessRepository(db),
		Template:   NewTemplateRepository(db),
	}
}
