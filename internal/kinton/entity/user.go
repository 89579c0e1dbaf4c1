package entity

import "time"

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User 用户
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	Name         string     `json:"name" gorm:"size:64;not null"`
	Email        string     `json:"email" gorm:"size:128;uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"size:128"`
	AvatarURL    string     `json:"avatar_url" gorm:"size:512"`
	Status       string     `json:"status" gorm:"size:16;not null;default:'active'"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
