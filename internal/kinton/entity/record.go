package entity

import "time"

// Record 记录（应用的一条数据，文档按字段代码键值存储）
type Record struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	AppID        string    `json:"app_id" gorm:"size:36;not null;uniqueIndex:idx_records_app_number"`
	RecordNumber int64     `json:"record_number" gorm:"not null;uniqueIndex:idx_records_app_number"`
	Data         JSONB     `json:"data" gorm:"type:jsonb;not null;default:'{}'"`
	CreatedBy    string    `json:"created_by" gorm:"size:36;not null"`
	UpdatedBy    string    `json:"updated_by" gorm:"size:36"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// 关联
	ProcessState *RecordProcessState `json:"process_state,omitempty" gorm:"foreignKey:RecordID"`
}

func (Record) TableName() string {
	return "records"
}

// RecordComment 记录评论
type RecordComment struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	AppID     string    `json:"app_id" gorm:"size:36;not null;index"`
	RecordID  string    `json:"record_id" gorm:"size:36;not null;index"`
	UserID    string    `json:"user_id" gorm:"size:36;not null"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (RecordComment) TableName() string {
	return "record_comments"
}

// RecordAttachment 记录附件（对象存储中的文件，按字段挂接）
type RecordAttachment struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	AppID      string    `json:"app_id" gorm:"size:36;not null;index"`
	RecordID   string    `json:"record_id" gorm:"size:36;not null;index"`
	FieldCode  string    `json:"field_code" gorm:"size:64;not null"`
	FileName   string    `json:"file_name" gorm:"size:256;not null"`
	ObjectKey  string    `json:"object_key" gorm:"size:512;not null"`
	FileSize   int64     `json:"file_size" gorm:"not null"`
	MimeType   string    `json:"mime_type" gorm:"size:128"`
	UploadedBy string    `json:"uploaded_by" gorm:"size:36;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (RecordAttachment) TableName() string {
	return "record_attachments"
}
