package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringList jsonb存储的字符串数组
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// ProcessDefinition 流程定义（每个应用至多一个）
type ProcessDefinition struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	AppID     string    `json:"app_id" gorm:"size:36;not null;uniqueIndex"`
	Enabled   bool      `json:"enabled" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Statuses []ProcessStatus `json:"statuses,omitempty" gorm:"foreignKey:DefinitionID"`
	Actions  []ProcessAction `json:"actions,omitempty" gorm:"foreignKey:DefinitionID"`
}

func (ProcessDefinition) TableName() string {
	return "process_definitions"
}

// ProcessStatus 流程状态节点
type ProcessStatus struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	DefinitionID string    `json:"definition_id" gorm:"size:36;not null;index"`
	Name         string    `json:"name" gorm:"size:128;not null"`
	IsInitial    bool      `json:"is_initial" gorm:"not null;default:false"`
	IsFinal      bool      `json:"is_final" gorm:"not null;default:false"`
	AssigneeType string    `json:"assignee_type" gorm:"size:32"`
	SortOrder    int       `json:"sort_order" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ProcessStatus) TableName() string {
	return "process_statuses"
}

// 动作补充要求常量
const (
	RequirementNone    = "none"
	RequirementComment = "comment" // 执行时必须填写意见
)

// ProcessAction 流程动作（状态间的受控迁移）
type ProcessAction struct {
	ID              string         `json:"id" gorm:"primaryKey;size:36"`
	DefinitionID    string         `json:"definition_id" gorm:"size:36;not null;index"`
	Name            string         `json:"name" gorm:"size:128;not null"`
	FromStatusID    string         `json:"from_status_id" gorm:"size:36;not null"`
	ToStatusID      string         `json:"to_status_id" gorm:"size:36;not null"`
	ActionType      string         `json:"action_type" gorm:"size:32;not null;default:'transition'"`
	RequirementType string         `json:"requirement_type" gorm:"size:32;not null;default:'none'"`
	FilterCondition ConditionGroup `json:"filter_condition" gorm:"type:jsonb;not null;default:'{}'"`
	SortOrder       int            `json:"sort_order" gorm:"default:0"`
	CreatedAt       time.Time      `json:"created_at"`

	// 关联
	Executors []ProcessActionExecutor `json:"executors,omitempty" gorm:"foreignKey:ActionID"`
}

func (ProcessAction) TableName() string {
	return "process_actions"
}

// ProcessActionExecutor 动作执行人限制。动作没有执行人行时任何人可执行。
type ProcessActionExecutor struct {
	ID             string  `json:"id" gorm:"primaryKey;size:36"`
	ActionID       string  `json:"action_id" gorm:"size:36;not null;index"`
	TargetType     string  `json:"target_type" gorm:"size:16;not null"`
	TargetID       *string `json:"target_id" gorm:"size:36"`
	IncludeSubOrgs bool    `json:"include_sub_orgs" gorm:"not null;default:false"`
}

func (ProcessActionExecutor) TableName() string {
	return "process_action_executors"
}

// RecordProcessState 记录当前所处的流程状态
type RecordProcessState struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	AppID     string     `json:"app_id" gorm:"size:36;not null;index"`
	RecordID  string     `json:"record_id" gorm:"size:36;not null;uniqueIndex"`
	StatusID  string     `json:"status_id" gorm:"size:36;not null"`
	Assignees StringList `json:"assignees" gorm:"type:jsonb;not null;default:'[]'"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (RecordProcessState) TableName() string {
	return "record_process_states"
}

// ProcessActionLog 流程动作执行日志
type ProcessActionLog struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	AppID        string    `json:"app_id" gorm:"size:36;not null;index"`
	RecordID     string    `json:"record_id" gorm:"size:36;not null;index"`
	ActionID     string    `json:"action_id" gorm:"size:36;not null"`
	ActionName   string    `json:"action_name" gorm:"size:128;not null"`
	FromStatusID string    `json:"from_status_id" gorm:"size:36;not null"`
	ToStatusID   string    `json:"to_status_id" gorm:"size:36;not null"`
	Comment      string    `json:"comment" gorm:"type:text"`
	OperatorID   string    `json:"operator_id" gorm:"size:36;not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ProcessActionLog) TableName() string {
	return "process_action_logs"
}
