package entity

import (
	"encoding/json"
	"time"
)

// AppTemplate 应用模板。
// 快照中的流程动作通过状态在列表中的位置引用状态，
// 因为每次实例化都会重新生成状态ID。
type AppTemplate struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	Code        string          `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name        string          `json:"name" gorm:"size:128;not null"`
	Description string          `json:"description" gorm:"type:text"`
	Snapshot    json.RawMessage `json:"snapshot" gorm:"type:jsonb;not null;default:'{}'"`
	SourceAppID string          `json:"source_app_id" gorm:"size:36"`
	CreatedBy   string          `json:"created_by" gorm:"size:36;not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (AppTemplate) TableName() string {
	return "app_templates"
}

// TemplateField 模板中的字段定义
type TemplateField struct {
	Code      string       `json:"code"`
	Label     string       `json:"label"`
	Type      FieldType    `json:"type"`
	Required  bool         `json:"required"`
	Options   FieldOptions `json:"options"`
	SortOrder int          `json:"sort_order"`
}

// TemplateStatus 模板中的流程状态，顺序即位置
type TemplateStatus struct {
	Name         string `json:"name"`
	IsInitial    bool   `json:"is_initial"`
	IsFinal      bool   `json:"is_final"`
	AssigneeType string `json:"assignee_type,omitempty"`
	SortOrder    int    `json:"sort_order"`
}

// TemplateExecutor 模板中的动作执行人限制
type TemplateExecutor struct {
	TargetType     string  `json:"target_type"`
	TargetID       *string `json:"target_id,omitempty"`
	IncludeSubOrgs bool    `json:"include_sub_orgs,omitempty"`
}

// TemplateAction 模板中的流程动作，from/to 用状态位置表示
type TemplateAction struct {
	Name            string             `json:"name"`
	FromPosition    int                `json:"from_position"`
	ToPosition      int                `json:"to_position"`
	ActionType      string             `json:"action_type"`
	RequirementType string             `json:"requirement_type"`
	FilterCondition ConditionGroup     `json:"filter_condition"`
	Executors       []TemplateExecutor `json:"executors,omitempty"`
	SortOrder       int                `json:"sort_order"`
}

// TemplateAppRule 模板中的应用级权限规则
type TemplateAppRule struct {
	TargetType     string  `json:"target_type"`
	TargetID       *string `json:"target_id,omitempty"`
	CanView        bool    `json:"can_view"`
	CanAdd         bool    `json:"can_add"`
	CanEdit        bool    `json:"can_edit"`
	CanDelete      bool    `json:"can_delete"`
	CanManage      bool    `json:"can_manage"`
	CanExport      bool    `json:"can_export"`
	CanImport      bool    `json:"can_import"`
	IncludeSubOrgs bool    `json:"include_sub_orgs,omitempty"`
	Priority       int     `json:"priority"`
}

// TemplateRecordRule 模板中的记录级权限规则
type TemplateRecordRule struct {
	TargetType     string         `json:"target_type"`
	TargetID       *string        `json:"target_id,omitempty"`
	TargetField    string         `json:"target_field,omitempty"`
	Condition      ConditionGroup `json:"condition"`
	CanView        bool           `json:"can_view"`
	CanEdit        bool           `json:"can_edit"`
	CanDelete      bool           `json:"can_delete"`
	IncludeSubOrgs bool           `json:"include_sub_orgs,omitempty"`
	Priority       int            `json:"priority"`
}

// TemplateSnapshot 应用完整配置的可复用快照
type TemplateSnapshot struct {
	Kind           string               `json:"kind"`
	Names          map[string]string    `json:"names"`
	Fields         []TemplateField      `json:"fields"`
	AppRules       []TemplateAppRule    `json:"app_rules,omitempty"`
	RecordRules    []TemplateRecordRule `json:"record_rules,omitempty"`
	ProcessEnabled bool                 `json:"process_enabled"`
	Statuses       []TemplateStatus     `json:"statuses,omitempty"`
	Actions        []TemplateAction     `json:"actions,omitempty"`
}
