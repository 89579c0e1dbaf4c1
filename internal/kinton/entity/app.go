package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB jsonb字段通用类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// 应用类型常量
const (
	AppKindFixed  = "fixed"  // 固定结构应用（系统内置）
	AppKindCustom = "custom" // 用户自定义应用
)

// Application 应用（可配置的业务表）
type Application struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	Code      string `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Names     JSONB  `json:"names" gorm:"type:jsonb;not null;default:'{}'"`
	Kind      string `json:"kind" gorm:"size:16;not null;default:'custom'"`
	IsActive  bool   `json:"is_active" gorm:"not null;default:true"`
	SortOrder int    `json:"sort_order" gorm:"default:0"`
	// 记录级权限规则均不匹配时是否默认拒绝
	RecordRuleDefaultDeny bool `json:"record_rule_default_deny" gorm:"not null;default:false"`
	// 记录编号计数器，在插入事务内自增
	NextRecordNumber int64      `json:"next_record_number" gorm:"not null;default:1"`
	CreatedBy        string     `json:"created_by" gorm:"size:36"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at"`
	DeletedBy        string     `json:"deleted_by" gorm:"size:36"`

	// 关联
	Fields []FieldDefinition `json:"fields,omitempty" gorm:"foreignKey:AppID"`
}

func (Application) TableName() string {
	return "applications"
}

// Name 返回指定语言的显示名，缺省回退到任意已配置语言
func (a *Application) Name(locale string) string {
	if v, ok := a.Names[locale].(string); ok && v != "" {
		return v
	}
	for _, v := range a.Names {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return a.Code
}

// FieldType 字段类型（封闭枚举）
type FieldType string

// 字段类型常量
const (
	FieldTypeText           FieldType = "text"            // 单行文本
	FieldTypeTextArea       FieldType = "textarea"        // 多行文本
	FieldTypeNumber         FieldType = "number"          // 数值
	FieldTypeDate           FieldType = "date"            // 日期
	FieldTypeTime           FieldType = "time"            // 时间
	FieldTypeDateTime       FieldType = "datetime"        // 日期时间
	FieldTypeLink           FieldType = "link"            // 链接（url/email/tel）
	FieldTypeDropdown       FieldType = "dropdown"        // 下拉单选
	FieldTypeRadio          FieldType = "radio"           // 单选按钮
	FieldTypeCheckbox       FieldType = "checkbox"        // 复选框组
	FieldTypeMultiSelect    FieldType = "multiselect"     // 多选列表
	FieldTypeRichText       FieldType = "richtext"        // 富文本
	FieldTypeLookup         FieldType = "lookup"          // 跨应用取值
	FieldTypeUserSelect     FieldType = "user_select"     // 用户选择
	FieldTypeOrgSelect      FieldType = "org_select"      // 组织选择
	FieldTypeGroupSelect    FieldType = "group_select"    // 用户组选择
	FieldTypeSubtable       FieldType = "subtable"        // 表格（嵌套重复行）
	FieldTypeCalc           FieldType = "calc"            // 计算字段
	FieldTypeReferenceTable FieldType = "reference_table" // 关联记录列表
	FieldTypeFile           FieldType = "file"            // 附件（存附件表，不入文档）
	FieldTypeLabel          FieldType = "label"           // 标签（装饰）
	FieldTypeSpacer         FieldType = "spacer"          // 空白（装饰）
	FieldTypeHR             FieldType = "hr"              // 分割线（装饰）
)

// 链接字段协议常量
const (
	LinkProtocolURL   = "url"
	LinkProtocolEmail = "email"
	LinkProtocolTel   = "tel"
)

// IsInput 是否参与文档校验的输入类型。
// 装饰类型、计算类型、关联列表以及附件字段（附件在侧表跟踪）都不校验。
func (t FieldType) IsInput() bool {
	switch t {
	case FieldTypeCalc, FieldTypeReferenceTable, FieldTypeFile,
		FieldTypeLabel, FieldTypeSpacer, FieldTypeHR:
		return false
	}
	return true
}

// SubField 表格字段内嵌的子字段
type SubField struct {
	Code     string    `json:"code"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
}

// LookupDescriptor 跨应用取值配置
type LookupDescriptor struct {
	AppCode       string   `json:"app_code"`
	KeyField      string   `json:"key_field"`
	DisplayFields []string `json:"display_fields,omitempty"`
}

// FieldOptions 按字段类型取用的校验/展示配置
type FieldOptions struct {
	MaxLength      *int              `json:"max_length,omitempty"`
	Pattern        string            `json:"pattern,omitempty"`
	PatternMessage string            `json:"pattern_message,omitempty"`
	MinValue       *float64          `json:"min_value,omitempty"`
	MaxValue       *float64          `json:"max_value,omitempty"`
	Choices        []string          `json:"choices,omitempty"`
	LinkProtocol   string            `json:"link_protocol,omitempty"`
	AllowMultiple  bool              `json:"allow_multiple,omitempty"`
	MinRows        *int              `json:"min_rows,omitempty"`
	MaxRows        *int              `json:"max_rows,omitempty"`
	SubFields      []SubField        `json:"sub_fields,omitempty"`
	Lookup         *LookupDescriptor `json:"lookup,omitempty"`
	Expression     string            `json:"expression,omitempty"`
	ReferenceApp   string            `json:"reference_app,omitempty"`
	DefaultValue   interface{}       `json:"default_value,omitempty"`
}

func (o FieldOptions) Value() (driver.Value, error) {
	return json.Marshal(o)
}

func (o *FieldOptions) Scan(value interface{}) error {
	if value == nil {
		*o = FieldOptions{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, o)
}

// FieldDefinition 字段定义
type FieldDefinition struct {
	ID        string       `json:"id" gorm:"primaryKey;size:36"`
	AppID     string       `json:"app_id" gorm:"size:36;not null;uniqueIndex:idx_field_defs_app_code"`
	Code      string       `json:"code" gorm:"size:64;not null;uniqueIndex:idx_field_defs_app_code"`
	Label     string       `json:"label" gorm:"size:128;not null"`
	Type      FieldType    `json:"type" gorm:"size:32;not null"`
	Required  bool         `json:"required" gorm:"not null;default:false"`
	Options   FieldOptions `json:"options" gorm:"type:jsonb;not null;default:'{}'"`
	SortOrder int          `json:"sort_order" gorm:"default:0"`
	IsActive  bool         `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (FieldDefinition) TableName() string {
	return "field_definitions"
}
