package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// 系统管理员角色代码，持有该角色的用户跳过所有规则判定
const SystemAdminRoleCode = "admin"

// Role 角色
type Role struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	Code           string    `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name           string    `json:"name" gorm:"size:128;not null"`
	IsSystemRole   bool      `json:"is_system_role" gorm:"not null;default:false"`
	CanManageApps  bool      `json:"can_manage_apps" gorm:"not null;default:false"`
	CanManageUsers bool      `json:"can_manage_users" gorm:"not null;default:false"`
	CanViewAudit   bool      `json:"can_view_audit" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

// UserRole 用户角色指派，可限定组织范围，可设置有效期
type UserRole struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	UserID    string     `json:"user_id" gorm:"size:36;not null;index"`
	RoleID    string     `json:"role_id" gorm:"size:36;not null;index"`
	OrgID     *string    `json:"org_id" gorm:"size:36"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  bool       `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time  `json:"created_at"`

	Role *Role `json:"role,omitempty" gorm:"foreignKey:RoleID"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// EffectiveAt 指派在给定时刻是否有效
func (ur *UserRole) EffectiveAt(now time.Time) bool {
	if !ur.IsActive {
		return false
	}
	if ur.ExpiresAt != nil && !ur.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Organization 组织（支持父子层级）
type Organization struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	ParentID  *string   `json:"parent_id" gorm:"size:36"`
	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
}

func (Organization) TableName() string {
	return "organizations"
}

// OrgMembership 组织成员关系
type OrgMembership struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"size:36;not null;index"`
	OrgID     string    `json:"org_id" gorm:"size:36;not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrgMembership) TableName() string {
	return "org_memberships"
}

// 规则目标类型常量
const (
	TargetEveryone = "everyone"
	TargetUser     = "user"
	TargetRole     = "role"
	TargetOrg      = "organization"
)

// Capability 操作能力
type Capability string

// 能力常量
const (
	CapView   Capability = "view"
	CapAdd    Capability = "add"
	CapEdit   Capability = "edit"
	CapDelete Capability = "delete"
	CapManage Capability = "manage"
	CapExport Capability = "export"
	CapImport Capability = "import"
)

// AppPermissionRule 应用级权限规则。
// 纯白名单模型：多条规则按「或」合并，没有拒绝规则，也没有优先级覆盖。
type AppPermissionRule struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	AppID          string    `json:"app_id" gorm:"size:36;not null;index"`
	TargetType     string    `json:"target_type" gorm:"size:16;not null"`
	TargetID       *string   `json:"target_id" gorm:"size:36"`
	CanView        bool      `json:"can_view" gorm:"not null;default:false"`
	CanAdd         bool      `json:"can_add" gorm:"not null;default:false"`
	CanEdit        bool      `json:"can_edit" gorm:"not null;default:false"`
	CanDelete      bool      `json:"can_delete" gorm:"not null;default:false"`
	CanManage      bool      `json:"can_manage" gorm:"not null;default:false"`
	CanExport      bool      `json:"can_export" gorm:"not null;default:false"`
	CanImport      bool      `json:"can_import" gorm:"not null;default:false"`
	IncludeSubOrgs bool      `json:"include_sub_orgs" gorm:"not null;default:false"`
	Priority       int       `json:"priority" gorm:"not null;default:0"`
	IsActive       bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (AppPermissionRule) TableName() string {
	return "app_permission_rules"
}

// Grants 该规则是否授予指定能力
func (r *AppPermissionRule) Grants(op Capability) bool {
	switch op {
	case CapView:
		return r.CanView
	case CapAdd:
		return r.CanAdd
	case CapEdit:
		return r.CanEdit
	case CapDelete:
		return r.CanDelete
	case CapManage:
		return r.CanManage
	case CapExport:
		return r.CanExport
	case CapImport:
		return r.CanImport
	}
	return false
}

// 条件组合方式常量
const (
	CombinatorAnd = "and"
	CombinatorOr  = "or"
)

// 条件运算符常量
const (
	OpEq    = "eq"
	OpNe    = "ne"
	OpIn    = "in"
	OpNotIn = "not_in"
	OpGt    = "gt"
	OpGte   = "gte"
	OpLt    = "lt"
	OpLte   = "lte"
)

// Condition 单个条件：字段与字面值或另一字段的值比较
type Condition struct {
	Field      string      `json:"field"`
	Operator   string      `json:"operator"`
	Value      interface{} `json:"value,omitempty"`
	ValueField string      `json:"value_field,omitempty"`
}

// ConditionGroup 扁平条件组，按 and/or 组合。空组恒为真。
type ConditionGroup struct {
	Combinator string      `json:"combinator,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

func (g ConditionGroup) Value() (driver.Value, error) {
	return json.Marshal(g)
}

func (g *ConditionGroup) Scan(value interface{}) error {
	if value == nil {
		*g = ConditionGroup{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, g)
}

// IsEmpty 是否为空条件组
func (g ConditionGroup) IsEmpty() bool {
	return len(g.Conditions) == 0
}

// RecordPermissionRule 记录级权限规则。
// 条件命中该记录文档时参与匹配；TargetField 非空时从记录字段值解析被授权人。
// 记录级能力只做进一步收窄，不能放开应用级未授予的能力。
type RecordPermissionRule struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	AppID          string         `json:"app_id" gorm:"size:36;not null;index"`
	TargetType     string         `json:"target_type" gorm:"size:16;not null"`
	TargetID       *string        `json:"target_id" gorm:"size:36"`
	TargetField    string         `json:"target_field" gorm:"size:64"`
	Condition      ConditionGroup `json:"condition" gorm:"type:jsonb;not null;default:'{}'"`
	CanView        bool           `json:"can_view" gorm:"not null;default:false"`
	CanEdit        bool           `json:"can_edit" gorm:"not null;default:false"`
	CanDelete      bool           `json:"can_delete" gorm:"not null;default:false"`
	IncludeSubOrgs bool           `json:"include_sub_orgs" gorm:"not null;default:false"`
	Priority       int            `json:"priority" gorm:"not null;default:0"`
	IsActive       bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (RecordPermissionRule) TableName() string {
	return "record_permission_rules"
}

// Grants 该规则是否授予指定能力（记录级仅 view/edit/delete）
func (r *RecordPermissionRule) Grants(op Capability) bool {
	switch op {
	case CapView:
		return r.CanView
	case CapEdit:
		return r.CanEdit
	case CapDelete:
		return r.CanDelete
	}
	return false
}
