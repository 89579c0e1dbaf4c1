package repository

import (
	"context"
	"errors"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"gorm.io/gorm"
)

// PermissionRepository 权限仓库：角色、组织、规则
type PermissionRepository struct {
	db *gorm.DB
}

// NewPermissionRepository 创建权限仓库
func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// ListUserRoles 获取用户的活跃角色指派（含角色信息，有效期由引擎判断）
func (r *PermissionRepository) ListUserRoles(ctx context.Context, userID string) ([]entity.UserRole, error) {
	var roles []entity.UserRole
	err := r.db.WithContext(ctx).
		Preload("Role").
		Where("user_id = ? AND is_active = true", userID).
		Find(&roles).Error
	return roles, err
}

// ListUserOrgChains 获取用户每个成员组织自下而上到根的组织ID链。
// 组织整体加载一次后在内存中回溯父链，层级深度可控。
func (r *PermissionRepository) ListUserOrgChains(ctx context.Context, userID string) ([][]string, error) {
	var memberships []entity.OrgMembership
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	var orgs []entity.Organization
	if err := r.db.WithContext(ctx).Find(&orgs).Error; err != nil {
		return nil, err
	}
	parent := make(map[string]*string, len(orgs))
	for _, o := range orgs {
		parent[o.ID] = o.ParentID
	}

	chains := make([][]string, 0, len(memberships))
	for _, m := range memberships {
		chain := []string{m.OrgID}
		seen := map[string]bool{m.OrgID: true}
		p, ok := parent[m.OrgID]
		for ok && p != nil && !seen[*p] {
			chain = append(chain, *p)
			seen[*p] = true
			p, ok = parent[*p]
		}
		chains = append(chains, chain)
	}
	return chains, nil
}

// ListAppRules 获取应用级权限规则（优先级降序）
func (r *PermissionRepository) ListAppRules(ctx context.Context, appID string) ([]entity.AppPermissionRule, error) {
	var rules []entity.AppPermissionRule
	err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("priority DESC, created_at").
		Find(&rules).Error
	return rules, err
}

// ListRecordRules 获取记录级权限规则（优先级降序）
func (r *PermissionRepository) ListRecordRules(ctx context.Context, appID string) ([]entity.RecordPermissionRule, error) {
	var rules []entity.RecordPermissionRule
	err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("priority DESC, created_at").
		Find(&rules).Error
	return rules, err
}

// CreateAppRule 创建应用级权限规则
func (r *PermissionRepository) CreateAppRule(ctx context.Context, rule *entity.AppPermissionRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// UpdateAppRule 更新应用级权限规则
func (r *PermissionRepository) UpdateAppRule(ctx context.Context, rule *entity.AppPermissionRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// DeleteAppRule 删除应用级权限规则
func (r *PermissionRepository) DeleteAppRule(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.AppPermissionRule{}).Error
}

// CreateRecordRule 创建记录级权限规则
func (r *PermissionRepository) CreateRecordRule(ctx context.Context, rule *entity.RecordPermissionRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// UpdateRecordRule 更新记录级权限规则
func (r *PermissionRepository) UpdateRecordRule(ctx context.Context, rule *entity.RecordPermissionRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// DeleteRecordRule 删除记录级权限规则
func (r *PermissionRepository) DeleteRecordRule(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.RecordPermissionRule{}).Error
}

// FindRole 根据ID查找角色
func (r *PermissionRepository) FindRole(ctx context.Context, id string) (*entity.Role, error) {
	var role entity.Role
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles 获取角色列表
func (r *PermissionRepository) ListRoles(ctx context.Context) ([]entity.Role, error) {
	var roles []entity.Role
	err := r.db.WithContext(ctx).Order("code").Find(&roles).Error
	return roles, err
}

// CreateRole 创建角色。系统角色不可通过此接口创建。
func (r *PermissionRepository) CreateRole(ctx context.Context, role *entity.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

// AssignRole 指派角色
func (r *PermissionRepository) AssignRole(ctx context.Context, assignment *entity.UserRole) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}
