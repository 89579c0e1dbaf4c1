package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/google/uuid"
)

// PermissionService 权限服务：身份解析 + 规则加载 + 引擎判定
type PermissionService struct {
	appRepo  *repository.AppRepository
	permRepo *repository.PermissionRepository
}

// NewPermissionService 创建权限服务
func NewPermissionService(appRepo *repository.AppRepository, permRepo *repository.PermissionRepository) *PermissionService {
	return &PermissionService{appRepo: appRepo, permRepo: permRepo}
}

// ResolveIdentity 把用户ID解析为引擎身份。
// 未知用户返回 nil 身份（引擎对 nil 一律拒绝，不抛错）。
func (s *PermissionService) ResolveIdentity(ctx context.Context, userID string) (*engine.Identity, error) {
	if userID == "" {
		return nil, nil
	}

	roles, err := s.permRepo.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("加载角色指派失败: %w", err)
	}
	chains, err := s.permRepo.ListUserOrgChains(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("加载组织归属失败: %w", err)
	}

	return &engine.Identity{
		UserID:    userID,
		Roles:     roles,
		OrgChains: chains,
		Now:       time.Now(),
	}, nil
}

// Authorize 应用级权限判定
func (s *PermissionService) Authorize(ctx context.Context, userID, appCode string, op entity.Capability) (bool, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, engine.ErrNotFound
		}
		return false, err
	}

	id, err := s.ResolveIdentity(ctx, userID)
	if err != nil {
		return false, err
	}

	rules, err := s.permRepo.ListAppRules(ctx, app.ID)
	if err != nil {
		return false, fmt.Errorf("加载权限规则失败: %w", err)
	}
	return engine.Authorize(id, op, rules), nil
}

// AuthorizeRecord 记录级权限判定。记录级规则只收窄应用级基线。
func (s *PermissionService) AuthorizeRecord(ctx context.Context, userID string, app *entity.Application,
	op entity.Capability, doc map[string]interface{}) (bool, error) {

	id, err := s.ResolveIdentity(ctx, userID)
	if err != nil {
		return false, err
	}

	appRules, err := s.permRepo.ListAppRules(ctx, app.ID)
	if err != nil {
		return false, fmt.Errorf("加载权限规则失败: %w", err)
	}
	recordRules, err := s.permRepo.ListRecordRules(ctx, app.ID)
	if err != nil {
		return false, fmt.Errorf("加载记录级权限规则失败: %w", err)
	}

	return engine.AuthorizeRecord(id, op, appRules, recordRules, doc, app.RecordRuleDefaultDeny), nil
}

// validateTarget 目标类型与目标ID的组合校验：target_id 仅 everyone 时可空
func validateTarget(targetType string, targetID *string) error {
	switch targetType {
	case entity.TargetEveryone:
		return nil
	case entity.TargetUser, entity.TargetRole, entity.TargetOrg:
		if targetID == nil || *targetID == "" {
			return fmt.Errorf("%w: target_type=%s 必须指定 target_id", engine.ErrStructural, targetType)
		}
		return nil
	}
	return fmt.Errorf("%w: 未知的 target_type %s", engine.ErrStructural, targetType)
}

// CreateAppRule 创建应用级权限规则
func (s *PermissionService) CreateAppRule(ctx context.Context, appCode string, rule *entity.AppPermissionRule) error {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return engine.ErrNotFound
	}
	if err := validateTarget(rule.TargetType, rule.TargetID); err != nil {
		return err
	}

	rule.ID = uuid.New().String()
	rule.AppID = app.ID
	rule.IsActive = true
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()
	return s.permRepo.CreateAppRule(ctx, rule)
}

// CreateRecordRule 创建记录级权限规则。
// 条件引用的字段必须存在于应用字段定义中。
func (s *PermissionService) CreateRecordRule(ctx context.Context, appCode string, rule *entity.RecordPermissionRule) error {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return engine.ErrNotFound
	}
	if rule.TargetField == "" {
		if err := validateTarget(rule.TargetType, rule.TargetID); err != nil {
			return err
		}
	}

	fields, err := s.appRepo.ListFields(ctx, app.ID, false)
	if err != nil {
		return fmt.Errorf("加载字段定义失败: %w", err)
	}
	if err := engine.CheckConditionFields(rule.Condition, fields); err != nil {
		return err
	}
	if rule.TargetField != "" && !fieldExists(fields, rule.TargetField) {
		return fmt.Errorf("%w: target_field 引用了不存在的字段 %s", engine.ErrStructural, rule.TargetField)
	}

	rule.ID = uuid.New().String()
	rule.AppID = app.ID
	rule.IsActive = true
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()
	return s.permRepo.CreateRecordRule(ctx, rule)
}

// ListAppRules 获取应用级权限规则
func (s *PermissionService) ListAppRules(ctx context.Context, appCode string) ([]entity.AppPermissionRule, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	return s.permRepo.ListAppRules(ctx, app.ID)
}

// ListRecordRules 获取记录级权限规则
func (s *PermissionService) ListRecordRules(ctx context.Context, appCode string) ([]entity.RecordPermissionRule, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}
	return s.permRepo.ListRecordRules(ctx, app.ID)
}

func fieldExists(fields []entity.FieldDefinition, code string) bool {
	for _, f := range fields {
		if f.Code == code {
			return true
		}
	}
	return false
}
