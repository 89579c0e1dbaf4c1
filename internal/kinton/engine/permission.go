package engine

import (
	"sort"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/entity"
)

// Identity 已解析的主体身份：用户 + 有效角色指派 + 组织归属。
// OrgChains 中每条链是一个成员组织自下而上到根的组织ID序列，
// 用于子组织包含判定：规则指向的组织出现在任一条链上即命中。
type Identity struct {
	UserID    string
	Roles     []entity.UserRole
	OrgChains [][]string
	Now       time.Time
}

// IsSystemAdmin 是否持有系统角色。持有者跳过所有规则判定，
// 这是权限引擎中唯一的短路放行分支。
func (id *Identity) IsSystemAdmin() bool {
	if id == nil {
		return false
	}
	for _, ur := range id.Roles {
		if !ur.EffectiveAt(id.Now) || ur.Role == nil {
			continue
		}
		if ur.Role.IsSystemRole || ur.Role.Code == entity.SystemAdminRoleCode {
			return true
		}
	}
	return false
}

// HasRole 是否持有有效的指定角色指派
func (id *Identity) HasRole(roleID string) bool {
	for _, ur := range id.Roles {
		if ur.RoleID == roleID && ur.EffectiveAt(id.Now) {
			return true
		}
	}
	return false
}

// InOrg 是否属于指定组织。includeSub 为真时，
// 目标组织是任一成员组织的祖先（含自身）也算命中。
func (id *Identity) InOrg(orgID string, includeSub bool) bool {
	for _, chain := range id.OrgChains {
		if len(chain) == 0 {
			continue
		}
		if !includeSub {
			if chain[0] == orgID {
				return true
			}
			continue
		}
		for _, ancestor := range chain {
			if ancestor == orgID {
				return true
			}
		}
	}
	return false
}

// matchTarget 规则目标匹配。everyone 恒真；无身份的主体不命中任何规则。
func matchTarget(id *Identity, targetType string, targetID *string, includeSubOrgs bool) bool {
	if targetType == entity.TargetEveryone {
		return id != nil
	}
	if id == nil || targetID == nil {
		return false
	}
	switch targetType {
	case entity.TargetUser:
		return id.UserID == *targetID
	case entity.TargetRole:
		return id.HasRole(*targetID)
	case entity.TargetOrg:
		return id.InOrg(*targetID, includeSubOrgs)
	}
	return false
}

// Authorize 应用级权限判定。
// 规则按优先级降序遍历，命中即返回（遍历顺序确定，但优先级不改变「或」的结果）。
// 无身份 → 拒绝；系统角色 → 放行；否则任一命中的活跃规则授予该能力即放行。
func Authorize(id *Identity, op entity.Capability, rules []entity.AppPermissionRule) bool {
	if id == nil || id.UserID == "" {
		return false
	}
	if id.IsSystemAdmin() {
		return true
	}

	sorted := make([]entity.AppPermissionRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	for i := range sorted {
		r := &sorted[i]
		if !r.IsActive {
			continue
		}
		if !matchTarget(id, r.TargetType, r.TargetID, r.IncludeSubOrgs) {
			continue
		}
		if r.Grants(op) {
			return true
		}
	}
	return false
}

// matchRecordRule 记录级规则匹配：条件先对文档求值，
// 再做目标匹配；TargetField 非空时从记录字段值解析被授权人。
func matchRecordRule(id *Identity, r *entity.RecordPermissionRule, doc map[string]interface{}) bool {
	if !r.IsActive {
		return false
	}
	if !EvalCondition(r.Condition, doc) {
		return false
	}
	if r.TargetField != "" {
		return fieldValueContainsUser(doc[r.TargetField], id.UserID)
	}
	return matchTarget(id, r.TargetType, r.TargetID, r.IncludeSubOrgs)
}

func fieldValueContainsUser(value interface{}, userID string) bool {
	if userID == "" {
		return false
	}
	if s, ok := value.(string); ok {
		return s == userID
	}
	if items, ok := toStringSlice(value); ok {
		return containsString(items, userID)
	}
	return false
}

// AuthorizeRecord 记录级权限判定。记录级规则只收窄应用级基线，不放宽：
// 应用级拒绝则直接拒绝。应用未配置记录级规则时沿用基线；
// 配置了但一条都未命中时按 defaultDeny 决定；有命中则须有规则授予该能力。
func AuthorizeRecord(id *Identity, op entity.Capability, appRules []entity.AppPermissionRule,
	recordRules []entity.RecordPermissionRule, doc map[string]interface{}, defaultDeny bool) bool {

	if !Authorize(id, op, appRules) {
		return false
	}
	if id.IsSystemAdmin() {
		return true
	}
	if len(recordRules) == 0 {
		return true
	}

	sorted := make([]entity.RecordPermissionRule, len(recordRules))
	copy(sorted, recordRules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	anyMatched := false
	for i := range sorted {
		r := &sorted[i]
		if !matchRecordRule(id, r, doc) {
			continue
		}
		anyMatched = true
		if r.Grants(op) {
			return true
		}
	}

	if !anyMatched {
		return !defaultDeny
	}
	return false
}
