package engine

import (
	"github.com/katsuopg/kinton/internal/kinton/entity"
)

// ExtractSnapshot 把应用完整配置提取为可复用的模板快照。
// 流程动作改用状态在列表中的位置引用，实例化时ID会重新生成。
func ExtractSnapshot(app *entity.Application, fields []entity.FieldDefinition,
	appRules []entity.AppPermissionRule, recordRules []entity.RecordPermissionRule,
	def *entity.ProcessDefinition) *entity.TemplateSnapshot {

	snap := &entity.TemplateSnapshot{Kind: app.Kind, Names: map[string]string{}}
	for locale, v := range app.Names {
		if s, ok := v.(string); ok {
			snap.Names[locale] = s
		}
	}

	for _, f := range fields {
		snap.Fields = append(snap.Fields, entity.TemplateField{
			Code:      f.Code,
			Label:     f.Label,
			Type:      f.Type,
			Required:  f.Required,
			Options:   f.Options,
			SortOrder: f.SortOrder,
		})
	}

	for _, r := range appRules {
		snap.AppRules = append(snap.AppRules, entity.TemplateAppRule{
			TargetType:     r.TargetType,
			TargetID:       r.TargetID,
			CanView:        r.CanView,
			CanAdd:         r.CanAdd,
			CanEdit:        r.CanEdit,
			CanDelete:      r.CanDelete,
			CanManage:      r.CanManage,
			CanExport:      r.CanExport,
			CanImport:      r.CanImport,
			IncludeSubOrgs: r.IncludeSubOrgs,
			Priority:       r.Priority,
		})
	}

	for _, r := range recordRules {
		snap.RecordRules = append(snap.RecordRules, entity.TemplateRecordRule{
			TargetType:     r.TargetType,
			TargetID:       r.TargetID,
			TargetField:    r.TargetField,
			Condition:      r.Condition,
			CanView:        r.CanView,
			CanEdit:        r.CanEdit,
			CanDelete:      r.CanDelete,
			IncludeSubOrgs: r.IncludeSubOrgs,
			Priority:       r.Priority,
		})
	}

	if def == nil {
		return snap
	}
	snap.ProcessEnabled = def.Enabled

	// 状态位置表：状态ID → 在快照列表中的位置
	position := make(map[string]int, len(def.Statuses))
	for i, s := range def.Statuses {
		position[s.ID] = i
		snap.Statuses = append(snap.Statuses, entity.TemplateStatus{
			Name:         s.Name,
			IsInitial:    s.IsInitial,
			IsFinal:      s.IsFinal,
			AssigneeType: s.AssigneeType,
			SortOrder:    s.SortOrder,
		})
	}

	for _, a := range def.Actions {
		from, fromOK := position[a.FromStatusID]
		to, toOK := position[a.ToStatusID]
		if !fromOK || !toOK {
			// 引用已不存在状态的动作不进快照
			continue
		}
		ta := entity.TemplateAction{
			Name:            a.Name,
			FromPosition:    from,
			ToPosition:      to,
			ActionType:      a.ActionType,
			RequirementType: a.RequirementType,
			FilterCondition: a.FilterCondition,
			SortOrder:       a.SortOrder,
		}
		for _, e := range a.Executors {
			ta.Executors = append(ta.Executors, entity.TemplateExecutor{
				TargetType:     e.TargetType,
				TargetID:       e.TargetID,
				IncludeSubOrgs: e.IncludeSubOrgs,
			})
		}
		snap.Actions = append(snap.Actions, ta)
	}

	return snap
}

// InstantiatePlan 模板实例化的落库计划
type InstantiatePlan struct {
	Fields      []entity.FieldDefinition
	AppRules    []entity.AppPermissionRule
	RecordRules []entity.RecordPermissionRule
	Definition  *entity.ProcessDefinition
	Statuses    []entity.ProcessStatus
	Actions     []entity.ProcessAction
	Executors   []entity.ProcessActionExecutor
}

// PlanInstantiate 把模板快照展开为新应用的配置行。
// 状态按顺序重放并登记位置→新ID映射，动作再经该映射解析 from/to；
// 位置无法解析的动作跳过（与流程替换相同的尽力合并策略）。
func PlanInstantiate(snap *entity.TemplateSnapshot, appID string, newID func() string) *InstantiatePlan {
	plan := &InstantiatePlan{}

	for _, f := range snap.Fields {
		plan.Fields = append(plan.Fields, entity.FieldDefinition{
			ID:        newID(),
			AppID:     appID,
			Code:      f.Code,
			Label:     f.Label,
			Type:      f.Type,
			Required:  f.Required,
			Options:   f.Options,
			SortOrder: f.SortOrder,
			IsActive:  true,
		})
	}

	for _, r := range snap.AppRules {
		plan.AppRules = append(plan.AppRules, entity.AppPermissionRule{
			ID:             newID(),
			AppID:          appID,
			TargetType:     r.TargetType,
			TargetID:       r.TargetID,
			CanView:        r.CanView,
			CanAdd:         r.CanAdd,
			CanEdit:        r.CanEdit,
			CanDelete:      r.CanDelete,
			CanManage:      r.CanManage,
			CanExport:      r.CanExport,
			CanImport:      r.CanImport,
			IncludeSubOrgs: r.IncludeSubOrgs,
			Priority:       r.Priority,
			IsActive:       true,
		})
	}

	for _, r := range snap.RecordRules {
		plan.RecordRules = append(plan.RecordRules, entity.RecordPermissionRule{
			ID:             newID(),
			AppID:          appID,
			TargetType:     r.TargetType,
			TargetID:       r.TargetID,
			TargetField:    r.TargetField,
			Condition:      r.Condition,
			CanView:        r.CanView,
			CanEdit:        r.CanEdit,
			CanDelete:      r.CanDelete,
			IncludeSubOrgs: r.IncludeSubOrgs,
			Priority:       r.Priority,
			IsActive:       true,
		})
	}

	if len(snap.Statuses) == 0 {
		return plan
	}

	plan.Definition = &entity.ProcessDefinition{
		ID:      newID(),
		AppID:   appID,
		Enabled: snap.ProcessEnabled,
	}

	// 位置→新ID映射先建全，再解析动作的跨引用
	idByPosition := make(map[int]string, len(snap.Statuses))
	for i, s := range snap.Statuses {
		id := newID()
		idByPosition[i] = id
		plan.Statuses = append(plan.Statuses, entity.ProcessStatus{
			ID:           id,
			DefinitionID: plan.Definition.ID,
			Name:         s.Name,
			IsInitial:    s.IsInitial,
			IsFinal:      s.IsFinal,
			AssigneeType: s.AssigneeType,
			SortOrder:    s.SortOrder,
		})
	}

	for _, a := range snap.Actions {
		fromID, fromOK := idByPosition[a.FromPosition]
		toID, toOK := idByPosition[a.ToPosition]
		if !fromOK || !toOK {
			continue
		}
		action := entity.ProcessAction{
			ID:              newID(),
			DefinitionID:    plan.Definition.ID,
			Name:            a.Name,
			FromStatusID:    fromID,
			ToStatusID:      toID,
			ActionType:      a.ActionType,
			RequirementType: a.RequirementType,
			FilterCondition: a.FilterCondition,
			SortOrder:       a.SortOrder,
		}
		plan.Actions = append(plan.Actions, action)
		for _, e := range a.Executors {
			plan.Executors = append(plan.Executors, entity.ProcessActionExecutor{
				ID:             newID(),
				ActionID:       action.ID,
				TargetType:     e.TargetType,
				TargetID:       e.TargetID,
				IncludeSubOrgs: e.IncludeSubOrgs,
			})
		}
	}

	return plan
}
