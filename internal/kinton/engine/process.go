package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/katsuopg/kinton/internal/kinton/entity"
)

// InitialStatus 返回定义的初始状态。
// 替换流程时已强制「恰好一个初始状态」，这里仍按结构错误兜底。
func InitialStatus(statuses []entity.ProcessStatus) (*entity.ProcessStatus, error) {
	var initial *entity.ProcessStatus
	for i := range statuses {
		if !statuses[i].IsInitial {
			continue
		}
		if initial != nil {
			return nil, fmt.Errorf("%w: 流程存在多个初始状态", ErrStructural)
		}
		initial = &statuses[i]
	}
	if initial == nil {
		return nil, fmt.Errorf("%w: 流程缺少初始状态", ErrStructural)
	}
	return initial, nil
}

// executorAllowed 动作执行人限制判定。没有执行人行的动作任何人可执行。
func executorAllowed(id *Identity, executors []entity.ProcessActionExecutor) bool {
	if len(executors) == 0 {
		return true
	}
	for i := range executors {
		e := &executors[i]
		if matchTarget(id, e.TargetType, e.TargetID, e.IncludeSubOrgs) {
			return true
		}
	}
	return false
}

// AvailableActions 计算记录在当前状态下、对该主体合法的动作列表：
// 起始状态等于当前状态、过滤条件对文档为真、主体通过执行人限制。
// 系统角色跳过执行人限制。结果按 SortOrder 排序。
func AvailableActions(actions []entity.ProcessAction, currentStatusID string,
	doc map[string]interface{}, id *Identity) []entity.ProcessAction {

	out := []entity.ProcessAction{}
	for i := range actions {
		a := actions[i]
		if a.FromStatusID != currentStatusID {
			continue
		}
		if !EvalCondition(a.FilterCondition, doc) {
			continue
		}
		if !id.IsSystemAdmin() && !executorAllowed(id, a.Executors) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// PlanTransition 校验动作可以从当前状态执行并返回目标状态ID。
// 起始状态不一致返回 ErrStaleTransition（并发迁移竞争时落败的一方会走到这里）；
// 要求意见的动作未提供意见返回 ErrCommentRequired。
// 任何错误都发生在状态变更之前。
func PlanTransition(action *entity.ProcessAction, currentStatusID, comment string) (string, error) {
	if action.FromStatusID != currentStatusID {
		return "", ErrStaleTransition
	}
	if action.RequirementType == entity.RequirementComment && strings.TrimSpace(comment) == "" {
		return "", ErrCommentRequired
	}
	return action.ToStatusID, nil
}

// StatusInput 流程替换提交的状态，TempID 为客户端临时标识
type StatusInput struct {
	TempID       string `json:"temp_id"`
	Name         string `json:"name"`
	IsInitial    bool   `json:"is_initial"`
	IsFinal      bool   `json:"is_final"`
	AssigneeType string `json:"assignee_type,omitempty"`
	SortOrder    int    `json:"sort_order"`
}

// ActionInput 流程替换提交的动作，from/to 引用状态的 TempID
type ActionInput struct {
	Name            string                `json:"name"`
	FromTempID      string                `json:"from_temp_id"`
	ToTempID        string                `json:"to_temp_id"`
	ActionType      string                `json:"action_type,omitempty"`
	RequirementType string                `json:"requirement_type,omitempty"`
	FilterCondition entity.ConditionGroup `json:"filter_condition"`
	Executors       []ExecutorInput       `json:"executors,omitempty"`
	SortOrder       int                   `json:"sort_order"`
}

// ExecutorInput 流程替换提交的执行人限制
type ExecutorInput struct {
	TargetType     string  `json:"target_type"`
	TargetID       *string `json:"target_id,omitempty"`
	IncludeSubOrgs bool    `json:"include_sub_orgs,omitempty"`
}

// ReplacePlan 流程替换的落库计划
type ReplacePlan struct {
	Statuses        []entity.ProcessStatus
	Actions         []entity.ProcessAction
	Executors       []entity.ProcessActionExecutor
	InitialStatusID string
}

// PlanReplace 把提交的状态/动作列表规划为新的流程定义。
// 临时ID重映射为新生成的ID；引用无法解析状态的动作直接丢弃（尽力合并策略）。
// 初始状态必须恰好一个，否则返回 ErrStructural。
func PlanReplace(definitionID string, statuses []StatusInput, actions []ActionInput,
	newID func() string) (*ReplacePlan, error) {

	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: 流程至少需要一个状态", ErrStructural)
	}
	initialCount := 0
	for _, s := range statuses {
		if s.IsInitial {
			initialCount++
		}
	}
	if initialCount != 1 {
		return nil, fmt.Errorf("%w: 流程必须恰好有一个初始状态，当前 %d 个", ErrStructural, initialCount)
	}

	plan := &ReplacePlan{}
	idMap := make(map[string]string, len(statuses))

	for _, in := range statuses {
		id := newID()
		if in.TempID != "" {
			idMap[in.TempID] = id
		}
		status := entity.ProcessStatus{
			ID:           id,
			DefinitionID: definitionID,
			Name:         in.Name,
			IsInitial:    in.IsInitial,
			IsFinal:      in.IsFinal,
			AssigneeType: in.AssigneeType,
			SortOrder:    in.SortOrder,
		}
		if in.IsInitial {
			plan.InitialStatusID = id
		}
		plan.Statuses = append(plan.Statuses, status)
	}

	for _, in := range actions {
		fromID, fromOK := idMap[in.FromTempID]
		toID, toOK := idMap[in.ToTempID]
		if !fromOK || !toOK {
			// 悬空引用的动作丢弃，不使整个替换失败
			continue
		}

		actionType := in.ActionType
		if actionType == "" {
			actionType = "transition"
		}
		requirement := in.RequirementType
		if requirement == "" {
			requirement = entity.RequirementNone
		}

		action := entity.ProcessAction{
			ID:              newID(),
			DefinitionID:    definitionID,
			Name:            in.Name,
			FromStatusID:    fromID,
			ToStatusID:      toID,
			ActionType:      actionType,
			RequirementType: requirement,
			FilterCondition: in.FilterCondition,
			SortOrder:       in.SortOrder,
		}
		plan.Actions = append(plan.Actions, action)

		for _, ex := range in.Executors {
			plan.Executors = append(plan.Executors, entity.ProcessActionExecutor{
				ID:             newID(),
				ActionID:       action.ID,
				TargetType:     ex.TargetType,
				TargetID:       ex.TargetID,
				IncludeSubOrgs: ex.IncludeSubOrgs,
			})
		}
	}

	return plan, nil
}
