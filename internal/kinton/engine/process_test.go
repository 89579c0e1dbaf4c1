package engine

import (
	"fmt"
	"testing"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 顺序可预期的ID生成器，方便断言重映射结果
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func draftApprovedRejected() ([]entity.ProcessStatus, []entity.ProcessAction) {
	statuses := []entity.ProcessStatus{
		{ID: "s_draft", DefinitionID: "def1", Name: "Draft", IsInitial: true},
		{ID: "s_approved", DefinitionID: "def1", Name: "Approved"},
		{ID: "s_rejected", DefinitionID: "def1", Name: "Rejected", IsFinal: true},
	}
	actions := []entity.ProcessAction{{
		ID: "a_approve", DefinitionID: "def1", Name: "承认",
		FromStatusID: "s_draft", ToStatusID: "s_approved",
		Executors: []entity.ProcessActionExecutor{
			{ID: "e1", ActionID: "a_approve", TargetType: entity.TargetRole, TargetID: strPtr("r_approver")},
		},
	}}
	return statuses, actions
}

func TestInitialStatus(t *testing.T) {
	statuses, _ := draftApprovedRejected()
	initial, err := InitialStatus(statuses)
	require.NoError(t, err)
	assert.Equal(t, "s_draft", initial.ID)

	_, err = InitialStatus([]entity.ProcessStatus{{ID: "s1"}})
	assert.ErrorIs(t, err, ErrStructural)

	_, err = InitialStatus([]entity.ProcessStatus{
		{ID: "s1", IsInitial: true}, {ID: "s2", IsInitial: true},
	})
	assert.ErrorIs(t, err, ErrStructural)
}

// 示例场景：Draft→Approved 限定 approver 角色。
// 没有该角色的人拿到空列表，有角色的人拿到该动作。
func TestAvailableActionsExecutorRestriction(t *testing.T) {
	_, actions := draftApprovedRejected()
	doc := map[string]interface{}{}

	without := plainIdentity("u1")
	assert.Empty(t, AvailableActions(actions, "s_draft", doc, without))

	with := roleIdentity("u1", "r_approver")
	got := AvailableActions(actions, "s_draft", doc, with)
	require.Len(t, got, 1)
	assert.Equal(t, "a_approve", got[0].ID)

	// 系统管理员跳过执行人限制
	admin := adminIdentity("u9")
	assert.Len(t, AvailableActions(actions, "s_draft", doc, admin), 1)
}

func TestAvailableActionsFromStatusAndFilter(t *testing.T) {
	actions := []entity.ProcessAction{
		{ID: "a1", FromStatusID: "s1", ToStatusID: "s2", SortOrder: 2},
		{ID: "a2", FromStatusID: "s1", ToStatusID: "s3", SortOrder: 1,
			FilterCondition: entity.ConditionGroup{Conditions: []entity.Condition{
				{Field: "amount", Operator: entity.OpGt, Value: 100},
			}}},
		{ID: "a3", FromStatusID: "s2", ToStatusID: "s3"},
	}
	id := plainIdentity("u1")

	// 当前状态过滤 + 条件过滤 + SortOrder 排序
	got := AvailableActions(actions, "s1", map[string]interface{}{"amount": 500}, id)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ID)
	assert.Equal(t, "a1", got[1].ID)

	got = AvailableActions(actions, "s1", map[string]interface{}{"amount": 50}, id)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
}

func TestPlanTransition(t *testing.T) {
	action := &entity.ProcessAction{
		ID: "a1", FromStatusID: "s_draft", ToStatusID: "s_approved",
		RequirementType: entity.RequirementNone,
	}

	to, err := PlanTransition(action, "s_draft", "")
	require.NoError(t, err)
	assert.Equal(t, "s_approved", to)

	// 记录已不在起始状态（并发竞争落败）
	_, err = PlanTransition(action, "s_approved", "")
	assert.ErrorIs(t, err, ErrStaleTransition)
}

func TestPlanTransitionCommentRequirement(t *testing.T) {
	action := &entity.ProcessAction{
		ID: "a1", FromStatusID: "s_draft", ToStatusID: "s_rejected",
		RequirementType: entity.RequirementComment,
	}

	_, err := PlanTransition(action, "s_draft", "")
	assert.ErrorIs(t, err, ErrCommentRequired)
	_, err = PlanTransition(action, "s_draft", "   ")
	assert.ErrorIs(t, err, ErrCommentRequired)

	to, err := PlanTransition(action, "s_draft", "差し戻します")
	require.NoError(t, err)
	assert.Equal(t, "s_rejected", to)
}

func TestPlanReplaceRemapsTempIDs(t *testing.T) {
	statuses := []StatusInput{
		{TempID: "tmp_a", Name: "Draft", IsInitial: true},
		{TempID: "tmp_b", Name: "Done", IsFinal: true},
	}
	actions := []ActionInput{
		{Name: "complete", FromTempID: "tmp_a", ToTempID: "tmp_b",
			Executors: []ExecutorInput{{TargetType: entity.TargetRole, TargetID: strPtr("r1")}}},
		// 悬空引用：丢弃而不是整体失败
		{Name: "dangling", FromTempID: "tmp_a", ToTempID: "tmp_missing"},
	}

	plan, err := PlanReplace("def1", statuses, actions, sequentialIDs("id"))
	require.NoError(t, err)

	require.Len(t, plan.Statuses, 2)
	require.Len(t, plan.Actions, 1)
	require.Len(t, plan.Executors, 1)

	assert.Equal(t, plan.Statuses[0].ID, plan.Actions[0].FromStatusID)
	assert.Equal(t, plan.Statuses[1].ID, plan.Actions[0].ToStatusID)
	assert.Equal(t, plan.Actions[0].ID, plan.Executors[0].ActionID)
	assert.Equal(t, plan.Statuses[0].ID, plan.InitialStatusID)
	assert.Equal(t, entity.RequirementNone, plan.Actions[0].RequirementType)
}

func TestPlanReplaceInitialStatusInvariant(t *testing.T) {
	none := []StatusInput{{TempID: "t1", Name: "A"}, {TempID: "t2", Name: "B"}}
	_, err := PlanReplace("def1", none, nil, sequentialIDs("id"))
	assert.ErrorIs(t, err, ErrStructural)

	two := []StatusInput{
		{TempID: "t1", Name: "A", IsInitial: true},
		{TempID: "t2", Name: "B", IsInitial: true},
	}
	_, err = PlanReplace("def1", two, nil, sequentialIDs("id"))
	assert.ErrorIs(t, err, ErrStructural)

	_, err = PlanReplace("def1", nil, nil, sequentialIDs("id"))
	assert.ErrorIs(t, err, ErrStructural)
}
