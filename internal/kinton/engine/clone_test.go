package engine

import (
	"testing"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSnapshotUsesPositions(t *testing.T) {
	app := &entity.Application{
		ID: "app1", Code: "orders", Kind: entity.AppKindCustom,
		Names: entity.JSONB{"ja": "受注管理"},
	}
	fields := []entity.FieldDefinition{
		{Code: "title", Label: "件名", Type: entity.FieldTypeText, Required: true},
	}
	def := &entity.ProcessDefinition{
		ID: "def1", AppID: "app1", Enabled: true,
		Statuses: []entity.ProcessStatus{
			{ID: "s1", Name: "Draft", IsInitial: true},
			{ID: "s2", Name: "Review"},
			{ID: "s3", Name: "Done", IsFinal: true},
		},
		Actions: []entity.ProcessAction{
			{ID: "a1", Name: "submit", FromStatusID: "s1", ToStatusID: "s2"},
			{ID: "a2", Name: "finish", FromStatusID: "s2", ToStatusID: "s3"},
			// 悬空动作不进快照
			{ID: "a3", Name: "broken", FromStatusID: "s2", ToStatusID: "s_gone"},
		},
	}

	snap := ExtractSnapshot(app, fields, nil, nil, def)

	assert.Equal(t, "受注管理", snap.Names["ja"])
	require.Len(t, snap.Fields, 1)
	require.Len(t, snap.Statuses, 3)
	require.Len(t, snap.Actions, 2)

	assert.Equal(t, 0, snap.Actions[0].FromPosition)
	assert.Equal(t, 1, snap.Actions[0].ToPosition)
	assert.Equal(t, 1, snap.Actions[1].FromPosition)
	assert.Equal(t, 2, snap.Actions[1].ToPosition)
}

func TestPlanInstantiateRemapsPositions(t *testing.T) {
	snap := &entity.TemplateSnapshot{
		Kind:  entity.AppKindCustom,
		Names: map[string]string{"ja": "受注管理"},
		Fields: []entity.TemplateField{
			{Code: "title", Label: "件名", Type: entity.FieldTypeText, Required: true},
		},
		AppRules: []entity.TemplateAppRule{
			{TargetType: entity.TargetEveryone, CanView: true},
		},
		ProcessEnabled: true,
		Statuses: []entity.TemplateStatus{
			{Name: "Draft", IsInitial: true},
			{Name: "Done", IsFinal: true},
		},
		Actions: []entity.TemplateAction{
			{Name: "finish", FromPosition: 0, ToPosition: 1},
			// 位置越界：跳过
			{Name: "broken", FromPosition: 0, ToPosition: 9},
		},
	}

	plan := PlanInstantiate(snap, "app_new", sequentialIDs("n"))

	require.Len(t, plan.Fields, 1)
	assert.Equal(t, "app_new", plan.Fields[0].AppID)
	assert.True(t, plan.Fields[0].IsActive)

	require.Len(t, plan.AppRules, 1)
	assert.True(t, plan.AppRules[0].CanView)

	require.NotNil(t, plan.Definition)
	assert.True(t, plan.Definition.Enabled)
	require.Len(t, plan.Statuses, 2)
	require.Len(t, plan.Actions, 1)

	// 动作的 from/to 解析到重新生成的状态ID
	assert.Equal(t, plan.Statuses[0].ID, plan.Actions[0].FromStatusID)
	assert.Equal(t, plan.Statuses[1].ID, plan.Actions[0].ToStatusID)
	assert.Equal(t, plan.Definition.ID, plan.Actions[0].DefinitionID)
}

func TestPlanInstantiateWithoutProcess(t *testing.T) {
	snap := &entity.TemplateSnapshot{
		Kind:   entity.AppKindCustom,
		Fields: []entity.TemplateField{{Code: "memo", Label: "メモ", Type: entity.FieldTypeTextArea}},
	}

	plan := PlanInstantiate(snap, "app_new", sequentialIDs("n"))
	assert.Nil(t, plan.Definition)
	assert.Empty(t, plan.Statuses)
	require.Len(t, plan.Fields, 1)
}
