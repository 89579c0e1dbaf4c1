package service

import (
	"context"
	"testing"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/katsuopg/kinton/internal/kinton/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupProcessServiceTest(t *testing.T) (*gorm.DB, *ProcessService, *RecordService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	permSvc := NewPermissionService(repos.App, repos.Permission)
	processSvc := NewProcessService(db, repos.App, repos.Record, repos.Process, permSvc)
	recordSvc := NewRecordService(db, repos.App, repos.Record, repos.Process, permSvc)
	return db, processSvc, recordSvc
}

// 未処理 → 処理中 → 完了 的串行流程，承認动作必须填写意见。
func seedWorkflowApp(t *testing.T, db *gorm.DB) (*entity.Application, map[string]string) {
	t.Helper()
	app := testutil.SeedApp(t, db, "tickets",
		entity.FieldDefinition{Code: "subject", Label: "件名", Type: entity.FieldTypeText, Required: true},
	)

	def := &entity.ProcessDefinition{
		ID: "def_tickets", AppID: app.ID, Enabled: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(def).Error)

	ids := map[string]string{
		"open":    "st_open",
		"working": "st_working",
		"done":    "st_done",
		"start":   "act_start",
		"approve": "act_approve",
	}
	statuses := []entity.ProcessStatus{
		{ID: ids["open"], DefinitionID: def.ID, Name: "未処理", IsInitial: true, SortOrder: 1},
		{ID: ids["working"], DefinitionID: def.ID, Name: "処理中", SortOrder: 2},
		{ID: ids["done"], DefinitionID: def.ID, Name: "完了", IsFinal: true, SortOrder: 3},
	}
	require.NoError(t, db.Create(&statuses).Error)

	actions := []entity.ProcessAction{
		{ID: ids["start"], DefinitionID: def.ID, Name: "着手",
			FromStatusID: ids["open"], ToStatusID: ids["working"],
			ActionType: "transition", RequirementType: entity.RequirementNone, SortOrder: 1},
		{ID: ids["approve"], DefinitionID: def.ID, Name: "承認",
			FromStatusID: ids["working"], ToStatusID: ids["done"],
			ActionType: "transition", RequirementType: entity.RequirementComment, SortOrder: 2},
	}
	require.NoError(t, db.Create(&actions).Error)
	return app, ids
}

func TestApplyActionAdvancesStatus(t *testing.T) {
	db, processSvc, recordSvc := setupProcessServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	seedWorkflowApp(t, db)

	record, err := recordSvc.Create(ctx, admin.ID, "tickets", map[string]interface{}{"subject": "印刷机故障"})
	require.NoError(t, err)

	status, err := processSvc.ApplyAction(ctx, admin.ID, "tickets", record.RecordNumber, "act_start", "")
	require.NoError(t, err)
	assert.Equal(t, "処理中", status.Name)

	var state entity.RecordProcessState
	require.NoError(t, db.Where("record_id = ?", record.ID).First(&state).Error)
	assert.Equal(t, "st_working", state.StatusID)

	var logs []entity.ProcessActionLog
	require.NoError(t, db.Where("record_id = ?", record.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "st_open", logs[0].FromStatusID)
	assert.Equal(t, "st_working", logs[0].ToStatusID)
}

func TestApplyActionStaleTransition(t *testing.T) {
	db, processSvc, recordSvc := setupProcessServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	seedWorkflowApp(t, db)

	record, err := recordSvc.Create(ctx, admin.ID, "tickets", map[string]interface{}{"subject": "二重遷移"})
	require.NoError(t, err)

	_, err = processSvc.ApplyAction(ctx, admin.ID, "tickets", record.RecordNumber, "act_start", "")
	require.NoError(t, err)

	// 同一动作的重复执行因起点状态已变化按并发冲突处理
	_, err = processSvc.ApplyAction(ctx, admin.ID, "tickets", record.RecordNumber, "act_start", "")
	require.ErrorIs(t, err, engine.ErrStaleTransition)

	var state entity.RecordProcessState
	require.NoError(t, db.Where("record_id = ?", record.ID).First(&state).Error)
	assert.Equal(t, "st_working", state.StatusID, "failed transition must not change state")
}

func TestApplyActionCommentRequired(t *testing.T) {
	db, processSvc, recordSvc := setupProcessServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	seedWorkflowApp(t, db)

	record, err := recordSvc.Create(ctx, admin.ID, "tickets", map[string]interface{}{"subject": "承認待ち"})
	require.NoError(t, err)

	_, err = processSvc.ApplyAction(ctx, admin.ID, "tickets", record.RecordNumber, "act_start", "")
	require.NoError(t, err)

	_, err = processSvc.ApplyAction(ctx, admin.ID, "tickets", record.RecordNumber, "act_approve", "   ")
	require.ErrorIs(t, err, engine.ErrCommentRequired)

	status, err := processSvc.ApplyAction(ctx, admin.ID, "tickets", record.RecordNumber, "act_approve", "確認済み")
	require.NoError(t, err)
	assert.Equal(t, "完了", status.Name)
}

func TestReplaceDefinitionResetsRecordStates(t *testing.T) {
	db, processSvc, recordSvc := setupProcessServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	seedWorkflowApp(t, db)

	record, err := recordSvc.Create(ctx, admin.ID, "tickets", map[string]interface{}{"subject": "再設計前"})
	require.NoError(t, err)
	_, err = processSvc.ApplyAction(ctx, admin.ID, "tickets", record.RecordNumber, "act_start", "")
	require.NoError(t, err)

	def, err := processSvc.ReplaceDefinition(ctx, admin.ID, "tickets", true,
		[]engine.StatusInput{
			{TempID: "t1", Name: "受付", IsInitial: true, SortOrder: 1},
			{TempID: "t2", Name: "対応済", IsFinal: true, SortOrder: 2},
		},
		[]engine.ActionInput{
			{Name: "対応", FromTempID: "t1", ToTempID: "t2"},
			{Name: "宙に浮く", FromTempID: "t1", ToTempID: "missing"},
		})
	require.NoError(t, err)
	require.Len(t, def.Statuses, 2)
	assert.Len(t, def.Actions, 1, "dangling action must be dropped")

	// 既有记录重置到新的初始状态
	var state entity.RecordProcessState
	require.NoError(t, db.Where("record_id = ?", record.ID).First(&state).Error)
	var initial entity.ProcessStatus
	require.NoError(t, db.Where("definition_id = ? AND is_initial = true", def.ID).First(&initial).Error)
	assert.Equal(t, initial.ID, state.StatusID)
	assert.Equal(t, "受付", initial.Name)
}

func TestReplaceDefinitionInvalidFirstSubmitLeavesNothing(t *testing.T) {
	db, processSvc, _ := setupProcessServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	app := testutil.SeedApp(t, db, "fresh")

	// 该应用此前没有流程定义，首次提交就是非法结构
	_, err := processSvc.ReplaceDefinition(ctx, admin.ID, "fresh", true,
		[]engine.StatusInput{
			{TempID: "a", Name: "一", IsInitial: true},
			{TempID: "b", Name: "二", IsInitial: true},
		}, nil)
	require.ErrorIs(t, err, engine.ErrStructural)

	// 结构错误不能留下空定义行
	var n int64
	require.NoError(t, db.Model(&entity.ProcessDefinition{}).Where("app_id = ?", app.ID).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestReplaceDefinitionRejectsMultipleInitial(t *testing.T) {
	db, processSvc, _ := setupProcessServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	seedWorkflowApp(t, db)

	_, err := processSvc.ReplaceDefinition(ctx, admin.ID, "tickets", true,
		[]engine.StatusInput{
			{TempID: "a", Name: "一", IsInitial: true},
			{TempID: "b", Name: "二", IsInitial: true},
		}, nil)
	require.ErrorIs(t, err, engine.ErrStructural)
}
