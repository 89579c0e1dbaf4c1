package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/katsuopg/kinton/internal/kinton/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 级联清除顺序的不变式：被引用的表永远排在引用它的表之后。
func TestPurgeOrderRespectsDependencies(t *testing.T) {
	order := PurgeOrder()
	pos := make(map[string]int, len(order))
	for i, table := range order {
		pos[table] = i
	}

	before := func(a, b string) {
		t.Helper()
		ia, ok := pos[a]
		require.True(t, ok, "missing table %s", a)
		ib, ok := pos[b]
		require.True(t, ok, "missing table %s", b)
		assert.Less(t, ia, ib, "%s must be purged before %s", a, b)
	}

	before("record_attachments", "records")
	before("record_comments", "records")
	before("process_action_logs", "records")
	before("record_process_states", "records")
	before("record_process_states", "process_statuses")
	before("process_action_executors", "process_actions")
	before("process_actions", "process_statuses")
	before("process_statuses", "process_definitions")
	before("process_definitions", "applications")
	before("records", "applications")
	before("field_definitions", "applications")
	before("app_permission_rules", "applications")
	before("record_permission_rules", "applications")
	before("app_templates", "applications")
	assert.Equal(t, "applications", order[len(order)-1])
}

func setupAppServiceTest(t *testing.T) (*gorm.DB, *AppService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	permSvc := NewPermissionService(repos.App, repos.Permission)
	return db, NewAppService(db, repos.App, permSvc, nil)
}

func seedFullApp(t *testing.T, db *gorm.DB, code string) *entity.Application {
	t.Helper()
	app := testutil.SeedApp(t, db, code,
		entity.FieldDefinition{Code: "title", Label: "标题", Type: entity.FieldTypeText, Required: true},
	)

	record := &entity.Record{
		ID: "rec_" + code, AppID: app.ID, RecordNumber: 1,
		Data: entity.JSONB{"title": "样本"}, CreatedBy: "seed",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(record).Error)
	require.NoError(t, db.Create(&entity.RecordComment{
		ID: "cmt_" + code, AppID: app.ID, RecordID: record.ID, UserID: "seed",
		Body: "评论", CreatedAt: time.Now(),
	}).Error)

	def := &entity.ProcessDefinition{
		ID: "def_" + code, AppID: app.ID, Enabled: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(def).Error)
	status := &entity.ProcessStatus{
		ID: "st_" + code, DefinitionID: def.ID, Name: "未処理", IsInitial: true,
	}
	require.NoError(t, db.Create(status).Error)
	action := &entity.ProcessAction{
		ID: "act_" + code, DefinitionID: def.ID, Name: "完了",
		FromStatusID: status.ID, ToStatusID: status.ID,
		ActionType: "transition", RequirementType: entity.RequirementNone,
	}
	require.NoError(t, db.Create(action).Error)
	require.NoError(t, db.Create(&entity.ProcessActionExecutor{
		ID: "exe_" + code, ActionID: action.ID, TargetType: entity.TargetEveryone,
	}).Error)
	require.NoError(t, db.Create(&entity.RecordProcessState{
		ID: "state_" + code, AppID: app.ID, RecordID: record.ID, StatusID: status.ID,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&entity.AppPermissionRule{
		ID: "apr_" + code, AppID: app.ID, TargetType: entity.TargetEveryone,
		CanView: true, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&entity.RecordPermissionRule{
		ID: "rpr_" + code, AppID: app.ID, TargetType: entity.TargetEveryone,
		CanView: true, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&entity.AppTemplate{
		ID: "tpl_" + code, Code: "tpl_" + code, Name: "模板 " + code,
		Snapshot: json.RawMessage(`{}`), SourceAppID: app.ID, CreatedBy: "seed",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)

	return app
}

func TestPurgeRemovesAllDependentRows(t *testing.T) {
	db, svc := setupAppServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")

	seedFullApp(t, db, "doomed")
	seedFullApp(t, db, "survivor")

	require.NoError(t, svc.SoftDelete(ctx, admin.ID, "doomed"))
	require.NoError(t, svc.Purge(ctx, admin.ID, "doomed"))

	counts := map[string]interface{}{
		"applications":            &entity.Application{},
		"field_definitions":       &entity.FieldDefinition{},
		"records":                 &entity.Record{},
		"record_comments":         &entity.RecordComment{},
		"record_process_states":   &entity.RecordProcessState{},
		"process_definitions":     &entity.ProcessDefinition{},
		"app_permission_rules":    &entity.AppPermissionRule{},
		"record_permission_rules": &entity.RecordPermissionRule{},
	}
	for table, model := range counts {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Equal(t, int64(1), n, "table %s should keep only survivor rows", table)
	}

	// 流程子表经由定义删除，只剩 survivor 一侧的行
	var statusCount, actionCount, executorCount int64
	db.Model(&entity.ProcessStatus{}).Count(&statusCount)
	db.Model(&entity.ProcessAction{}).Count(&actionCount)
	db.Model(&entity.ProcessActionExecutor{}).Count(&executorCount)
	assert.Equal(t, int64(1), statusCount)
	assert.Equal(t, int64(1), actionCount)
	assert.Equal(t, int64(1), executorCount)

	// 模板本身保留，但指向被清除应用的来源引用被清空
	var doomedTmpl, survivorTmpl entity.AppTemplate
	require.NoError(t, db.Where("code = ?", "tpl_doomed").First(&doomedTmpl).Error)
	assert.Empty(t, doomedTmpl.SourceAppID)
	require.NoError(t, db.Where("code = ?", "tpl_survivor").First(&survivorTmpl).Error)
	assert.Equal(t, "app_survivor", survivorTmpl.SourceAppID)
}

func TestPurgeRequiresSoftDeleteFirst(t *testing.T) {
	db, svc := setupAppServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	seedFullApp(t, db, "active_app")

	err := svc.Purge(ctx, admin.ID, "active_app")
	require.Error(t, err)

	var n int64
	db.Model(&entity.Application{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestPurgeRequiresSystemAdmin(t *testing.T) {
	db, svc := setupAppServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	plain := testutil.SeedTestUser(t, db, "user1", "普通用户", "user1@test.local")
	seedFullApp(t, db, "doomed")

	require.NoError(t, svc.SoftDelete(ctx, admin.ID, "doomed"))

	err := svc.Purge(ctx, plain.ID, "doomed")
	require.Error(t, err)

	var n int64
	db.Model(&entity.Record{}).Count(&n)
	assert.Equal(t, int64(1), n, "purge by non-admin must not delete anything")
}

func TestSoftDeleteHidesAppFromLookup(t *testing.T) {
	db, svc := setupAppServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	seedFullApp(t, db, "hidden")

	require.NoError(t, svc.SoftDelete(ctx, admin.ID, "hidden"))

	_, _, err := svc.Get(ctx, "hidden")
	require.Error(t, err)

	// 数据仍然保留
	var n int64
	db.Model(&entity.Record{}).Count(&n)
	assert.Equal(t, int64(1), n)
}
