package service

import (
	"context"
	"testing"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/katsuopg/kinton/internal/kinton/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTemplateServiceTest(t *testing.T) (*gorm.DB, *TemplateService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	permSvc := NewPermissionService(repos.App, repos.Permission)
	svc := NewTemplateService(db, repos.App, repos.Permission, repos.Process, repos.Template, permSvc)
	return db, svc
}

func seedTemplateSourceApp(t *testing.T, db *gorm.DB) *entity.Application {
	t.Helper()
	app := testutil.SeedApp(t, db, "expense",
		entity.FieldDefinition{Code: "amount", Label: "金額", Type: entity.FieldTypeNumber, Required: true, SortOrder: 1},
		entity.FieldDefinition{Code: "reason", Label: "理由", Type: entity.FieldTypeTextArea, SortOrder: 2},
	)

	require.NoError(t, db.Create(&entity.AppPermissionRule{
		ID: "apr_expense", AppID: app.ID, TargetType: entity.TargetEveryone,
		CanView: true, CanAdd: true, IsActive: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)

	def := &entity.ProcessDefinition{
		ID: "def_expense", AppID: app.ID, Enabled: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(def).Error)
	statuses := []entity.ProcessStatus{
		{ID: "st_e1", DefinitionID: def.ID, Name: "申請中", IsInitial: true, SortOrder: 1},
		{ID: "st_e2", DefinitionID: def.ID, Name: "承認済", IsFinal: true, SortOrder: 2},
	}
	require.NoError(t, db.Create(&statuses).Error)
	require.NoError(t, db.Create(&entity.ProcessAction{
		ID: "act_e1", DefinitionID: def.ID, Name: "承認",
		FromStatusID: "st_e1", ToStatusID: "st_e2",
		ActionType: "transition", RequirementType: entity.RequirementComment,
	}).Error)
	return app
}

func TestTemplateExtractAndInstantiate(t *testing.T) {
	db, svc := setupTemplateServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	seedTemplateSourceApp(t, db)

	tmpl, err := svc.Extract(ctx, admin.ID, "expense", "expense_v1", "経費申請テンプレート", "標準の経費申請")
	require.NoError(t, err)
	require.NotEmpty(t, tmpl.Snapshot)

	app, err := svc.Instantiate(ctx, admin.ID, tmpl.ID, "expense_jp", map[string]string{"ja": "経費申請（日本）"})
	require.NoError(t, err)
	assert.Equal(t, "expense_jp", app.Code)
	assert.Equal(t, int64(1), app.NextRecordNumber)

	// 字段被复制，ID 与源应用不冲突
	var fields []entity.FieldDefinition
	require.NoError(t, db.Where("app_id = ?", app.ID).Order("sort_order").Find(&fields).Error)
	require.Len(t, fields, 2)
	assert.Equal(t, "amount", fields[0].Code)
	assert.NotEqual(t, "fld_expense_0", fields[0].ID)

	// 权限规则同样被复制
	var rules []entity.AppPermissionRule
	require.NoError(t, db.Where("app_id = ?", app.ID).Find(&rules).Error)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].CanAdd)

	// 流程动作的 from/to 解析为新的状态ID
	var def entity.ProcessDefinition
	require.NoError(t, db.Where("app_id = ?", app.ID).First(&def).Error)
	var newStatuses []entity.ProcessStatus
	require.NoError(t, db.Where("definition_id = ?", def.ID).Order("sort_order").Find(&newStatuses).Error)
	require.Len(t, newStatuses, 2)
	var newActions []entity.ProcessAction
	require.NoError(t, db.Where("definition_id = ?", def.ID).Find(&newActions).Error)
	require.Len(t, newActions, 1)
	assert.Equal(t, newStatuses[0].ID, newActions[0].FromStatusID)
	assert.Equal(t, newStatuses[1].ID, newActions[0].ToStatusID)
	assert.Equal(t, entity.RequirementComment, newActions[0].RequirementType)
}

func TestInstantiateMergesNames(t *testing.T) {
	db, svc := setupTemplateServiceTest(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, db, "admin1")
	seedTemplateSourceApp(t, db)

	tmpl, err := svc.Extract(ctx, admin.ID, "expense", "expense_v1", "経費申請テンプレート", "")
	require.NoError(t, err)

	app, err := svc.Instantiate(ctx, admin.ID, tmpl.ID, "expense_us", map[string]string{"en": "Expense US"})
	require.NoError(t, err)

	// 覆盖的语言用新值，其余沿用模板里的值
	assert.Equal(t, "Expense US", app.Name("en"))
	assert.Equal(t, "expense", app.Name("ja"))
}
