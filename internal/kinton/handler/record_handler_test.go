package handler

import (
	"net/http"
	"testing"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/katsuopg/kinton/internal/kinton/service"
	"github.com/katsuopg/kinton/internal/kinton/testutil"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func setupRecordTest(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	permSvc := service.NewPermissionService(repos.App, repos.Permission)
	recordSvc := service.NewRecordService(db, repos.App, repos.Record, repos.Process, permSvc)
	handler := NewRecordHandler(recordSvc, nil, nil)

	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/apps/:code/records", handler.List)
	api.POST("/apps/:code/records", handler.Create)
	api.POST("/apps/:code/records/validate", handler.Validate)
	api.GET("/apps/:code/records/:number", handler.Get)

	return db, router
}

func seedSurveyApp(t *testing.T, db *gorm.DB) *entity.Application {
	t.Helper()
	maxLen := 20
	minVal := 0.0
	maxVal := 100.0
	return testutil.SeedApp(t, db, "survey",
		entity.FieldDefinition{
			Code: "title", Label: "タイトル", Type: entity.FieldTypeText,
			Required: true, Options: entity.FieldOptions{MaxLength: &maxLen},
		},
		entity.FieldDefinition{
			Code: "score", Label: "スコア", Type: entity.FieldTypeNumber,
			Options: entity.FieldOptions{MinValue: &minVal, MaxValue: &maxVal},
		},
	)
}

func TestRecordCreateValidationFailure(t *testing.T) {
	db, router := setupRecordTest(t)
	testutil.SeedAdmin(t, db, "admin1")
	seedSurveyApp(t, db)
	token := testutil.GenerateTestToken("admin1", "Admin", "admin1@test.local", []string{"admin"})

	// 必填字段缺失 + 分数超出范围
	w := testutil.DoRequest(router, "POST", "/api/v1/apps/survey/records",
		map[string]interface{}{
			"data": map[string]interface{}{"score": 150},
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	errs := data["errors"].([]interface{})
	if len(errs) != 2 {
		t.Errorf("Expected 2 field errors, got %d: %v", len(errs), errs)
	}

	// 校验失败不落库
	var count int64
	db.Model(&entity.Record{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no records persisted, got %d", count)
	}
}

func TestRecordCreateAndGet(t *testing.T) {
	db, router := setupRecordTest(t)
	testutil.SeedAdmin(t, db, "admin1")
	seedSurveyApp(t, db)
	token := testutil.GenerateTestToken("admin1", "Admin", "admin1@test.local", []string{"admin"})

	w := testutil.DoRequest(router, "POST", "/api/v1/apps/survey/records",
		map[string]interface{}{
			"data": map[string]interface{}{"title": "第一回调查", "score": 88},
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["record_number"].(float64) != 1 {
		t.Errorf("Expected record_number 1, got %v", data["record_number"])
	}

	// 第二条记录编号为2
	w2 := testutil.DoRequest(router, "POST", "/api/v1/apps/survey/records",
		map[string]interface{}{
			"data": map[string]interface{}{"title": "第二回调查"},
		}, token)
	if w2.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w2.Code, w2.Body.String())
	}
	resp2 := testutil.ParseResponse(w2)
	if resp2["data"].(map[string]interface{})["record_number"].(float64) != 2 {
		t.Errorf("Expected record_number 2")
	}

	// 按编号获取
	w3 := testutil.DoRequest(router, "GET", "/api/v1/apps/survey/records/1", nil, token)
	if w3.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w3.Code, w3.Body.String())
	}
	resp3 := testutil.ParseResponse(w3)
	recordData := resp3["data"].(map[string]interface{})["data"].(map[string]interface{})
	if recordData["title"] != "第一回调查" {
		t.Errorf("Expected title roundtrip, got %v", recordData["title"])
	}
}

func TestRecordCreatePermissionDenied(t *testing.T) {
	db, router := setupRecordTest(t)
	seedSurveyApp(t, db)
	testutil.SeedTestUser(t, db, "viewer1", "Viewer", "viewer1@test.local")
	token := testutil.GenerateTestToken("viewer1", "Viewer", "viewer1@test.local", nil)

	// 没有任何规则的应用，非管理员一律拒绝
	w := testutil.DoRequest(router, "POST", "/api/v1/apps/survey/records",
		map[string]interface{}{
			"data": map[string]interface{}{"title": "不许"},
		}, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRecordValidateDoesNotPersist(t *testing.T) {
	db, router := setupRecordTest(t)
	testutil.SeedAdmin(t, db, "admin1")
	seedSurveyApp(t, db)
	token := testutil.GenerateTestToken("admin1", "Admin", "admin1@test.local", []string{"admin"})

	w := testutil.DoRequest(router, "POST", "/api/v1/apps/survey/records/validate",
		map[string]interface{}{
			"data": map[string]interface{}{"title": "仅校验", "score": 10},
		}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["valid"] != true {
		t.Errorf("Expected valid document")
	}

	var count int64
	db.Model(&entity.Record{}).Count(&count)
	if count != 0 {
		t.Errorf("Validate must not persist records, got %d", count)
	}
}
