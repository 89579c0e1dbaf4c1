package engine

import (
	"testing"

	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int         { return &i }
func f64Ptr(f float64) *float64 { return &f }
func strPtr(s string) *string   { return &s }

func textField(code string, required bool) entity.FieldDefinition {
	return entity.FieldDefinition{
		ID: "f_" + code, AppID: "app1", Code: code, Label: code,
		Type: entity.FieldTypeText, Required: required, IsActive: true,
	}
}

func TestValidateRequired(t *testing.T) {
	fields := []entity.FieldDefinition{textField("title", true)}

	tests := []struct {
		name  string
		doc   map[string]interface{}
		valid bool
	}{
		{"missing", map[string]interface{}{}, false},
		{"nil", map[string]interface{}{"title": nil}, false},
		{"empty string", map[string]interface{}{"title": ""}, false},
		{"present", map[string]interface{}{"title": "hello"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(fields, tt.doc)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				require.Len(t, result.Errors, 1)
				assert.Equal(t, "title", result.Errors[0].Field)
			}
		})
	}
}

func TestValidateSkipsInactiveAndNonInput(t *testing.T) {
	fields := []entity.FieldDefinition{
		{ID: "f1", Code: "off", Label: "off", Type: entity.FieldTypeText, Required: true, IsActive: false},
		{ID: "f2", Code: "calc", Label: "calc", Type: entity.FieldTypeCalc, Required: true, IsActive: true},
		{ID: "f3", Code: "deco", Label: "deco", Type: entity.FieldTypeLabel, Required: true, IsActive: true},
		{ID: "f4", Code: "file", Label: "file", Type: entity.FieldTypeFile, Required: true, IsActive: true},
		{ID: "f5", Code: "ref", Label: "ref", Type: entity.FieldTypeReferenceTable, Required: true, IsActive: true},
	}

	result := Validate(fields, map[string]interface{}{})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateNumberBounds(t *testing.T) {
	fields := []entity.FieldDefinition{{
		ID: "f1", Code: "quantity", Label: "quantity", Type: entity.FieldTypeNumber,
		IsActive: true,
		Options:  entity.FieldOptions{MinValue: f64Ptr(1), MaxValue: f64Ptr(100)},
	}}

	// 字符串编码的数字也接受
	result := Validate(fields, map[string]interface{}{"quantity": "150"})
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "quantity", result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Message, "100")

	result = Validate(fields, map[string]interface{}{"quantity": "50"})
	assert.True(t, result.Valid)

	result = Validate(fields, map[string]interface{}{"quantity": 0.5})
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0].Message, "1")

	result = Validate(fields, map[string]interface{}{"quantity": "abc"})
	assert.False(t, result.Valid)
}

func TestValidateTextRules(t *testing.T) {
	fields := []entity.FieldDefinition{{
		ID: "f1", Code: "code", Label: "编码", Type: entity.FieldTypeText, IsActive: true,
		Options: entity.FieldOptions{
			MaxLength:      intPtr(5),
			Pattern:        "^[a-z_]+$",
			PatternMessage: "编码只能包含小写字母和下划线",
		},
	}}

	result := Validate(fields, map[string]interface{}{"code": "abcdef"})
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0].Message, "5")

	result = Validate(fields, map[string]interface{}{"code": "ABC"})
	require.False(t, result.Valid)
	assert.Equal(t, "编码只能包含小写字母和下划线", result.Errors[0].Message)

	result = Validate(fields, map[string]interface{}{"code": "ab_c"})
	assert.True(t, result.Valid)

	result = Validate(fields, map[string]interface{}{"code": 42})
	assert.False(t, result.Valid)
}

func TestValidateDateTimeFormats(t *testing.T) {
	fields := []entity.FieldDefinition{
		{ID: "f1", Code: "d", Label: "d", Type: entity.FieldTypeDate, IsActive: true},
		{ID: "f2", Code: "t", Label: "t", Type: entity.FieldTypeTime, IsActive: true},
		{ID: "f3", Code: "dt", Label: "dt", Type: entity.FieldTypeDateTime, IsActive: true},
	}

	result := Validate(fields, map[string]interface{}{
		"d":  "2024-06-15",
		"t":  "09:30",
		"dt": "2024-06-15T09:30:00Z",
	})
	assert.True(t, result.Valid)

	result = Validate(fields, map[string]interface{}{"t": "09:30:45"})
	assert.True(t, result.Valid)

	result = Validate(fields, map[string]interface{}{
		"d":  "2024-13-01",
		"t":  "25:00",
		"dt": "not a datetime",
	})
	assert.Len(t, result.Errors, 3)
}

func TestValidateLinkSubtypes(t *testing.T) {
	mk := func(proto string) []entity.FieldDefinition {
		return []entity.FieldDefinition{{
			ID: "f1", Code: "l", Label: "l", Type: entity.FieldTypeLink, IsActive: true,
			Options: entity.FieldOptions{LinkProtocol: proto},
		}}
	}

	tests := []struct {
		proto string
		value string
		valid bool
	}{
		{entity.LinkProtocolURL, "https://example.com/path", true},
		{entity.LinkProtocolURL, "not a url", false},
		{entity.LinkProtocolEmail, "user@example.com", true},
		{entity.LinkProtocolEmail, "no-at-sign", false},
		{entity.LinkProtocolTel, "+81 (3) 1234-5678", true},
		{entity.LinkProtocolTel, "call me", false},
	}
	for _, tt := range tests {
		t.Run(tt.proto+"/"+tt.value, func(t *testing.T) {
			result := Validate(mk(tt.proto), map[string]interface{}{"l": tt.value})
			assert.Equal(t, tt.valid, result.Valid)
		})
	}
}

func TestValidateChoices(t *testing.T) {
	fields := []entity.FieldDefinition{
		{ID: "f1", Code: "status", Label: "status", Type: entity.FieldTypeDropdown, IsActive: true,
			Options: entity.FieldOptions{Choices: []string{"open", "closed"}}},
		{ID: "f2", Code: "tags", Label: "tags", Type: entity.FieldTypeCheckbox, IsActive: true,
			Options: entity.FieldOptions{Choices: []string{"a", "b", "c"}}},
	}

	result := Validate(fields, map[string]interface{}{
		"status": "open",
		"tags":   []interface{}{"a", "c"},
	})
	assert.True(t, result.Valid)

	result = Validate(fields, map[string]interface{}{
		"status": "unknown",
		"tags":   []interface{}{"a", "x"},
	})
	assert.Len(t, result.Errors, 2)
}

func TestValidateEntitySelectArity(t *testing.T) {
	fields := []entity.FieldDefinition{
		{ID: "f1", Code: "owner", Label: "owner", Type: entity.FieldTypeUserSelect, IsActive: true},
		{ID: "f2", Code: "members", Label: "members", Type: entity.FieldTypeUserSelect, IsActive: true,
			Options: entity.FieldOptions{AllowMultiple: true}},
	}

	result := Validate(fields, map[string]interface{}{
		"owner":   "u1",
		"members": []interface{}{"u1", "u2"},
	})
	assert.True(t, result.Valid)

	// 单选给数组、多选给标量都不合法
	result = Validate(fields, map[string]interface{}{
		"owner":   []interface{}{"u1"},
		"members": "u1",
	})
	assert.Len(t, result.Errors, 2)
}

func TestValidateSubtable(t *testing.T) {
	fields := []entity.FieldDefinition{{
		ID: "f1", Code: "items", Label: "明细", Type: entity.FieldTypeSubtable, IsActive: true,
		Options: entity.FieldOptions{
			MinRows: intPtr(1),
			MaxRows: intPtr(3),
			SubFields: []entity.SubField{
				{Code: "name", Label: "品名", Type: entity.FieldTypeText, Required: true},
				{Code: "qty", Label: "数量", Type: entity.FieldTypeNumber, Required: false},
			},
		},
	}}

	result := Validate(fields, map[string]interface{}{"items": []interface{}{
		map[string]interface{}{"name": "螺丝", "qty": 10},
		map[string]interface{}{"qty": 5},
	}})
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "items", result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Message, "第2行")

	result = Validate(fields, map[string]interface{}{"items": []interface{}{}})
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0].Message, "至少需要 1 行")

	result = Validate(fields, map[string]interface{}{"items": "not an array"})
	assert.False(t, result.Valid)
}

func TestValidateAccumulatesAcrossFields(t *testing.T) {
	fields := []entity.FieldDefinition{
		textField("a", true),
		textField("b", true),
		{ID: "f3", Code: "n", Label: "n", Type: entity.FieldTypeNumber, IsActive: true,
			Options: entity.FieldOptions{MaxValue: f64Ptr(10)}},
	}

	result := Validate(fields, map[string]interface{}{"n": 99})
	assert.Len(t, result.Errors, 3)
}

// 校验是纯函数：同样的输入反复求值必须得到同样的错误集合
func TestValidateIdempotent(t *testing.T) {
	fields := []entity.FieldDefinition{
		textField("a", true),
		{ID: "f2", Code: "n", Label: "n", Type: entity.FieldTypeNumber, IsActive: true,
			Options: entity.FieldOptions{MinValue: f64Ptr(1)}},
	}
	doc := map[string]interface{}{"n": "0"}

	first := Validate(fields, doc)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Validate(fields, doc))
	}
}
