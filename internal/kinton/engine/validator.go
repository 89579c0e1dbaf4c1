package engine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/katsuopg/kinton/internal/kinton/entity"
)

var (
	timePattern  = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)
	telPattern   = regexp.MustCompile(`^[0-9+()\- ]+$`)
)

// typeValidator 按字段类型校验已存在的值，返回错误消息列表
type typeValidator func(f *entity.FieldDefinition, value interface{}) []string

// 封闭的类型分发表。不在表中的输入类型视为配置错误，校验时跳过。
var typeValidators = map[entity.FieldType]typeValidator{
	entity.FieldTypeText:        validateText,
	entity.FieldTypeTextArea:    validateText,
	entity.FieldTypeRichText:    validateText,
	entity.FieldTypeNumber:      validateNumber,
	entity.FieldTypeDate:        validateDate,
	entity.FieldTypeTime:        validateTime,
	entity.FieldTypeDateTime:    validateDateTime,
	entity.FieldTypeLink:        validateLink,
	entity.FieldTypeDropdown:    validateSingleChoice,
	entity.FieldTypeRadio:       validateSingleChoice,
	entity.FieldTypeCheckbox:    validateMultiChoice,
	entity.FieldTypeMultiSelect: validateMultiChoice,
	entity.FieldTypeLookup:      validateText,
	entity.FieldTypeUserSelect:  validateEntitySelect,
	entity.FieldTypeOrgSelect:   validateEntitySelect,
	entity.FieldTypeGroupSelect: validateEntitySelect,
	entity.FieldTypeSubtable:    validateSubtable,
}

// Validate 用应用的字段定义校验一份记录文档。
// 停用字段和非输入类型跳过；必填字段缺失时记一条错误并跳过该字段的后续检查；
// 错误跨字段累积，整体通过当且仅当错误列表为空。
func Validate(fields []entity.FieldDefinition, doc map[string]interface{}) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []FieldError{}}

	for i := range fields {
		f := &fields[i]
		if !f.IsActive || !f.Type.IsInput() {
			continue
		}

		value, present := doc[f.Code]
		if !present || isEmpty(value) {
			if f.Required {
				result.Errors = append(result.Errors, FieldError{
					Field:   f.Code,
					Message: fmt.Sprintf("%s 为必填项", f.Label),
				})
			}
			continue
		}

		validate, ok := typeValidators[f.Type]
		if !ok {
			continue
		}
		for _, msg := range validate(f, value) {
			result.Errors = append(result.Errors, FieldError{Field: f.Code, Message: msg})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// isEmpty 缺失判定：nil、空字符串视为未填写
func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// toNumber 数值强制转换，接受字符串编码的数字
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func toStringSlice(v interface{}) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

func validateText(f *entity.FieldDefinition, value interface{}) []string {
	s, ok := value.(string)
	if !ok {
		return []string{fmt.Sprintf("%s 必须为文本", f.Label)}
	}

	var msgs []string
	if f.Options.MaxLength != nil && len([]rune(s)) > *f.Options.MaxLength {
		msgs = append(msgs, fmt.Sprintf("%s 长度不能超过 %d", f.Label, *f.Options.MaxLength))
	}
	if f.Options.Pattern != "" {
		// 无法编译的正则视为未配置
		if re, err := regexp.Compile(f.Options.Pattern); err == nil && !re.MatchString(s) {
			msg := f.Options.PatternMessage
			if msg == "" {
				msg = fmt.Sprintf("%s 格式不正确", f.Label)
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func validateNumber(f *entity.FieldDefinition, value interface{}) []string {
	n, ok := toNumber(value)
	if !ok {
		return []string{fmt.Sprintf("%s 必须为数值", f.Label)}
	}

	var msgs []string
	if f.Options.MinValue != nil && n < *f.Options.MinValue {
		msgs = append(msgs, fmt.Sprintf("%s 不能小于 %s", f.Label, formatNumber(*f.Options.MinValue)))
	}
	if f.Options.MaxValue != nil && n > *f.Options.MaxValue {
		msgs = append(msgs, fmt.Sprintf("%s 不能大于 %s", f.Label, formatNumber(*f.Options.MaxValue)))
	}
	return msgs
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func validateDate(f *entity.FieldDefinition, value interface{}) []string {
	s, ok := value.(string)
	if !ok {
		return []string{fmt.Sprintf("%s 必须为日期", f.Label)}
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return []string{fmt.Sprintf("%s 不是合法的日期", f.Label)}
	}
	return nil
}

func validateTime(f *entity.FieldDefinition, value interface{}) []string {
	s, ok := value.(string)
	if !ok || !timePattern.MatchString(s) {
		return []string{fmt.Sprintf("%s 不是合法的时间", f.Label)}
	}
	return nil
}

func validateDateTime(f *entity.FieldDefinition, value interface{}) []string {
	s, ok := value.(string)
	if !ok {
		return []string{fmt.Sprintf("%s 必须为日期时间", f.Label)}
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return nil
	}
	if _, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return nil
	}
	if _, err := time.Parse("2006-01-02 15:04", s); err == nil {
		return nil
	}
	return []string{fmt.Sprintf("%s 不是合法的日期时间", f.Label)}
}

func validateLink(f *entity.FieldDefinition, value interface{}) []string {
	s, ok := value.(string)
	if !ok {
		return []string{fmt.Sprintf("%s 必须为文本", f.Label)}
	}

	switch f.Options.LinkProtocol {
	case entity.LinkProtocolEmail:
		if !emailPattern.MatchString(s) {
			return []string{fmt.Sprintf("%s 不是合法的邮箱地址", f.Label)}
		}
	case entity.LinkProtocolTel:
		if !telPattern.MatchString(s) {
			return []string{fmt.Sprintf("%s 不是合法的电话号码", f.Label)}
		}
	default:
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return []string{fmt.Sprintf("%s 不是合法的URL", f.Label)}
		}
	}
	return nil
}

func validateSingleChoice(f *entity.FieldDefinition, value interface{}) []string {
	s, ok := value.(string)
	if !ok {
		return []string{fmt.Sprintf("%s 必须为文本", f.Label)}
	}
	if !containsString(f.Options.Choices, s) {
		return []string{fmt.Sprintf("%s 的值不在可选项中", f.Label)}
	}
	return nil
}

func validateMultiChoice(f *entity.FieldDefinition, value interface{}) []string {
	items, ok := toStringSlice(value)
	if !ok {
		return []string{fmt.Sprintf("%s 必须为数组", f.Label)}
	}
	var msgs []string
	for _, item := range items {
		if !containsString(f.Options.Choices, item) {
			msgs = append(msgs, fmt.Sprintf("%s 的值 %s 不在可选项中", f.Label, item))
		}
	}
	return msgs
}

func validateEntitySelect(f *entity.FieldDefinition, value interface{}) []string {
	if f.Options.AllowMultiple {
		if _, ok := toStringSlice(value); !ok {
			return []string{fmt.Sprintf("%s 必须为数组", f.Label)}
		}
		return nil
	}
	if _, ok := value.(string); !ok {
		return []string{fmt.Sprintf("%s 只能选择单个值", f.Label)}
	}
	return nil
}

// validateSubtable 表格字段：行数上下限 + 每行子字段的必填检查，
// 错误消息带1开始的行号。
func validateSubtable(f *entity.FieldDefinition, value interface{}) []string {
	rows, ok := value.([]interface{})
	if !ok {
		return []string{fmt.Sprintf("%s 必须为数组", f.Label)}
	}

	var msgs []string
	if f.Options.MinRows != nil && len(rows) < *f.Options.MinRows {
		msgs = append(msgs, fmt.Sprintf("%s 至少需要 %d 行", f.Label, *f.Options.MinRows))
	}
	if f.Options.MaxRows != nil && len(rows) > *f.Options.MaxRows {
		msgs = append(msgs, fmt.Sprintf("%s 最多允许 %d 行", f.Label, *f.Options.MaxRows))
	}

	for i, raw := range rows {
		row, ok := raw.(map[string]interface{})
		if !ok {
			msgs = append(msgs, fmt.Sprintf("%s 第%d行格式不正确", f.Label, i+1))
			continue
		}
		for _, sub := range f.Options.SubFields {
			if !sub.Required {
				continue
			}
			if isEmpty(row[sub.Code]) {
				msgs = append(msgs, fmt.Sprintf("%s 第%d行: %s 为必填项", f.Label, i+1, sub.Label))
			}
		}
	}
	return msgs
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
