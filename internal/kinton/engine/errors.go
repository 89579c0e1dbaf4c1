// Package engine 实现平台的三个核心求值引擎：
// 字段校验、权限判定、流程状态机。
// 所有函数都是纯函数，不做任何I/O，可被任意并发调用。
package engine

import "errors"

// 错误定义
var (
	// ErrNotFound 引用的应用/记录/状态/动作不存在或已停用
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied 操作未被授权。只返回允许/拒绝，不暴露命中了哪条规则。
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStaleTransition 动作的起始状态与记录当前状态不一致（并发竞争落败）
	ErrStaleTransition = errors.New("stale transition")
	// ErrCommentRequired 动作要求填写意见但未提供
	ErrCommentRequired = errors.New("comment required")
	// ErrStructural 流程图或配置结构非法，调用方不可恢复
	ErrStructural = errors.New("structural error")
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult 校验结果。错误会全部累积，不在字段间短路。
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}
