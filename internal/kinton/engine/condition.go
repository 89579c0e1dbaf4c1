package engine

import (
	"fmt"

	"github.com/katsuopg/kinton/internal/kinton/entity"
)

// EvalCondition 对记录文档求值条件组。空组恒为真。
// 未知运算符、缺失字段的比较结果为假（宁可少匹配，不多放行）。
func EvalCondition(group entity.ConditionGroup, doc map[string]interface{}) bool {
	if group.IsEmpty() {
		return true
	}

	or := group.Combinator == entity.CombinatorOr
	for _, cond := range group.Conditions {
		matched := evalOne(cond, doc)
		if or && matched {
			return true
		}
		if !or && !matched {
			return false
		}
	}
	return !or
}

func evalOne(cond entity.Condition, doc map[string]interface{}) bool {
	actual, ok := doc[cond.Field]
	if !ok {
		return false
	}

	expected := cond.Value
	if cond.ValueField != "" {
		expected, ok = doc[cond.ValueField]
		if !ok {
			return false
		}
	}

	switch cond.Operator {
	case entity.OpEq:
		return valueEqual(actual, expected)
	case entity.OpNe:
		return !valueEqual(actual, expected)
	case entity.OpIn:
		return valueInSet(actual, expected)
	case entity.OpNotIn:
		return !valueInSet(actual, expected)
	case entity.OpGt, entity.OpGte, entity.OpLt, entity.OpLte:
		return compareOrdered(cond.Operator, actual, expected)
	}
	return false
}

// valueEqual 双方都可转数值时按数值比较，否则按字符串表示比较
func valueEqual(a, b interface{}) bool {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an == bn
	}
	return stringify(a) == stringify(b)
}

func valueInSet(actual, set interface{}) bool {
	items, ok := set.([]interface{})
	if !ok {
		if ss, sok := toStringSlice(set); sok {
			for _, e := range ss {
				if valueEqual(actual, e) {
					return true
				}
			}
		}
		return false
	}
	for _, e := range items {
		if valueEqual(actual, e) {
			return true
		}
	}
	return false
}

func compareOrdered(op string, a, b interface{}) bool {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		switch op {
		case entity.OpGt:
			return an > bn
		case entity.OpGte:
			return an >= bn
		case entity.OpLt:
			return an < bn
		case entity.OpLte:
			return an <= bn
		}
		return false
	}

	as, bs := stringify(a), stringify(b)
	switch op {
	case entity.OpGt:
		return as > bs
	case entity.OpGte:
		return as >= bs
	case entity.OpLt:
		return as < bs
	case entity.OpLte:
		return as <= bs
	}
	return false
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// CheckConditionFields 校验条件组引用的字段代码都存在于应用字段定义中。
// 规则写入前调用，引用不存在的字段返回 ErrStructural。
func CheckConditionFields(group entity.ConditionGroup, fields []entity.FieldDefinition) error {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Code] = true
	}

	for _, cond := range group.Conditions {
		if !known[cond.Field] {
			return fmt.Errorf("%w: 条件引用了不存在的字段 %s", ErrStructural, cond.Field)
		}
		if cond.ValueField != "" && !known[cond.ValueField] {
			return fmt.Errorf("%w: 条件引用了不存在的字段 %s", ErrStructural, cond.ValueField)
		}
	}
	return nil
}
