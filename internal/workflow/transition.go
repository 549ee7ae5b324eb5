package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValidateTransition 校验当前步骤下的动作是否存在对应流转边
// 不存在时返回 ValidationError,调用方不得改变任何状态
func ValidateTransition(currentStepID, action string, transitions []Transition) (*Transition, error) {
	for i := range transitions {
		if transitions[i].From == currentStepID && transitions[i].Action == action {
			return &transitions[i], nil
		}
	}
	return nil, ErrValidation("invalid action %q for step %q", action, currentStepID)
}

// DetermineNextStep 计算下一步骤
// 以匹配流转边的静态目标为起点,再按声明顺序评估当前步骤上的条件,
// 首个命中的条件覆盖目标。仅在 ValidateTransition 成功后调用;
// 若流转边不存在则返回当前步骤(防御性兜底,正常流程不可达)
func DetermineNextStep(currentStepID, action string, transitions []Transition, conditions []Condition, metadata map[string]interface{}) string {
	next := currentStepID
	matched := false
	for i := range transitions {
		if transitions[i].From == currentStepID && transitions[i].Action == action {
			next = transitions[i].To
			matched = true
			break
		}
	}
	if !matched {
		return currentStepID
	}

	for i := range conditions {
		c := &conditions[i]
		if c.StepID != currentStepID {
			continue
		}
		if EvaluateCondition(c, metadata) {
			return c.NextStep
		}
	}

	return next
}

// EvaluateCondition 评估单条条件路由规则
// 元数据中缺失的字段视为不命中
func EvaluateCondition(c *Condition, metadata map[string]interface{}) bool {
	actual, ok := metadata[c.Field]
	if !ok {
		return false
	}

	switch c.Operator {
	case "=":
		return compareEqual(actual, c.Value)
	case "!=":
		return !compareEqual(actual, c.Value)
	case ">", "<", ">=", "<=":
		a, aok := toFloat(actual)
		b, bok := toFloat(c.Value)
		if !aok || !bok {
			return false
		}
		switch c.Operator {
		case ">":
			return a > b
		case "<":
			return a < b
		case ">=":
			return a >= b
		default:
			return a <= b
		}
	case "in":
		return containsValue(c.Value, actual)
	case "not_in":
		return !containsValue(c.Value, actual)
	default:
		return false
	}
}

// validOperator 判断操作符是否合法
func validOperator(op string) bool {
	switch op {
	case "=", "!=", ">", "<", ">=", "<=", "in", "not_in":
		return true
	}
	return false
}

// compareEqual 比较两个元数据值
// 数值按浮点比较(JSON 反序列化后数字均为 float64),其余按字符串比较
func compareEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// containsValue 判断列表值是否包含目标值
// 列表可以是 JSON 数组,也可以是逗号分隔的字符串
func containsValue(list, target interface{}) bool {
	switch v := list.(type) {
	case []interface{}:
		for _, item := range v {
			if compareEqual(target, item) {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if compareEqual(target, item) {
				return true
			}
		}
	case string:
		for _, item := range strings.Split(v, ",") {
			if compareEqual(target, strings.TrimSpace(item)) {
				return true
			}
		}
	}
	return false
}

// toFloat 尝试将元数据值转换为浮点数
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
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
