package workflow_test

import (
	"testing"
	"time"

	"github.com/qmsops/capa-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
)

// TestParseDeadline 测试时长字符串解析
func TestParseDeadline(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"4h", 4 * time.Hour},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"3d", 72 * time.Hour},
		{"", workflow.DefaultDeadline},        // 为空回退默认值
		{"d", workflow.DefaultDeadline},       // 缺少数字
		{"abc", workflow.DefaultDeadline},     // 无法解析
		{"5x", workflow.DefaultDeadline},      // 未知单位
		{"0d", workflow.DefaultDeadline},      // 非正数
		{"-2h", workflow.DefaultDeadline},     // 负数
		{"10h", 10 * time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, workflow.ParseDeadline(tt.input), "input=%q", tt.input)
	}
}

// TestDefaultDeadlineIsThreeDays 默认期限为 3 天
func TestDefaultDeadlineIsThreeDays(t *testing.T) {
	assert.Equal(t, 72*time.Hour, workflow.DefaultDeadline)
}

// TestDeadlineAt 测试到期时间计算
func TestDeadlineAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(48*time.Hour), workflow.DeadlineAt(now, "2d"))
	assert.Equal(t, now.Add(72*time.Hour), workflow.DeadlineAt(now, ""))
}
