package workflow

import (
	"strconv"
	"time"
)

// DefaultDeadline 步骤处理期限默认值
const DefaultDeadline = 72 * time.Hour

// ParseDeadline 解析时长字符串 <N>[h|d|w]
// h 为小时,d 为天,w 为周;为空或无法解析时返回默认期限 3 天
func ParseDeadline(s string) time.Duration {
	if len(s) < 2 {
		return DefaultDeadline
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return DefaultDeadline
	}

	switch s[len(s)-1] {
	case 'h':
		return time.Duration(n) * time.Hour
	case 'd':
		return time.Duration(n) * 24 * time.Hour
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour
	default:
		return DefaultDeadline
	}
}

// DeadlineAt 计算步骤的到期时间
func DeadlineAt(now time.Time, deadline string) time.Time {
	return now.Add(ParseDeadline(deadline))
}
