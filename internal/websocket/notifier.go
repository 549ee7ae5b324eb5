package websocket

import (
	"encoding/json"

	"github.com/qmsops/capa-gin/internal/model"
	"github.com/sirupsen/logrus"
)

// TimelineEvent 推送给客户端的时间线事件
type TimelineEvent struct {
	Type               string `json:"type"`
	WorkflowInstanceID string `json:"workflow_instance_id"`
	StepID             string `json:"step_id"`
	Action             string `json:"action"`
	PerformedBy        string `json:"performed_by,omitempty"`
	Comment            string `json:"comment,omitempty"`
	CreatedAt          string `json:"created_at"`
}

// TimelineBroadcaster 把时间线条目推送到订阅对应实例的 WebSocket 客户端
type TimelineBroadcaster struct {
	hub    *Hub
	logger *logrus.Logger
}

// NewTimelineBroadcaster 创建时间线推送器
func NewTimelineBroadcaster(hub *Hub, logger *logrus.Logger) *TimelineBroadcaster {
	return &TimelineBroadcaster{hub: hub, logger: logger}
}

// NotifyTimeline 推送时间线事件
// 序列化失败只记录日志,不影响工作流主流程
func (b *TimelineBroadcaster) NotifyTimeline(entry *model.WorkflowTimelineModel) {
	if entry == nil {
		return
	}

	event := TimelineEvent{
		Type:               "timeline",
		WorkflowInstanceID: entry.WorkflowInstanceID,
		StepID:             entry.StepID,
		Action:             entry.Action,
		PerformedBy:        entry.PerformedBy,
		Comment:            entry.Comment,
		CreatedAt:          entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		if b.logger != nil {
			b.logger.WithError(err).Warn("failed to marshal timeline event")
		}
		return
	}

	b.hub.BroadcastToInstance(entry.WorkflowInstanceID, payload)
}
