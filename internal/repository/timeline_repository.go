package repository

import (
	"context"

	"github.com/qmsops/capa-gin/internal/model"
	"gorm.io/gorm"
)

// TimelineRepository 工作流时间线仓储接口
// 只追加: 没有更新和删除操作
type TimelineRepository interface {
	Append(ctx context.Context, entry *model.WorkflowTimelineModel) error
	FindByInstance(ctx context.Context, instanceID string) ([]*model.WorkflowTimelineModel, error)
}

// timelineRepository 工作流时间线仓储实现
type timelineRepository struct {
	db *gorm.DB
}

// NewTimelineRepository 创建工作流时间线仓储
func NewTimelineRepository(db *gorm.DB) TimelineRepository {
	return &timelineRepository{db: db}
}

// Append 追加时间线条目
func (r *timelineRepository) Append(ctx context.Context, entry *model.WorkflowTimelineModel) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByInstance 按时间顺序查找实例的时间线
func (r *timelineRepository) FindByInstance(ctx context.Context, instanceID string) ([]*model.WorkflowTimelineModel, error) {
	var entries []*model.WorkflowTimelineModel
	err := r.db.WithContext(ctx).
		Where("workflow_instance_id = ?", instanceID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
