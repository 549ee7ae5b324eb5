package service

import (
	"context"

	"github.com/qmsops/capa-gin/internal/repository"
	"github.com/qmsops/capa-gin/internal/workflow"
)

// workloadPicker 默认的负载选人实现
// 在持有目标角色的活跃用户中选择待处理指派最少者,
// 数量相同时按用户 ID 取最小以保证确定性
type workloadPicker struct {
	users       repository.UserRepository
	assignments repository.AssignmentRepository
}

// NewWorkloadPicker 创建默认负载选人器
func NewWorkloadPicker(users repository.UserRepository, assignments repository.AssignmentRepository) workflow.WorkloadPicker {
	return &workloadPicker{
		users:       users,
		assignments: assignments,
	}
}

// PickAssignee 按负载选择处理人
// 角色下没有活跃用户时返回未命中,由调用方退化为角色指派
func (p *workloadPicker) PickAssignee(ctx context.Context, role, strategy string) (string, bool, error) {
	candidates, err := p.users.FindActiveByRole(ctx, role)
	if err != nil {
		return "", false, err
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	best := ""
	var bestCount int64 = -1
	for _, candidate := range candidates {
		count, err := p.assignments.CountPendingByUser(ctx, candidate.ID)
		if err != nil {
			return "", false, err
		}
		if bestCount < 0 || count < bestCount || (count == bestCount && candidate.ID < best) {
			best = candidate.ID
			bestCount = count
		}
	}
	return best, true, nil
}
