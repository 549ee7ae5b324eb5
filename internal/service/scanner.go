package service

import (
	"context"
	"time"

	"github.com/qmsops/capa-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// DeadlineScanner 超期扫描器
// 周期性扫描超期的待处理指派并逐个升级,升级失败不中断本轮扫描
type DeadlineScanner struct {
	assignments repository.AssignmentRepository
	escalator   Escalator
	interval    time.Duration
	logger      *logrus.Logger
}

// NewDeadlineScanner 创建超期扫描器
func NewDeadlineScanner(assignments repository.AssignmentRepository, escalator Escalator, interval time.Duration, logger *logrus.Logger) *DeadlineScanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &DeadlineScanner{
		assignments: assignments,
		escalator:   escalator,
		interval:    interval,
		logger:      logger,
	}
}

// Run 运行扫描循环,直到 ctx 取消
func (s *DeadlineScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ScanOnce(ctx)
		}
	}
}

// ScanOnce 执行一轮超期扫描
func (s *DeadlineScanner) ScanOnce(ctx context.Context) {
	overdue, err := s.assignments.FindOverdue(ctx, time.Now())
	if err != nil {
		s.logger.WithError(err).Error("failed to scan overdue assignments")
		return
	}

	for _, assignment := range overdue {
		escalatedTo, err := s.escalator.Escalate(ctx, assignment.ID, "deadline exceeded")
		if err != nil {
			s.logger.WithError(err).WithField("assignment_id", assignment.ID).
				Warn("failed to escalate overdue assignment")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"assignment_id": assignment.ID,
			"escalated_to":  escalatedTo,
		}).Info("overdue assignment escalated")
	}
}
