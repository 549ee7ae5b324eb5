package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 工作流启动数
	workflowsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflows_started_total",
			Help: "Total number of workflow instances started",
		},
		[]string{"entity_type"},
	)

	// 工作流流转数
	workflowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total number of workflow transitions",
		},
		[]string{"action"}, // submit, approve, reject, complete, veto, cancel
	)

	// 权限拒绝数
	permissionDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_denials_total",
			Help: "Total number of permission check denials",
		},
		[]string{"source"},
	)

	// 指派升级数
	escalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assignment_escalations_total",
			Help: "Total number of assignment escalations",
		},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 实例状态分布
	instancesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workflow_instances_by_status",
			Help: "Number of workflow instances by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(workflowsStartedTotal)
	prometheus.MustRegister(workflowTransitionsTotal)
	prometheus.MustRegister(permissionDenialsTotal)
	prometheus.MustRegister(escalationsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(instancesByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordWorkflowStarted 记录工作流启动
func RecordWorkflowStarted(entityType string) {
	workflowsStartedTotal.WithLabelValues(entityType).Inc()
}

// RecordTransition 记录工作流流转
func RecordTransition(action string) {
	workflowTransitionsTotal.WithLabelValues(action).Inc()
}

// RecordPermissionDenial 记录权限拒绝
func RecordPermissionDenial(source string) {
	permissionDenialsTotal.WithLabelValues(source).Inc()
}

// RecordEscalation 记录指派升级
func RecordEscalation() {
	escalationsTotal.Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateInstancesByStatus 更新实例状态分布指标
func UpdateInstancesByStatus(status string, count float64) {
	instancesByStatus.WithLabelValues(status).Set(count)
}
