package container

import (
	"fmt"
	"time"

	"github.com/qmsops/capa-gin/internal/auth"
	"github.com/qmsops/capa-gin/internal/config"
	"github.com/qmsops/capa-gin/internal/database"
	"github.com/qmsops/capa-gin/internal/repository"
	"github.com/qmsops/capa-gin/internal/service"
	"github.com/qmsops/capa-gin/internal/websocket"
	"github.com/qmsops/capa-gin/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、仓储、服务和 WebSocket Hub
type Container struct {
	db                *gorm.DB
	logger            *logrus.Logger
	keycloakValidator *auth.KeycloakTokenValidator
	hub               *websocket.Hub
	workflowService   service.WorkflowService
	definitionService service.DefinitionService
	delegationService service.DelegationService
	assignments       repository.AssignmentRepository
	escalator         service.Escalator
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = logrus.New()
	}

	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return build(cfg, db, logger)
}

// NewContainerWithDB 基于已有数据库连接创建容器,主要用于测试
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return build(cfg, db, logger)
}

// build 组装仓储、权限检查器与服务
func build(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*Container, error) {
	// 2. 初始化仓储
	definitions := repository.NewDefinitionRepository(db)
	instances := repository.NewInstanceRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	timeline := repository.NewTimelineRepository(db)
	delegations := repository.NewDelegationRepository(db)
	permissions := repository.NewPermissionRepository(db)
	users := repository.NewUserRepository(db)

	// 3. 初始化分层权限检查器
	checker := auth.NewChecker(permissions, assignments, cfg.Auth.AdminRole)

	// 4. 初始化指派解析器,委托替换和负载选人都挂在这里
	picker := service.NewWorkloadPicker(users, assignments)
	resolver := workflow.NewAssignmentResolver(delegations, picker)

	// 5. 初始化超期升级器
	escalator := service.NewDeadlineEscalator(db, picker, cfg.Workflow.EscalationRole)

	// 6. 初始化 WebSocket Hub 和时间线推送
	hub := websocket.NewHub()
	broadcaster := websocket.NewTimelineBroadcaster(hub, logger)

	// 7. 初始化服务
	workflowService := service.NewWorkflowService(
		db, definitions, instances, assignments, timeline,
		checker, resolver, escalator, broadcaster, logger,
	)
	definitionService := service.NewDefinitionService(definitions, checker)
	delegationService := service.NewDelegationService(delegations, users, checker)

	// 8. 初始化 Keycloak Token 验证器
	var keycloakValidator *auth.KeycloakTokenValidator
	if cfg.Keycloak.Issuer != "" {
		keycloakValidator = auth.NewKeycloakTokenValidator(cfg.Keycloak.Issuer)
	}

	return &Container{
		db:                db,
		logger:            logger,
		keycloakValidator: keycloakValidator,
		hub:               hub,
		workflowService:   workflowService,
		definitionService: definitionService,
		delegationService: delegationService,
		assignments:       assignments,
		escalator:         escalator,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// KeycloakValidator 获取 Keycloak Token 验证器
func (c *Container) KeycloakValidator() *auth.KeycloakTokenValidator {
	return c.keycloakValidator
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// WorkflowService 获取工作流编排服务
func (c *Container) WorkflowService() service.WorkflowService {
	return c.workflowService
}

// DefinitionService 获取工作流定义服务
func (c *Container) DefinitionService() service.DefinitionService {
	return c.definitionService
}

// DelegationService 获取委托服务
func (c *Container) DelegationService() service.DelegationService {
	return c.delegationService
}

// DeadlineScanner 创建按间隔运行的超期扫描器
func (c *Container) DeadlineScanner(interval time.Duration) *service.DeadlineScanner {
	return service.NewDeadlineScanner(c.assignments, c.escalator, interval, c.logger)
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	return nil
}
