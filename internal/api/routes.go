package api

import (
	"github.com/gin-gonic/gin"
	"github.com/qmsops/capa-gin/internal/auth"
	"github.com/qmsops/capa-gin/internal/config"
	"github.com/qmsops/capa-gin/internal/service"
	"github.com/qmsops/capa-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config            *config.Config
	DB                *gorm.DB
	Logger            *logrus.Logger
	Validator         *auth.KeycloakTokenValidator
	Hub               *websocket.Hub
	WorkflowService   service.WorkflowService
	DefinitionService service.DefinitionService
	DelegationService service.DelegationService
}

// SetupRoutes 配置路由
func SetupRoutes(deps *RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(deps.Logger))
	if deps.Config != nil {
		router.Use(CORSMiddleware(deps.Config.CORS.AllowedOrigins))
	}

	// 健康检查
	healthController := NewHealthController(deps.DB)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 路由,按实例订阅时间线事件
	if deps.Hub != nil && deps.Validator != nil {
		router.GET("/ws/workflows/:id", websocket.WorkflowFeedHandler(deps.Hub, deps.Validator))
	}

	workflowController := NewWorkflowController(deps.WorkflowService)
	definitionController := NewDefinitionController(deps.DefinitionService)
	delegationController := NewDelegationController(deps.DelegationService)

	// API v1 路由组,全部要求认证
	v1 := router.Group("/api/v1")
	if deps.Validator != nil {
		v1.Use(auth.KeycloakAuthMiddleware(deps.Validator))
	}
	{
		// 工作流定义路由
		definitions := v1.Group("/definitions")
		{
			definitions.POST("", definitionController.Create)
			definitions.GET("", definitionController.List)
			definitions.GET("/:id", definitionController.Get)
			definitions.PUT("/:id/active", definitionController.SetActive)
		}

		// 工作流实例路由
		workflows := v1.Group("/workflows")
		{
			workflows.POST("", workflowController.Start)
			workflows.GET("/my-tasks", workflowController.MyTasks)
			workflows.GET("/:id", workflowController.Get)
			workflows.GET("/:id/timeline", workflowController.Timeline)
			workflows.POST("/:id/transition", workflowController.Transition)
			workflows.POST("/:id/veto", workflowController.Veto)
			workflows.POST("/:id/cancel", workflowController.Cancel)
		}

		// 指派路由
		assignments := v1.Group("/assignments")
		{
			assignments.GET("/overdue", workflowController.Overdue)
			assignments.POST("/:id/escalate", workflowController.Escalate)
		}

		// 委托路由
		delegations := v1.Group("/delegations")
		{
			delegations.POST("", delegationController.Create)
			delegations.GET("", delegationController.ListMine)
			delegations.PUT("/:id", delegationController.Update)
			delegations.DELETE("/:id", delegationController.Deactivate)
		}

		// 权限检查路由
		v1.POST("/permissions/check", workflowController.CheckPermission)
	}

	return router
}
