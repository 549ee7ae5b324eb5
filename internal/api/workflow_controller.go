package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qmsops/capa-gin/internal/service"
)

// WorkflowController 工作流控制器
type WorkflowController struct {
	workflowService service.WorkflowService
}

// NewWorkflowController 创建工作流控制器
func NewWorkflowController(workflowService service.WorkflowService) *WorkflowController {
	return &WorkflowController{
		workflowService: workflowService,
	}
}

// Start 启动工作流
// @Summary      启动工作流实例
// @Description  针对指定实体按已启用的定义启动工作流
// @Tags         工作流
// @Accept       json
// @Produce      json
// @Param        request body service.StartWorkflowRequest true "启动参数"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows [post]
// @Security     BearerAuth
func (c *WorkflowController) Start(ctx *gin.Context) {
	var req service.StartWorkflowRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	instance, err := c.workflowService.Start(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, instance)
}

// Transition 执行工作流动作
// @Summary      执行工作流动作
// @Description  对实例当前步骤执行 submit/approve/reject/complete 等动作
// @Tags         工作流
// @Accept       json
// @Produce      json
// @Param        id path string true "实例 ID"
// @Param        request body service.TransitionRequest true "动作参数"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id}/transition [post]
// @Security     BearerAuth
func (c *WorkflowController) Transition(ctx *gin.Context) {
	var req service.TransitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.workflowService.Transition(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, result)
}

// Veto 否决工作流
// @Summary      否决工作流实例
// @Description  持有否决角色的用户直接终止实例
// @Tags         工作流
// @Accept       json
// @Produce      json
// @Param        id path string true "实例 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id}/veto [post]
// @Security     BearerAuth
func (c *WorkflowController) Veto(ctx *gin.Context) {
	var body struct {
		Comment string `json:"comment"`
	}
	_ = ctx.ShouldBindJSON(&body)

	if err := c.workflowService.Veto(ctx.Request.Context(), ctx.Param("id"), body.Comment); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Cancel 取消工作流
// @Summary      取消工作流实例
// @Description  取消仍处于活动状态的实例
// @Tags         工作流
// @Accept       json
// @Produce      json
// @Param        id path string true "实例 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id}/cancel [post]
// @Security     BearerAuth
func (c *WorkflowController) Cancel(ctx *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = ctx.ShouldBindJSON(&body)

	if err := c.workflowService.Cancel(ctx.Request.Context(), ctx.Param("id"), body.Reason); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Escalate 手动升级指派
// @Summary      升级待处理指派
// @Description  将待处理指派升级给升级角色下负载最低的用户
// @Tags         工作流
// @Accept       json
// @Produce      json
// @Param        id path string true "指派 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /assignments/{id}/escalate [post]
// @Security     BearerAuth
func (c *WorkflowController) Escalate(ctx *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = ctx.ShouldBindJSON(&body)

	result, err := c.workflowService.ManualEscalate(ctx.Request.Context(), ctx.Param("id"), body.Reason)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, result)
}

// MyTasks 查询当前用户的待办
// @Summary      查询我的待办
// @Description  返回直接指派给当前用户或其角色的待处理指派
// @Tags         工作流
// @Produce      json
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Router       /workflows/my-tasks [get]
// @Security     BearerAuth
func (c *WorkflowController) MyTasks(ctx *gin.Context) {
	tasks, err := c.workflowService.MyTasks(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, tasks)
}

// Get 获取实例详情
// @Summary      获取工作流实例
// @Description  返回实例及其指派和时间线
// @Tags         工作流
// @Produce      json
// @Param        id path string true "实例 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [get]
// @Security     BearerAuth
func (c *WorkflowController) Get(ctx *gin.Context) {
	detail, err := c.workflowService.GetInstance(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, detail)
}

// Timeline 获取实例时间线
// @Summary      获取工作流时间线
// @Description  按时间顺序返回实例的全部时间线条目
// @Tags         工作流
// @Produce      json
// @Param        id path string true "实例 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id}/timeline [get]
// @Security     BearerAuth
func (c *WorkflowController) Timeline(ctx *gin.Context) {
	timeline, err := c.workflowService.Timeline(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, timeline)
}

// Overdue 查询超期指派
// @Summary      查询超期指派
// @Description  返回截止时间已过且仍待处理的指派
// @Tags         工作流
// @Produce      json
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Router       /assignments/overdue [get]
// @Security     BearerAuth
func (c *WorkflowController) Overdue(ctx *gin.Context) {
	assignments, err := c.workflowService.ListOverdue(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, assignments)
}

// CheckPermission 统一权限检查
// @Summary      权限检查
// @Description  按分层检查器判定当前用户能否对资源执行动作
// @Tags         权限
// @Accept       json
// @Produce      json
// @Param        request body service.CheckPermissionRequest true "检查参数"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /permissions/check [post]
// @Security     BearerAuth
func (c *WorkflowController) CheckPermission(ctx *gin.Context) {
	var req service.CheckPermissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	decision, err := c.workflowService.CheckPermission(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, decision)
}
