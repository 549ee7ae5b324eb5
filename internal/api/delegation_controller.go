package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qmsops/capa-gin/internal/service"
)

// DelegationController 委托控制器
type DelegationController struct {
	delegationService service.DelegationService
}

// NewDelegationController 创建委托控制器
func NewDelegationController(delegationService service.DelegationService) *DelegationController {
	return &DelegationController{
		delegationService: delegationService,
	}
}

// Create 创建委托
// @Summary      创建权限委托
// @Description  在时间窗口内将角色权限委托给其他用户
// @Tags         委托
// @Accept       json
// @Produce      json
// @Param        request body service.CreateDelegationRequest true "委托信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /delegations [post]
// @Security     BearerAuth
func (c *DelegationController) Create(ctx *gin.Context) {
	var req service.CreateDelegationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	delegation, err := c.delegationService.Create(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, delegation)
}

// Update 更新委托
// @Summary      更新权限委托
// @Description  更新委托的受托人或时间窗口,仅创建人或管理员可操作
// @Tags         委托
// @Accept       json
// @Produce      json
// @Param        id path string true "委托 ID"
// @Param        request body service.UpdateDelegationRequest true "更新字段"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /delegations/{id} [put]
// @Security     BearerAuth
func (c *DelegationController) Update(ctx *gin.Context) {
	var req service.UpdateDelegationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := c.delegationService.Update(ctx.Request.Context(), ctx.Param("id"), &req); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Deactivate 停用委托
// @Summary      停用权限委托
// @Description  停用后委托不再参与指派解析,记录保留
// @Tags         委托
// @Produce      json
// @Param        id path string true "委托 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /delegations/{id} [delete]
// @Security     BearerAuth
func (c *DelegationController) Deactivate(ctx *gin.Context) {
	if err := c.delegationService.Deactivate(ctx.Request.Context(), ctx.Param("id")); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// ListMine 查询我的委托
// @Summary      查询我创建的委托
// @Tags         委托
// @Produce      json
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Router       /delegations [get]
// @Security     BearerAuth
func (c *DelegationController) ListMine(ctx *gin.Context) {
	delegations, err := c.delegationService.ListMine(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, delegations)
}
