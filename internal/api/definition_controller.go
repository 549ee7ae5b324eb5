package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qmsops/capa-gin/internal/repository"
	"github.com/qmsops/capa-gin/internal/service"
)

// DefinitionController 工作流定义控制器
type DefinitionController struct {
	definitionService service.DefinitionService
}

// NewDefinitionController 创建工作流定义控制器
func NewDefinitionController(definitionService service.DefinitionService) *DefinitionController {
	return &DefinitionController{
		definitionService: definitionService,
	}
}

// Create 创建工作流定义
// @Summary      创建工作流定义
// @Description  校验图结构后创建新的工作流定义
// @Tags         定义管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateDefinitionRequest true "定义信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /definitions [post]
// @Security     BearerAuth
func (c *DefinitionController) Create(ctx *gin.Context) {
	var req service.CreateDefinitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	def, err := c.definitionService.Create(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, def)
}

// Get 获取工作流定义
// @Summary      获取工作流定义
// @Tags         定义管理
// @Produce      json
// @Param        id path string true "定义 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /definitions/{id} [get]
// @Security     BearerAuth
func (c *DefinitionController) Get(ctx *gin.Context) {
	def, err := c.definitionService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, def)
}

// List 查询工作流定义列表
// @Summary      查询工作流定义列表
// @Description  按实体类型和启用状态过滤
// @Tags         定义管理
// @Produce      json
// @Param        entity_type query string false "实体类型"
// @Param        is_active query bool false "启用状态"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Router       /definitions [get]
// @Security     BearerAuth
func (c *DefinitionController) List(ctx *gin.Context) {
	filter := &repository.DefinitionFilter{}
	if entityType := ctx.Query("entity_type"); entityType != "" {
		filter.EntityType = &entityType
	}
	if active := ctx.Query("is_active"); active != "" {
		isActive := active == "true"
		filter.IsActive = &isActive
	}

	defs, err := c.definitionService.List(ctx.Request.Context(), filter)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, defs)
}

// SetActive 启用或停用工作流定义
// @Summary      启用或停用工作流定义
// @Tags         定义管理
// @Accept       json
// @Produce      json
// @Param        id path string true "定义 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /definitions/{id}/active [put]
// @Security     BearerAuth
func (c *DefinitionController) SetActive(ctx *gin.Context) {
	var body struct {
		IsActive bool `json:"is_active"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := c.definitionService.SetActive(ctx.Request.Context(), ctx.Param("id"), body.IsActive); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}
