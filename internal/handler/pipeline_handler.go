package handler

import (
	"net/http"
	"verona-ai-go/internal/service"
	"verona-ai-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// PipelineHandler 负责处理优化管线状态与手动触发的 API 请求。
type PipelineHandler struct {
	pipelineService service.PipelineService
}

// NewPipelineHandler 创建一个新的 PipelineHandler 实例。
func NewPipelineHandler(pipelineService service.PipelineService) *PipelineHandler {
	return &PipelineHandler{pipelineService: pipelineService}
}

// Status 返回管线状态快照。
func (h *PipelineHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  h.pipelineService.Status(),
	})
}

// OptimizeRequest 定义了手动优化 API 的请求体结构。
type OptimizeRequest struct {
	Action   string `json:"action" binding:"required"`
	NewModel string `json:"newModel,omitempty"`
}

// Optimize 处理手动优化与模型变更请求。优化任务总是异步执行，
// 接口立即返回已受理。
func (h *PipelineHandler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Action is required",
		})
		return
	}

	switch req.Action {
	case "optimize":
		log.Info("[PipelineHandler] 收到手动优化请求")
		h.pipelineService.ManualOptimize()
	case "model-change":
		if req.NewModel == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "newModel is required for model-change",
			})
			return
		}
		log.Infof("[PipelineHandler] 收到模型变更请求: %s", req.NewModel)
		h.pipelineService.HandleModelChange(req.NewModel)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Unknown action",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Optimization triggered",
	})
}
