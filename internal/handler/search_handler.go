// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strconv"
	"strings"
	"verona-ai-go/internal/model"
	"verona-ai-go/internal/service"
	"verona-ai-go/pkg/log"
	"verona-ai-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责处理检索问答相关的 API 请求。
type SearchHandler struct {
	pipelineService service.PipelineService
	searchService   service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(pipelineService service.PipelineService, searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		pipelineService: pipelineService,
		searchService:   searchService,
	}
}

// Search 处理完整的检索问答请求。
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Search query is required",
		})
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		log.Warnf("[SearchHandler] 搜索请求失败: query 为空")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Search query is required",
		})
		return
	}

	log.Infof("[SearchHandler] 收到搜索请求, query: '%s', type: %s", req.Query, req.SearchType)

	resp, err := h.pipelineService.Search(c.Request.Context(), req)
	if err != nil {
		log.Errorf("[SearchHandler] 搜索服务返回错误: %v", err)
		body := gin.H{
			"success": false,
			"error":   "Search failed",
		}
		// 错误细节只在非 release 模式下暴露
		if gin.Mode() != gin.ReleaseMode {
			body["details"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// QuickSearch 处理只做检索的 GET 请求。
func (h *SearchHandler) QuickSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Query parameter q is required",
		})
		return
	}

	results, err := h.searchService.QuickSearch(c.Request.Context(), query)
	if err != nil {
		log.Errorf("[SearchHandler] 快速检索失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Search failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   query,
		"results": results,
	})
}

// History 返回当前用户最近的搜索记录。
func (h *SearchHandler) History(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		if claims, exists := c.Get("claims"); exists {
			if tc, ok := claims.(*token.CustomClaims); ok {
				userID = tc.Username
			}
		}
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	logs, err := h.pipelineService.SearchHistory(userID, limit)
	if err != nil {
		log.Errorf("[SearchHandler] 查询搜索历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to query search history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": logs,
	})
}
