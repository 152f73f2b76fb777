package handler

import (
	"fmt"
	"net/http"
	"verona-ai-go/internal/service"
	"verona-ai-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// CompanyHandler 负责处理公司名录抽取的 API 请求。
type CompanyHandler struct {
	companyService service.CompanyService
}

// NewCompanyHandler 创建一个新的 CompanyHandler 实例。
func NewCompanyHandler(companyService service.CompanyService) *CompanyHandler {
	return &CompanyHandler{companyService: companyService}
}

// Extract 从文档集合启发式抽取公司名录。
func (h *CompanyHandler) Extract(c *gin.Context) {
	companies, err := h.companyService.ExtractCompanies(c.Request.Context())
	if err != nil {
		log.Errorf("[CompanyHandler] 公司名录抽取失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Company extraction failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   fmt.Sprintf("Extracted %d companies from document collection", len(companies)),
		"companies": companies,
	})
}
