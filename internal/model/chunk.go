// Package model 定义了检索与问答链路使用的数据结构。
package model

// Confidence 是答案质量的粗粒度启发式标签，不是校准过的概率。
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ExtractedFields 是从文档分块中抽取出的财务/法务属性。
// 在采集边界一次性解码（新 schema 为离散列，旧 schema 为 JSON blob），
// 下游不再做逐字段猜测。
type ExtractedFields struct {
	InvestmentAmount    float64 `json:"investmentAmount"`
	PreMoneyValuation   float64 `json:"preMoneyValuation"`
	PostMoneyValuation  float64 `json:"postMoneyValuation"`
	FairValue           float64 `json:"fairValue"`
	OwnershipPercentage float64 `json:"ownershipPercentage"`
}

// DocumentChunk 是归一化后的检索单元。
// 不同版本的 Weaviate collection 字段名各异，统一在 pkg/weaviate 的
// 采集适配器中映射到该结构；Score 恒存在（缺省为 0）。
// 每次检索临时构造，本系统不持久化分块（持久化归 Weaviate）。
type DocumentChunk struct {
	ID                   string          `json:"id"`
	Title                string          `json:"title"`
	CompanyName          string          `json:"company"`
	DocumentType         string          `json:"documentType"`
	SectionType          string          `json:"sectionType,omitempty"`
	Industry             string          `json:"industry,omitempty"`
	FilePath             string          `json:"filePath,omitempty"`
	Content              string          `json:"content"`
	Snippet              string          `json:"snippet"`
	Score                float64         `json:"score"`
	ExtractionConfidence float64         `json:"extractionConfidence"`
	Extracted            ExtractedFields `json:"extractedFields"`
	HasInvestmentAmount  bool            `json:"hasInvestmentAmount"`
	HasValuation         bool            `json:"hasValuation"`
	HasOwnership         bool            `json:"hasOwnership"`
	HasFairValue         bool            `json:"hasFairValue"`
}

// CompanyGroup 是同一公司名下所有命中分块的聚合。
// 每次检索重新计算，跨请求不缓存；Documents 恒非空。
type CompanyGroup struct {
	Company               string          `json:"company"`
	Industry              string          `json:"industry,omitempty"`
	Documents             []DocumentChunk `json:"documents"`
	TotalScore            float64         `json:"totalScore"`
	AverageScore          float64         `json:"averageScore"`
	AverageConfidence     float64         `json:"averageConfidence"`
	HasInvestmentAmount   bool            `json:"hasInvestmentAmount"`
	HasValuation          bool            `json:"hasValuation"`
	HasOwnership          bool            `json:"hasOwnership"`
	HasFairValue          bool            `json:"hasFairValue"`
	TotalInvestmentAmount float64         `json:"totalInvestmentAmount"`
	TotalValuation        float64         `json:"totalValuation"`
	AverageOwnership      float64         `json:"averageOwnership"`
}

// AnswerResult 是答案合成器的输出。UI 始终能拿到一个可渲染对象：
// 生成失败时降级为 low 置信度的兜底文案，而非向上抛错。
type AnswerResult struct {
	Answer     string     `json:"answer"`
	Confidence Confidence `json:"confidence"`
	Sources    []string   `json:"sources"`
}

// SearchFilters 是结构化检索条件，AND 组合。
// 数值条件用指针区分"未提供"与"零值"。
type SearchFilters struct {
	Company             string   `json:"company,omitempty"`
	DocumentType        string   `json:"documentType,omitempty"`
	Industry            string   `json:"industry,omitempty"`
	MinInvestmentAmount *float64 `json:"minInvestmentAmount,omitempty"`
	MaxInvestmentAmount *float64 `json:"maxInvestmentAmount,omitempty"`
	MinValuation        *float64 `json:"minValuation,omitempty"`
	MaxValuation        *float64 `json:"maxValuation,omitempty"`
	MinOwnership        *float64 `json:"minOwnership,omitempty"`
	MaxOwnership        *float64 `json:"maxOwnership,omitempty"`
	MinConfidence       *float64 `json:"minConfidence,omitempty"`
	HasInvestmentAmount bool     `json:"hasInvestmentAmount,omitempty"`
	HasValuation        bool     `json:"hasValuation,omitempty"`
}

// IsEmpty 判断是否没有任何生效的过滤条件。
func (f *SearchFilters) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.Company == "" && f.DocumentType == "" && f.Industry == "" &&
		f.MinInvestmentAmount == nil && f.MaxInvestmentAmount == nil &&
		f.MinValuation == nil && f.MaxValuation == nil &&
		f.MinOwnership == nil && f.MaxOwnership == nil &&
		f.MinConfidence == nil &&
		!f.HasInvestmentAmount && !f.HasValuation
}

// SearchRequest 是搜索接口的请求体。
type SearchRequest struct {
	Query      string         `json:"query"`
	Filters    *SearchFilters `json:"filters,omitempty"`
	SearchType string         `json:"searchType,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
}

// SearchMetadata 是响应里的聚合统计。
type SearchMetadata struct {
	HasStructuredData             bool    `json:"hasStructuredData"`
	AverageConfidence             float64 `json:"averageConfidence"`
	CompaniesWithInvestmentAmount int     `json:"companiesWithInvestmentAmount"`
	CompaniesWithValuation        int     `json:"companiesWithValuation"`
	CompaniesWithOwnership        int     `json:"companiesWithOwnership"`
	AverageInvestmentAmount       float64 `json:"averageInvestmentAmount"`
	AverageValuation              float64 `json:"averageValuation"`
}

// SearchResponse 是搜索接口的成功响应体。
type SearchResponse struct {
	Success       bool            `json:"success"`
	Query         string          `json:"query"`
	EnhancedQuery string          `json:"enhancedQuery"`
	Results       []DocumentChunk `json:"results"`
	CompanyGroups []CompanyGroup  `json:"companyGroups"`
	AIAnswer      string          `json:"aiAnswer"`
	Confidence    Confidence      `json:"confidence"`
	Sources       []string        `json:"sources"`
	TotalResults  int             `json:"totalResults"`
	SearchType    string          `json:"searchType"`
	Filters       *SearchFilters  `json:"filters,omitempty"`
	Metadata      SearchMetadata  `json:"metadata"`
}
