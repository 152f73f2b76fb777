package service

import (
	"context"
	"fmt"
	"verona-ai-go/internal/config"
	"verona-ai-go/internal/model"
	"verona-ai-go/pkg/llm"
	"verona-ai-go/pkg/log"
	"verona-ai-go/pkg/weaviate"

	"golang.org/x/sync/errgroup"
)

// SearchService 接口定义了检索编排操作。
type SearchService interface {
	// Search 执行完整的检索问答链路：增强、检索、归一、分组、答案合成。
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error)
	// StreamSearch 执行检索后流式输出回答。
	StreamSearch(ctx context.Context, query string, writer llm.MessageWriter) error
	// QuickSearch 只做检索与归一化，不合成答案（GET 接口用）。
	QuickSearch(ctx context.Context, query string) ([]model.DocumentChunk, error)
}

type searchService struct {
	store         weaviate.Client
	answerService AnswerService
	cfg           config.WeaviateConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(store weaviate.Client, answerService AnswerService, cfg config.WeaviateConfig) SearchService {
	return &searchService{
		store:         store,
		answerService: answerService,
		cfg:           cfg,
	}
}

// Search 执行完整的检索问答链路。
func (s *searchService) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	searchType := req.SearchType
	if searchType == "" {
		searchType = "hybrid"
	}
	log.Infof("[SearchService] 开始执行检索, query: '%s', type: %s", req.Query, searchType)

	// 1. 确定性查询增强
	enhancedQuery := enhanceQuery(req.Query)
	if enhancedQuery != req.Query {
		log.Infof("[SearchService] 查询增强: '%s' -> '%s'", req.Query, enhancedQuery)
	}

	// 2. 按类型与过滤条件分发到向量库
	objs, err := s.dispatch(ctx, enhancedQuery, searchType, req.Filters)
	if err != nil {
		log.Errorf("[SearchService] 向量库检索失败: %v", err)
		return nil, fmt.Errorf("store search failed: %w", err)
	}

	// 3. 归一化到统一的分块结构
	chunks := normalizeChunks(s.cfg.Profile, objs)
	log.Infof("[SearchService] 检索命中 %d 条分块", len(chunks))

	// 4. 按公司聚合
	groups := groupByCompany(chunks)

	// 5. 投资类查询并发拉取结构化数据，失败只记日志不影响主链路
	var structured *model.StructuredData
	if isInvestmentQuery(req.Query) {
		structured = s.fetchStructuredData(ctx)
	}

	// 6. 答案合成（内部降级，永不返回错误）
	answer := s.answerService.GenerateAnswer(ctx, req.Query, chunks, groups, structured)

	resp := &model.SearchResponse{
		Success:       true,
		Query:         req.Query,
		EnhancedQuery: enhancedQuery,
		Results:       chunks,
		CompanyGroups: groups,
		AIAnswer:      answer.Answer,
		Confidence:    answer.Confidence,
		Sources:       answer.Sources,
		TotalResults:  len(chunks),
		SearchType:    searchType,
		Filters:       req.Filters,
		Metadata:      buildMetadata(chunks, groups),
	}
	log.Infof("[SearchService] 检索完成, results: %d, groups: %d, confidence: %s",
		len(chunks), len(groups), answer.Confidence)
	return resp, nil
}

// StreamSearch 检索后走流式答案生成。
func (s *searchService) StreamSearch(ctx context.Context, query string, writer llm.MessageWriter) error {
	enhancedQuery := enhanceQuery(query)
	objs, err := s.store.HybridSearch(ctx, enhancedQuery, s.cfg.Alpha, s.cfg.Limit)
	if err != nil {
		return fmt.Errorf("store search failed: %w", err)
	}
	chunks := normalizeChunks(s.cfg.Profile, objs)
	groups := groupByCompany(chunks)
	return s.answerService.StreamAnswer(ctx, query, chunks, groups, writer)
}

// QuickSearch 只返回归一化分块。
func (s *searchService) QuickSearch(ctx context.Context, query string) ([]model.DocumentChunk, error) {
	objs, err := s.store.HybridSearch(ctx, query, s.cfg.Alpha, s.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("store search failed: %w", err)
	}
	return normalizeChunks(s.cfg.Profile, objs), nil
}

// dispatch 按检索类型分发。带结构化过滤条件时优先走过滤检索。
func (s *searchService) dispatch(ctx context.Context, query, searchType string, filters *model.SearchFilters) ([]weaviate.RawObject, error) {
	if !filters.IsEmpty() {
		return s.store.SearchWithFilters(ctx, query, filters, s.cfg.Limit)
	}
	if searchType == "semantic" {
		return s.store.SemanticSearch(ctx, query, s.cfg.Limit)
	}
	return s.store.HybridSearch(ctx, query, s.cfg.Alpha, s.cfg.Limit)
}

// fetchStructuredData 并发拉取 Investment/Company/Investor 三类结构化对象。
// 任意一路失败则整体放弃（fan-in fail-fast），错误不向上传播。
func (s *searchService) fetchStructuredData(ctx context.Context) *model.StructuredData {
	var (
		investments []model.Investment
		companies   []model.Company
		investors   []model.Investor
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		investments, err = s.store.GetInvestments(gctx, 100)
		return err
	})
	g.Go(func() error {
		var err error
		companies, err = s.store.GetCompanies(gctx, 100)
		return err
	})
	g.Go(func() error {
		var err error
		investors, err = s.store.GetInvestors(gctx, 100)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Warnf("[SearchService] 拉取结构化数据失败, 跳过: %v", err)
		return nil
	}

	var totalRaised float64
	for _, inv := range investments {
		totalRaised += inv.InvestmentAmount
	}
	var avgInvestment float64
	if len(investments) > 0 {
		avgInvestment = totalRaised / float64(len(investments))
	}

	return &model.StructuredData{
		Investments:       investments,
		Companies:         companies,
		Investors:         investors,
		TotalRaised:       totalRaised,
		AverageInvestment: avgInvestment,
	}
}

// buildMetadata 计算响应里的聚合统计。
func buildMetadata(chunks []model.DocumentChunk, groups []model.CompanyGroup) model.SearchMetadata {
	meta := model.SearchMetadata{}

	var confSum float64
	var invSum, invCount, valSum, valCount float64
	for _, c := range chunks {
		confSum += c.ExtractionConfidence
		if c.HasInvestmentAmount || c.HasValuation || c.HasOwnership {
			meta.HasStructuredData = true
		}
		if c.Extracted.InvestmentAmount > 0 {
			invSum += c.Extracted.InvestmentAmount
			invCount++
		}
		if c.Extracted.PreMoneyValuation > 0 {
			valSum += c.Extracted.PreMoneyValuation
			valCount++
		}
	}
	if len(chunks) > 0 {
		meta.AverageConfidence = confSum / float64(len(chunks))
	}
	if invCount > 0 {
		meta.AverageInvestmentAmount = invSum / invCount
	}
	if valCount > 0 {
		meta.AverageValuation = valSum / valCount
	}

	for _, g := range groups {
		if g.HasInvestmentAmount {
			meta.CompaniesWithInvestmentAmount++
		}
		if g.HasValuation {
			meta.CompaniesWithValuation++
		}
		if g.HasOwnership {
			meta.CompaniesWithOwnership++
		}
	}
	return meta
}
