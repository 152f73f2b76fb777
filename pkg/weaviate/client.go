// Package weaviate 提供了与 Weaviate 向量库交互的客户端功能。
package weaviate

import (
	"context"
	"fmt"
	"verona-ai-go/internal/config"
	"verona-ai-go/internal/model"
	"verona-ai-go/pkg/log"

	wv "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// RawObject 是 GraphQL 返回的单个对象，字段映射交给采集适配器处理。
type RawObject = map[string]interface{}

// Client 定义了向量库的检索操作。
type Client interface {
	// SemanticSearch 对文档分块 collection 执行 nearText 语义检索。
	SemanticSearch(ctx context.Context, query string, limit int) ([]RawObject, error)
	// HybridSearch 执行 BM25 与向量混合检索，alpha 控制两者权重。
	HybridSearch(ctx context.Context, query string, alpha float64, limit int) ([]RawObject, error)
	// SearchWithFilters 在 BM25 检索之上叠加结构化过滤条件（AND 组合）。
	SearchWithFilters(ctx context.Context, query string, f *model.SearchFilters, limit int) ([]RawObject, error)
	// GetCompanies / GetInvestors / GetInvestments 读取结构化对象类。
	GetCompanies(ctx context.Context, limit int) ([]model.Company, error)
	GetInvestors(ctx context.Context, limit int) ([]model.Investor, error)
	GetInvestments(ctx context.Context, limit int) ([]model.Investment, error)
}

type weaviateClient struct {
	cfg    config.WeaviateConfig
	client *wv.Client
}

// NewClient 根据配置创建 Weaviate 客户端。
func NewClient(cfg config.WeaviateConfig) (Client, error) {
	conf := wv.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	}
	if cfg.APIKey != "" {
		conf.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	c, err := wv.NewClient(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	log.Infof("[Weaviate] 客户端初始化成功, host: %s, collection: %s", cfg.Host, cfg.Collection)
	return &weaviateClient{cfg: cfg, client: c}, nil
}

// chunkFields 返回当前 schema 版本需要请求的字段列表。
// 注意：向不含该字段的 collection 请求字段会直接导致 GraphQL 报错，
// 因此字段集必须与 profile 严格对应。
func (c *weaviateClient) chunkFields() []graphql.Field {
	additional := graphql.Field{
		Name:   "_additional",
		Fields: []graphql.Field{{Name: "score"}},
	}
	if c.cfg.Profile == "legacy" {
		return []graphql.Field{
			{Name: "text"},
			{Name: "company_name"},
			{Name: "document_type"},
			{Name: "section_type"},
			{Name: "file_path"},
			{Name: "chunk_index"},
			{Name: "text_length"},
			{Name: "has_financial_data"},
			{Name: "has_legal_terms"},
			{Name: "extracted_fields"},
			additional,
		}
	}
	return []graphql.Field{
		{Name: "content"},
		{Name: "company_name"},
		{Name: "industry"},
		{Name: "document_type"},
		{Name: "investment_amount"},
		{Name: "pre_money_valuation"},
		{Name: "post_money_valuation"},
		{Name: "fair_value"},
		{Name: "ownership_percentage"},
		{Name: "claude_extraction"},
		{Name: "chunk_id"},
		{Name: "extraction_confidence"},
		additional,
	}
}

// SemanticSearch 执行 nearText 语义检索。
func (c *weaviateClient) SemanticSearch(ctx context.Context, query string, limit int) ([]RawObject, error) {
	nearText := c.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	resp, err := c.client.GraphQL().Get().
		WithClassName(c.cfg.Collection).
		WithFields(c.chunkFields()...).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate semantic search failed: %w", err)
	}
	return c.objects(resp, c.cfg.Collection)
}

// HybridSearch 执行 BM25 + 向量混合检索。
func (c *weaviateClient) HybridSearch(ctx context.Context, query string, alpha float64, limit int) ([]RawObject, error) {
	hybrid := c.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithAlpha(float32(alpha))

	resp, err := c.client.GraphQL().Get().
		WithClassName(c.cfg.Collection).
		WithFields(c.chunkFields()...).
		WithHybrid(hybrid).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate hybrid search failed: %w", err)
	}
	return c.objects(resp, c.cfg.Collection)
}

// SearchWithFilters 执行带结构化过滤的 BM25 检索。
func (c *weaviateClient) SearchWithFilters(ctx context.Context, query string, f *model.SearchFilters, limit int) ([]RawObject, error) {
	bm25 := c.client.GraphQL().Bm25ArgBuilder().WithQuery(query)

	builder := c.client.GraphQL().Get().
		WithClassName(c.cfg.Collection).
		WithFields(c.chunkFields()...).
		WithBM25(bm25).
		WithLimit(limit)

	if where := buildWhere(f); where != nil {
		builder = builder.WithWhere(where)
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate filtered search failed: %w", err)
	}
	return c.objects(resp, c.cfg.Collection)
}

// buildWhere 将过滤条件翻译成 AND 组合的 where 子句；无条件时返回 nil。
func buildWhere(f *model.SearchFilters) *filters.WhereBuilder {
	if f.IsEmpty() {
		return nil
	}

	var operands []*filters.WhereBuilder

	addString := func(path, value string) {
		if value != "" {
			operands = append(operands, filters.Where().
				WithPath([]string{path}).
				WithOperator(filters.Equal).
				WithValueString(value))
		}
	}
	addNumber := func(path string, op filters.WhereOperator, value *float64) {
		if value != nil {
			operands = append(operands, filters.Where().
				WithPath([]string{path}).
				WithOperator(op).
				WithValueNumber(*value))
		}
	}

	addString("company_name", f.Company)
	addString("document_type", f.DocumentType)
	addString("industry", f.Industry)
	addNumber("investment_amount", filters.GreaterThan, f.MinInvestmentAmount)
	addNumber("investment_amount", filters.LessThan, f.MaxInvestmentAmount)
	addNumber("pre_money_valuation", filters.GreaterThan, f.MinValuation)
	addNumber("pre_money_valuation", filters.LessThan, f.MaxValuation)
	addNumber("ownership_percentage", filters.GreaterThan, f.MinOwnership)
	addNumber("ownership_percentage", filters.LessThan, f.MaxOwnership)
	addNumber("extraction_confidence", filters.GreaterThan, f.MinConfidence)

	// 布尔型条件按"数值字段大于 0"处理，与原 schema 行为一致
	zero := 0.0
	if f.HasInvestmentAmount {
		addNumber("investment_amount", filters.GreaterThan, &zero)
	}
	if f.HasValuation {
		addNumber("pre_money_valuation", filters.GreaterThan, &zero)
	}

	if len(operands) == 0 {
		return nil
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)
}

// GetCompanies 读取结构化的 Company 对象类。
func (c *weaviateClient) GetCompanies(ctx context.Context, limit int) ([]model.Company, error) {
	resp, err := c.client.GraphQL().Get().
		WithClassName("Company").
		WithFields(
			graphql.Field{Name: "name"},
			graphql.Field{Name: "logo"},
			graphql.Field{Name: "industry"},
			graphql.Field{Name: "stage"},
			graphql.Field{Name: "valuation"},
			graphql.Field{Name: "investmentAmount"},
			graphql.Field{Name: "ownershipPercentage"},
		).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate get companies failed: %w", err)
	}
	objs, err := c.objects(resp, "Company")
	if err != nil {
		return nil, err
	}

	companies := make([]model.Company, 0, len(objs))
	for _, o := range objs {
		companies = append(companies, model.Company{
			Name:                StringField(o, "name"),
			Logo:                StringField(o, "logo"),
			Industry:            StringField(o, "industry"),
			Stage:               StringField(o, "stage"),
			Valuation:           NumberField(o, "valuation"),
			InvestmentAmount:    NumberField(o, "investmentAmount"),
			OwnershipPercentage: NumberField(o, "ownershipPercentage"),
		})
	}
	return companies, nil
}

// GetInvestors 读取结构化的 Investor 对象类。
func (c *weaviateClient) GetInvestors(ctx context.Context, limit int) ([]model.Investor, error) {
	resp, err := c.client.GraphQL().Get().
		WithClassName("Investor").
		WithFields(
			graphql.Field{Name: "name"},
			graphql.Field{Name: "firm"},
			graphql.Field{Name: "type"},
		).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate get investors failed: %w", err)
	}
	objs, err := c.objects(resp, "Investor")
	if err != nil {
		return nil, err
	}

	investors := make([]model.Investor, 0, len(objs))
	for _, o := range objs {
		investors = append(investors, model.Investor{
			Name: StringField(o, "name"),
			Firm: StringField(o, "firm"),
			Type: StringField(o, "type"),
		})
	}
	return investors, nil
}

// GetInvestments 读取结构化的 Investment 对象类。
func (c *weaviateClient) GetInvestments(ctx context.Context, limit int) ([]model.Investment, error) {
	resp, err := c.client.GraphQL().Get().
		WithClassName("Investment").
		WithFields(
			graphql.Field{Name: "companyName"},
			graphql.Field{Name: "round"},
			graphql.Field{Name: "investment_amount"},
			graphql.Field{Name: "date"},
			graphql.Field{Name: "leadInvestor"},
			graphql.Field{Name: "preMoneyValuation"},
			graphql.Field{Name: "postMoneyValuation"},
		).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate get investments failed: %w", err)
	}
	objs, err := c.objects(resp, "Investment")
	if err != nil {
		return nil, err
	}

	investments := make([]model.Investment, 0, len(objs))
	for _, o := range objs {
		investments = append(investments, model.Investment{
			CompanyName:        StringField(o, "companyName"),
			Round:              StringField(o, "round"),
			InvestmentAmount:   NumberField(o, "investment_amount"),
			Date:               StringField(o, "date"),
			LeadInvestor:       StringField(o, "leadInvestor"),
			PreMoneyValuation:  NumberField(o, "preMoneyValuation"),
			PostMoneyValuation: NumberField(o, "postMoneyValuation"),
		})
	}
	return investments, nil
}

// objects 从 GraphQL 响应中取出指定 class 的对象列表。
func (c *weaviateClient) objects(resp *models.GraphQLResponse, class string) ([]RawObject, error) {
	return extractObjects(resp, class)
}
