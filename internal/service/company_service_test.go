package service

import (
	"context"
	"errors"
	"testing"
	"verona-ai-go/internal/config"
	"verona-ai-go/internal/model"
	"verona-ai-go/pkg/weaviate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore 是 weaviate.Client 的测试替身，按检索词返回预设对象。
type fakeStore struct {
	byQuery map[string][]weaviate.RawObject
	err     error
}

func (f *fakeStore) SemanticSearch(_ context.Context, query string, _ int) ([]weaviate.RawObject, error) {
	return f.byQuery[query], f.err
}

func (f *fakeStore) HybridSearch(_ context.Context, query string, _ float64, _ int) ([]weaviate.RawObject, error) {
	return f.byQuery[query], f.err
}

func (f *fakeStore) SearchWithFilters(_ context.Context, query string, _ *model.SearchFilters, _ int) ([]weaviate.RawObject, error) {
	return f.byQuery[query], f.err
}

func (f *fakeStore) GetCompanies(context.Context, int) ([]model.Company, error) {
	return nil, f.err
}

func (f *fakeStore) GetInvestors(context.Context, int) ([]model.Investor, error) {
	return nil, f.err
}

func (f *fakeStore) GetInvestments(context.Context, int) ([]model.Investment, error) {
	return nil, f.err
}

func TestExtractAmounts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []float64
	}{
		{"美元金额", "The company raised $1,500,000 in total.", []float64{1500000}},
		{"dollars 写法", "A sum of 250,000 dollars was paid.", []float64{250000}},
		{"认购金额", "Subscription for a total amount of $75,000", []float64{75000}},
		{"股数乘单价", "100,000 shares at $2.50 per share", []float64{250000}},
		{"千元以下忽略", "A filing fee of $500 applies.", nil},
		{"无金额", "No numbers here.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractAmounts(tt.content))
		})
	}
}

func TestClassifyIndustry(t *testing.T) {
	assert.Equal(t, "FinTech", classifyIndustry("payment processing for banks"))
	assert.Equal(t, "Mobility & Transportation", classifyIndustry("ride sharing and vehicle rental"))
	assert.Equal(t, "Manufacturing", classifyIndustry("industrial production lines"))
	assert.Equal(t, "Technology", classifyIndustry("software platform"))
	assert.Equal(t, "Technology", classifyIndustry("nothing matches"))
}

func TestEarliestYear(t *testing.T) {
	assert.Equal(t, 2018, earliestYear("Founded 2021, first round 2018, exit 2023"))
	assert.Equal(t, 0, earliestYear("Founded in 1999"), "范围外的年份忽略")
	assert.Equal(t, 0, earliestYear("no year"))
}

func TestAggregateCompanies(t *testing.T) {
	docs := []model.DocumentChunk{
		{CompanyName: "Unknown Company", Content: "$2,000,000 investment"},
		{CompanyName: "2. Loopit", Content: "Investment of $500,000 completed in 2021. Software platform."},
		{CompanyName: "Loopit", Content: "A further $200,000 dollars was invested."},
		{CompanyName: "Wonde", Content: "Subscription amount $1,200,000 for the 2019 round."},
	}

	companies := aggregateCompanies(docs)
	require.Len(t, companies, 2, "Unknown Company 被跳过，同名公司合并")

	// 按投资额降序
	assert.Equal(t, "Wonde", companies[0].Name)
	assert.Equal(t, "Loopit", companies[1].Name)

	loopit := companies[1]
	assert.Equal(t, "loopit", loopit.CompanyID)
	assert.Equal(t, 700000.0, loopit.TotalInvestment, "首次取最大金额，后续文档累加")
	assert.Equal(t, 2, loopit.DocumentCount)
	assert.Equal(t, 2021, loopit.InvestmentYear)
	assert.Equal(t, "Seed", loopit.Stage)
	assert.Contains(t, loopit.Description, "car subscription", "已知公司用固定描述")

	wonde := companies[0]
	assert.Equal(t, "Series A", wonde.Stage, "超过 100 万按 Series A")
	assert.Equal(t, 2019, wonde.InvestmentYear)
}

func TestAggregateCompaniesFairValueConsistent(t *testing.T) {
	docs := []model.DocumentChunk{
		{CompanyName: "Amaka", Content: "Investment of $500,000."},
	}

	companies := aggregateCompanies(docs)
	require.Len(t, companies, 1)
	c := companies[0]

	require.Greater(t, c.FairValue, 0.0)
	multiplier := c.FairValue / c.TotalInvestment
	assert.GreaterOrEqual(t, multiplier, 1.5)
	assert.LessOrEqual(t, multiplier, 3.5)
	assert.InDelta(t, (multiplier-1)*100, c.ROI, 1e-6, "ROI 与公允价值由同一乘数推导")
}

func TestAggregateCompaniesBurnEstimate(t *testing.T) {
	docs := []model.DocumentChunk{
		{CompanyName: "Riparide", Content: "Profit and loss statement: revenue 120,000 for the period, expenses 80,000."},
	}

	companies := aggregateCompanies(docs)
	require.Len(t, companies, 1)
	assert.Equal(t, 120000.0*15, companies[0].TotalInvestment, "只有财报时按最大数字乘 15 个月估算")
	assert.Equal(t, "Series A", companies[0].Stage)
}

func TestExtractCompaniesDedupes(t *testing.T) {
	shared := weaviate.RawObject{
		"chunk_id":     "dup-1",
		"company_name": "Loopit",
		"content":      "Investment of $500,000.",
	}
	store := &fakeStore{byQuery: map[string][]weaviate.RawObject{
		extractionQueries[0]: {shared},
		extractionQueries[1]: {shared, {
			"chunk_id":     "uniq-1",
			"company_name": "Wonde",
			"content":      "Subscription amount $1,200,000.",
		}},
	}}

	svc := NewCompanyService(store, config.WeaviateConfig{Profile: "production", Alpha: 0.5, Limit: 20})
	companies, err := svc.ExtractCompanies(context.Background())
	require.NoError(t, err)

	require.Len(t, companies, 2)
	for _, c := range companies {
		assert.Equal(t, 1, c.DocumentCount, "相同分块 ID 只计一次")
	}
}

func TestExtractCompaniesFailFast(t *testing.T) {
	store := &fakeStore{err: errors.New("store unreachable")}
	svc := NewCompanyService(store, config.WeaviateConfig{Profile: "production"})

	_, err := svc.ExtractCompanies(context.Background())
	assert.Error(t, err)
}
