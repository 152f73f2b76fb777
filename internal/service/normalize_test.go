package service

import (
	"strings"
	"testing"
	"unicode/utf8"
	"verona-ai-go/internal/model"
	"verona-ai-go/pkg/weaviate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChunksProduction(t *testing.T) {
	objs := []weaviate.RawObject{
		{
			"chunk_id":              "chunk-1",
			"company_name":          "Loopit",
			"document_type":         "Subscription Agreement",
			"industry":              "Technology",
			"content":               "Investment amount of $500,000 for 50,000 shares.",
			"investment_amount":     500000.0,
			"pre_money_valuation":   2000000.0,
			"extraction_confidence": 0.9,
			"_additional":           map[string]interface{}{"score": "0.83"},
		},
	}

	chunks := normalizeChunks("production", objs)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "chunk-1", c.ID)
	assert.Equal(t, "Loopit", c.CompanyName)
	assert.Equal(t, "Subscription Agreement", c.Title)
	assert.Equal(t, 0.83, c.Score)
	assert.Equal(t, 500000.0, c.Extracted.InvestmentAmount)
	assert.True(t, c.HasInvestmentAmount)
	assert.True(t, c.HasValuation)
	assert.False(t, c.HasOwnership)
	assert.False(t, c.HasFairValue)
}

func TestNormalizeChunksProductionBlobFallback(t *testing.T) {
	objs := []weaviate.RawObject{
		{
			"chunk_id":          "chunk-2",
			"company_name":      "Predelo",
			"content":           "Series A terms.",
			"claude_extraction": `{"investmentAmount": 750000}`,
		},
	}

	chunks := normalizeChunks("production", objs)
	require.Len(t, chunks, 1)
	assert.Equal(t, 750000.0, chunks[0].Extracted.InvestmentAmount, "离散列全空时回退到 JSON blob")
	assert.True(t, chunks[0].HasInvestmentAmount)
}

func TestNormalizeChunksLegacy(t *testing.T) {
	objs := []weaviate.RawObject{
		{
			"chunk_id":         "legacy-1",
			"company_name":     "Amaka",
			"document_type":    "Term Sheet",
			"section_type":     "Investment Terms",
			"file_path":        "/docs/amaka/term-sheet.pdf",
			"text":             "The investor subscribes for shares at the agreed price.",
			"extracted_fields": `{"investmentAmount": 250000, "ownershipPercentage": 12.5}`,
		},
		{
			"chunk_id":         "legacy-2",
			"company_name":     "Amaka",
			"text":             "No structured data here.",
			"extracted_fields": "{not valid json",
		},
	}

	chunks := normalizeChunks("legacy", objs)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Term Sheet - Investment Terms", chunks[0].Title)
	assert.Equal(t, 250000.0, chunks[0].Extracted.InvestmentAmount)
	assert.True(t, chunks[0].HasInvestmentAmount)
	assert.True(t, chunks[0].HasOwnership)

	// JSON blob 解析失败时保留零值，不中断整条结果
	assert.Equal(t, "Document", chunks[1].Title)
	assert.Zero(t, chunks[1].Extracted.InvestmentAmount)
	assert.False(t, chunks[1].HasInvestmentAmount)
}

func TestNormalizeChunksDefaults(t *testing.T) {
	chunks := normalizeChunks("production", []weaviate.RawObject{{}})
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "result-0", c.ID)
	assert.Equal(t, "Unknown Company", c.CompanyName)
	assert.Equal(t, "No content available", c.Content)
	assert.Zero(t, c.Score)
}

func TestMakeSnippetTruncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	snippet := makeSnippet(long)
	assert.Len(t, snippet, snippetLength+3)
	assert.True(t, strings.HasSuffix(snippet, "..."))

	short := "brief content"
	assert.Equal(t, short, makeSnippet(short))
}

func TestTruncateBytesRuneBoundary(t *testing.T) {
	// 多字节字符正好跨越截断点时回退到完整字符边界
	s := strings.Repeat("a", snippetLength-1) + "世界"
	out := truncateBytes(s, snippetLength)
	assert.True(t, utf8.ValidString(out), "截断结果必须是合法 UTF-8")
	assert.Len(t, out, snippetLength-1)

	snippet := makeSnippet(s)
	assert.True(t, utf8.ValidString(snippet))
	assert.True(t, strings.HasSuffix(snippet, "..."))

	assert.Equal(t, "短内容", truncateBytes("短内容", snippetLength))
}

func TestGroupByCompany(t *testing.T) {
	chunks := []model.DocumentChunk{
		{CompanyName: "Loopit", Score: 0.8, ExtractionConfidence: 0.9,
			Extracted: model.ExtractedFields{InvestmentAmount: 100000}, HasInvestmentAmount: true},
		{CompanyName: "Wonde", Score: 0.9, ExtractionConfidence: 0.5},
		{CompanyName: "Loopit", Score: 0.4, ExtractionConfidence: 0.7,
			Extracted: model.ExtractedFields{PreMoneyValuation: 2000000}, HasValuation: true},
	}

	groups := groupByCompany(chunks)
	require.Len(t, groups, 2)

	// 按 averageScore 降序：Wonde 0.9 > Loopit 0.6
	assert.Equal(t, "Wonde", groups[0].Company)
	assert.Equal(t, "Loopit", groups[1].Company)

	loopit := groups[1]
	require.Len(t, loopit.Documents, 2)
	assert.InDelta(t, 0.6, loopit.AverageScore, 1e-9)
	assert.InDelta(t, 0.8, loopit.AverageConfidence, 1e-9)
	assert.True(t, loopit.HasInvestmentAmount)
	assert.True(t, loopit.HasValuation)
	assert.Equal(t, 100000.0, loopit.TotalInvestmentAmount)
	assert.Equal(t, 2000000.0, loopit.TotalValuation)
}

func TestGroupByCompanyNeverEmpty(t *testing.T) {
	assert.Empty(t, groupByCompany(nil))

	groups := groupByCompany([]model.DocumentChunk{{CompanyName: "Predelo"}})
	require.Len(t, groups, 1)
	assert.NotEmpty(t, groups[0].Documents, "分组恒非空")
}

func TestCleanCompanyName(t *testing.T) {
	assert.Equal(t, "Lasertrade", cleanCompanyName("4. Lasertrade"))
	assert.Equal(t, "Circle In", cleanCompanyName("12.  Circle In"))
	assert.Equal(t, "AmazingCo", cleanCompanyName("AmazingCo"))
}
