package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
	"verona-ai-go/internal/model"
	"verona-ai-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM 是 llm.Client 的测试替身。
type fakeLLM struct {
	answer     string
	err        error
	lastPrompt string
}

func (f *fakeLLM) GenerateAnswer(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.answer, f.err
}

func (f *fakeLLM) StreamAnswer(_ context.Context, prompt string, writer llm.MessageWriter) error {
	f.lastPrompt = prompt
	if f.err != nil {
		return f.err
	}
	return writer.WriteMessage(1, []byte(f.answer))
}

func sampleChunks(n int) []model.DocumentChunk {
	chunks := make([]model.DocumentChunk, 0, n)
	names := []string{"Loopit", "Amaka", "Wonde"}
	for i := 0; i < n; i++ {
		chunks = append(chunks, model.DocumentChunk{
			ID:           "c" + string(rune('0'+i)),
			CompanyName:  names[i%len(names)],
			DocumentType: "Subscription Agreement",
			Content:      "Investment of $100,000.",
		})
	}
	return chunks
}

func TestGenerateAnswerFallbackOnError(t *testing.T) {
	svc := NewAnswerService(&fakeLLM{err: errors.New("api unavailable")})
	chunks := sampleChunks(3)

	result := svc.GenerateAnswer(context.Background(), "investment in Loopit", chunks, groupByCompany(chunks), nil)

	assert.Equal(t, "I found 3 relevant documents, but I'm having trouble processing them right now. "+
		"Please try rephrasing your question or check the search results below for specific information.", result.Answer)
	assert.Equal(t, model.ConfidenceLow, result.Confidence)
	assert.NotEmpty(t, result.Sources, "兜底结果仍带来源")
}

func TestGenerateAnswerSuccess(t *testing.T) {
	client := &fakeLLM{answer: "  Loopit received a $500,000 investment in 2021.  "}
	svc := NewAnswerService(client)
	chunks := sampleChunks(6)

	result := svc.GenerateAnswer(context.Background(), "investment in Loopit", chunks, groupByCompany(chunks), nil)

	assert.Equal(t, "Loopit received a $500,000 investment in 2021.", result.Answer, "回答首尾空白被裁剪")
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Contains(t, client.lastPrompt, `USER QUESTION: "investment in Loopit"`)
	assert.Contains(t, client.lastPrompt, "PORTFOLIO DOCUMENTS CONTEXT:")
}

func TestDetermineConfidence(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		resultCount int
		want        model.Confidence
	}{
		{"结果多且含美元金额", "The total was $1.5M", 6, model.ConfidenceHigh},
		{"结果多且含数字", "There were 3 rounds", 6, model.ConfidenceHigh},
		{"结果多但无财务信号", "No details available here", 6, model.ConfidenceMedium},
		{"结果中等", "some answer", 3, model.ConfidenceMedium},
		{"结果太少", "The total was $1.5M", 2, model.ConfidenceLow},
		{"临界值 5 不算 high", "$100", 5, model.ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineConfidence(tt.answer, tt.resultCount))
		})
	}
}

func TestExtractSources(t *testing.T) {
	chunks := []model.DocumentChunk{
		{CompanyName: "2. Loopit", DocumentType: "Term Sheet"},
		{CompanyName: "Loopit", DocumentType: "Term Sheet"},
		{CompanyName: "Amaka", DocumentType: "Financial Report"},
	}

	sources := extractSources(chunks)
	assert.Equal(t, []string{"Loopit", "Term Sheet", "Amaka", "Financial Report"}, sources,
		"去重且保持分块顺序，公司名先清洗序号前缀")
}

func TestBuildContextBounded(t *testing.T) {
	chunks := make([]model.DocumentChunk, 15)
	for i := range chunks {
		chunks[i] = model.DocumentChunk{
			CompanyName: "Loopit",
			Content:     strings.Repeat("x", 600),
		}
	}

	ctx := buildContext(chunks, groupByCompany(chunks), nil)

	assert.Contains(t, ctx, "Document 10:")
	assert.NotContains(t, ctx, "Document 11:", "上下文最多包含前 10 个分块")
	assert.NotContains(t, ctx, strings.Repeat("x", 501), "单块摘录不超过 500 字符")
}

func TestBuildContextMultibyteExcerpt(t *testing.T) {
	// 截断点落在多字节字符中间时不得产生非法序列
	chunks := []model.DocumentChunk{{
		CompanyName: "Loopit",
		Content:     strings.Repeat("a", 499) + strings.Repeat("世", 10),
	}}

	ctx := buildContext(chunks, groupByCompany(chunks), nil)
	assert.True(t, utf8.ValidString(ctx))
}

func TestBuildContextStructuredSummary(t *testing.T) {
	structured := &model.StructuredData{
		Investments:       []model.Investment{{InvestmentAmount: 100000}, {InvestmentAmount: 300000}},
		TotalRaised:       400000,
		AverageInvestment: 200000,
	}

	ctx := buildContext(nil, nil, structured)
	require.Contains(t, ctx, "Portfolio Summary:")
	assert.Contains(t, ctx, "Total Investment Amount: $400000")
	assert.Contains(t, ctx, "Number of Investment Rounds: 2")

	assert.NotContains(t, buildContext(nil, nil, nil), "Portfolio Summary:")
}
