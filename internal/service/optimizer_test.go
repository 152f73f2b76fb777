package service

import (
	"context"
	"fmt"
	"testing"
	"verona-ai-go/internal/config"
	"verona-ai-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MinExamplesForRetraining: 50,
		PerformanceDropThreshold: 0.15,
		MaxBootstrapExamples:     20,
		ValidationSplitRatio:     0.2,
		MaxExamplesPerTask:       100,
		DefaultModel:             "claude-sonnet-4-20250514",
	}
}

func TestCategorizeQuery(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"How much did we invest in Loopit?", "investment-query"},
		{"funding history", "investment-query"},
		{"latest round", "investment-query"},
		{"What is the valuation of Amaka?", "valuation-query"},
		{"How much is Wonde worth?", "valuation-query"},
		{"term sheet details", "terms-query"},
		{"subscription agreement clauses", "terms-query"},
		{"list portfolio companies", "company-query"},
		{"what happened last week", "general-query"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeQuery(tt.query), tt.query)
	}
}

func TestConfidenceScore(t *testing.T) {
	assert.Equal(t, 1.0, confidenceScore(model.ConfidenceHigh))
	assert.Equal(t, 0.7, confidenceScore(model.ConfidenceMedium))
	assert.Equal(t, 0.4, confidenceScore(model.ConfidenceLow))
	assert.Equal(t, 0.4, confidenceScore(""))
}

func TestAddExampleDefaultScore(t *testing.T) {
	o := NewOptimizer(testPipelineConfig(), nil)
	o.AddExample(model.TrainingExample{Query: "investment in Loopit", Confidence: model.ConfidenceHigh})

	assert.Equal(t, 1, o.ExampleCount())
	o.mu.Lock()
	assert.Equal(t, 1.0, o.trainingExamples[0].Score)
	o.mu.Unlock()
}

func TestAddExampleSplitAndCap(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxExamplesPerTask = 20
	o := NewOptimizer(cfg, nil)

	for i := 0; i < 30; i++ {
		o.AddExample(model.TrainingExample{
			Query:      fmt.Sprintf("investment query %d", i),
			Confidence: model.ConfidenceHigh,
			Score:      float64(i) / 30,
		})
	}

	// 超过上限后淘汰低分范例，并按 0.2 比例切出验证集
	assert.Equal(t, 20, o.ExampleCount())
	o.mu.Lock()
	defer o.mu.Unlock()
	assert.Len(t, o.validationExamples, 4)
	assert.Len(t, o.trainingExamples, 16)
	for _, e := range o.trainingExamples {
		for _, v := range o.validationExamples {
			assert.GreaterOrEqual(t, e.Score, v.Score, "验证集取的是排序后的尾部")
		}
	}
}

func TestOptimizeSelectsExemplars(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxBootstrapExamples = 2
	o := NewOptimizer(cfg, nil)

	for i := 0; i < 5; i++ {
		o.AddExample(model.TrainingExample{
			Query:          fmt.Sprintf("investment round %d", i),
			ExpectedAnswer: "The investment was $500,000.",
			RelevantDocs:   []string{"Loopit"},
			Confidence:     model.ConfidenceHigh,
			Score:          float64(i + 1),
		})
	}

	metrics := o.Optimize(context.Background())

	exemplars := o.Exemplars("investment-query")
	require.Len(t, exemplars, 2, "每个类别保留分数最高的前 N 条")
	assert.Equal(t, 5.0, exemplars[0].Score)
	assert.Equal(t, 4.0, exemplars[1].Score)

	history := o.History()
	require.Len(t, history, 1)
	assert.Equal(t, metrics, history[0].Metrics)
	assert.Equal(t, 5, history[0].ExampleCount)
}

func TestOptimizeEmptyValidationSet(t *testing.T) {
	o := NewOptimizer(testPipelineConfig(), nil)
	o.AddExample(model.TrainingExample{Query: "investment", Confidence: model.ConfidenceHigh})

	metrics := o.Optimize(context.Background())
	assert.Zero(t, metrics.Overall, "没有验证集时评测指标为零值")
}

func TestEvaluateExampleWeights(t *testing.T) {
	e := model.TrainingExample{
		Query:          "loopit investment",
		ExpectedAnswer: "loopit investment was large",
		RelevantDocs:   []string{"a", "b", "c", "d", "e"},
		Confidence:     model.ConfidenceHigh,
	}
	m := evaluateExample(e, "loopit investment was large")

	assert.Equal(t, 1.0, m.Relevance, "预测答案完整覆盖查询词元")
	assert.Equal(t, 1.0, m.Accuracy, "与期望答案完全一致")
	assert.Equal(t, 1.0, m.Completeness, "5 篇文档打满")
	assert.Equal(t, 1.0, m.SourceQuality)
	assert.InDelta(t, 1.0, m.Overall, 1e-9, "权重之和为 1")
}

func TestEvaluateExampleNoPrediction(t *testing.T) {
	e := model.TrainingExample{
		Query:          "loopit investment",
		ExpectedAnswer: "something",
		Confidence:     model.ConfidenceLow,
	}
	m := evaluateExample(e, "")

	assert.Zero(t, m.Relevance)
	assert.Zero(t, m.Accuracy)
	assert.Equal(t, 0.4, m.SourceQuality)
	assert.InDelta(t, 0.4*sourceQualityWeight, m.Overall, 1e-9)
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, tokenOverlap("loopit investment", "the loopit investment was big"))
	assert.Equal(t, 0.5, tokenOverlap("loopit investment", "investment details"))
	assert.Zero(t, tokenOverlap("loopit", "unrelated answer"))
	assert.Zero(t, tokenOverlap("", "anything"))
}

func TestJaccardSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, jaccardSimilarity("a b c", "c b a"))
	assert.InDelta(t, 1.0/3.0, jaccardSimilarity("a b", "b c"), 1e-9)
	assert.Zero(t, jaccardSimilarity("", ""))
}
