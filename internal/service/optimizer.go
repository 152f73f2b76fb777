package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"verona-ai-go/internal/config"
	"verona-ai-go/internal/model"
	"verona-ai-go/internal/repository"
	"verona-ai-go/pkg/log"
)

// 各项评测指标在总分中的权重。
const (
	relevanceWeight     = 0.3
	completenessWeight  = 0.25
	accuracyWeight      = 0.25
	sourceQualityWeight = 0.2
)

// Optimizer 负责训练范例的积累与 exemplar 重选。
// "优化"在这里是按类别重选最佳范例，不是梯度学习，也不产生模型权重更新。
// 所有状态由互斥锁保护，可在并发请求间安全使用。
type Optimizer struct {
	cfg         config.PipelineConfig
	exampleRepo repository.ExampleRepository

	mu                 sync.Mutex
	trainingExamples   []model.TrainingExample
	validationExamples []model.TrainingExample
	history            []model.OptimizationRecord
	exemplars          map[string][]model.TrainingExample
}

// NewOptimizer 创建一个新的 Optimizer 实例。
// exampleRepo 可以为 nil：此时范例只存在于内存，重启丢失。
func NewOptimizer(cfg config.PipelineConfig, exampleRepo repository.ExampleRepository) *Optimizer {
	o := &Optimizer{
		cfg:       cfg,
		exemplars: make(map[string][]model.TrainingExample),
	}
	o.exampleRepo = exampleRepo
	if exampleRepo != nil {
		examples, err := exampleRepo.LoadExamples(context.Background())
		if err != nil {
			log.Warnf("[Optimizer] 加载历史训练范例失败: %v", err)
		} else if len(examples) > 0 {
			o.trainingExamples = examples
			log.Infof("[Optimizer] 已加载 %d 条历史训练范例", len(examples))
		}
	}
	return o
}

// AddExample 追加一条训练范例。
// 未给分时按置信度折算（high 1.0 / medium 0.7 / low 0.4）；
// 总数超过 10 条后按分数排序切分训练/验证集；超出上限后淘汰低分范例。
func (o *Optimizer) AddExample(example model.TrainingExample) {
	if example.Score == 0 {
		example.Score = confidenceScore(example.Confidence)
	}

	o.mu.Lock()
	o.trainingExamples = append(o.trainingExamples, example)

	total := len(o.trainingExamples) + len(o.validationExamples)
	if total > 10 {
		all := make([]model.TrainingExample, 0, total)
		all = append(all, o.trainingExamples...)
		all = append(all, o.validationExamples...)
		sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })

		if len(all) > o.cfg.MaxExamplesPerTask {
			all = all[:o.cfg.MaxExamplesPerTask]
		}

		validationSize := int(float64(len(all)) * o.cfg.ValidationSplitRatio)
		o.trainingExamples = all[:len(all)-validationSize]
		o.validationExamples = all[len(all)-validationSize:]
	}

	snapshot := make([]model.TrainingExample, len(o.trainingExamples))
	copy(snapshot, o.trainingExamples)
	o.mu.Unlock()

	if o.exampleRepo != nil {
		if err := o.exampleRepo.SaveExamples(context.Background(), snapshot); err != nil {
			log.Warnf("[Optimizer] 持久化训练范例失败: %v", err)
		}
	}
}

// Optimize 执行一轮 exemplar 重选并记录评测指标。
func (o *Optimizer) Optimize(ctx context.Context) model.EvaluationMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()

	log.Infof("[Optimizer] 开始优化, 训练范例: %d, 验证范例: %d",
		len(o.trainingExamples), len(o.validationExamples))

	// 按查询类别分桶，每桶保留分数最高的前 N 条作为 few-shot exemplar
	buckets := make(map[string][]model.TrainingExample)
	for _, e := range o.trainingExamples {
		category := categorizeQuery(e.Query)
		buckets[category] = append(buckets[category], e)
	}

	o.exemplars = make(map[string][]model.TrainingExample)
	for category, examples := range buckets {
		sort.SliceStable(examples, func(i, j int) bool { return examples[i].Score > examples[j].Score })
		if len(examples) > o.cfg.MaxBootstrapExamples {
			examples = examples[:o.cfg.MaxBootstrapExamples]
		}
		o.exemplars[category] = examples
		log.Infof("[Optimizer] 类别 %s 保留 %d 条范例", category, len(examples))
	}

	metrics := o.evaluate()
	o.history = append(o.history, model.OptimizationRecord{
		Timestamp:    time.Now(),
		Metrics:      metrics,
		ExampleCount: len(o.trainingExamples),
	})

	log.Infof("[Optimizer] 优化完成, overall: %.3f", metrics.Overall)
	return metrics
}

// evaluate 在验证集上计算启发式评测指标。调用方必须持有锁。
// 每条验证范例与其类别下分数最高的 exemplar 对比，exemplar 的答案
// 充当"当前管线会给出的回答"。
func (o *Optimizer) evaluate() model.EvaluationMetrics {
	if len(o.validationExamples) == 0 {
		return model.EvaluationMetrics{}
	}

	var metrics model.EvaluationMetrics
	for _, e := range o.validationExamples {
		predicted := ""
		if best := o.exemplars[categorizeQuery(e.Query)]; len(best) > 0 {
			predicted = best[0].ExpectedAnswer
		}
		m := evaluateExample(e, predicted)
		metrics.Relevance += m.Relevance
		metrics.Completeness += m.Completeness
		metrics.Accuracy += m.Accuracy
		metrics.SourceQuality += m.SourceQuality
		metrics.Overall += m.Overall
	}
	n := float64(len(o.validationExamples))
	metrics.Relevance /= n
	metrics.Completeness /= n
	metrics.Accuracy /= n
	metrics.SourceQuality /= n
	metrics.Overall /= n
	return metrics
}

// ExampleCount 返回当前训练范例数量。
func (o *Optimizer) ExampleCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.trainingExamples) + len(o.validationExamples)
}

// History 返回优化历史的副本。
func (o *Optimizer) History() []model.OptimizationRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.OptimizationRecord, len(o.history))
	copy(out, o.history)
	return out
}

// Exemplars 返回指定类别下当前选出的 few-shot 范例。
func (o *Optimizer) Exemplars(category string) []model.TrainingExample {
	o.mu.Lock()
	defer o.mu.Unlock()
	examples := o.exemplars[category]
	out := make([]model.TrainingExample, len(examples))
	copy(out, examples)
	return out
}

// categorizeQuery 用朴素的关键词规则给查询分类。
func categorizeQuery(query string) string {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "invest") || strings.Contains(lower, "funding") || strings.Contains(lower, "round"):
		return "investment-query"
	case strings.Contains(lower, "valuation") || strings.Contains(lower, "worth") || strings.Contains(lower, "value"):
		return "valuation-query"
	case strings.Contains(lower, "term") || strings.Contains(lower, "agreement") || strings.Contains(lower, "contract"):
		return "terms-query"
	case strings.Contains(lower, "company") || strings.Contains(lower, "portfolio"):
		return "company-query"
	}
	return "general-query"
}

// evaluateExample 对单条范例计算各项指标的加权和。
func evaluateExample(e model.TrainingExample, predicted string) model.EvaluationMetrics {
	m := model.EvaluationMetrics{}
	if predicted != "" {
		m.Relevance = tokenOverlap(e.Query, predicted)
	}
	if e.ExpectedAnswer != "" && predicted != "" {
		m.Accuracy = jaccardSimilarity(e.ExpectedAnswer, predicted)
	}
	if len(e.RelevantDocs) > 0 {
		m.Completeness = minFloat(float64(len(e.RelevantDocs))/5, 1)
	}
	m.SourceQuality = confidenceScore(e.Confidence)
	m.Overall = m.Relevance*relevanceWeight +
		m.Completeness*completenessWeight +
		m.Accuracy*accuracyWeight +
		m.SourceQuality*sourceQualityWeight
	return m
}

// tokenOverlap 计算 answer 覆盖 query 词元的比例。
func tokenOverlap(query, answer string) float64 {
	queryTerms := strings.Fields(strings.ToLower(query))
	if len(queryTerms) == 0 {
		return 0
	}
	answerTerms := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(answer)) {
		answerTerms[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTerms {
		if _, ok := answerTerms[t]; ok {
			overlap++
		}
	}
	return minFloat(float64(overlap)/float64(len(queryTerms)), 1)
}

// jaccardSimilarity 计算两段文本词元集合的 Jaccard 相似度。
func jaccardSimilarity(expected, actual string) float64 {
	expectedSet := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(expected)) {
		expectedSet[t] = struct{}{}
	}
	actualSet := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(actual)) {
		actualSet[t] = struct{}{}
	}

	intersection := 0
	for t := range expectedSet {
		if _, ok := actualSet[t]; ok {
			intersection++
		}
	}
	union := len(expectedSet) + len(actualSet) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func confidenceScore(c model.Confidence) float64 {
	switch c {
	case model.ConfidenceHigh:
		return 1.0
	case model.ConfidenceMedium:
		return 0.7
	default:
		return 0.4
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
