package model

import "time"

// TrainingExample 是一次高置信度问答沉淀下来的少样本范例。
// 仅存于进程内存（可选镜像到 Redis），进程重启后以镜像为准恢复。
type TrainingExample struct {
	Query          string     `json:"query"`
	ExpectedAnswer string     `json:"expectedAnswer,omitempty"`
	RelevantDocs   []string   `json:"relevantDocs,omitempty"`
	Confidence     Confidence `json:"confidence,omitempty"`
	Score          float64    `json:"score"`
}

// EvaluationMetrics 是优化器对验证集的启发式评估结果。
// relevance 为词重叠率、accuracy 为 Jaccard 相似度，均非严格统计量。
type EvaluationMetrics struct {
	Relevance     float64 `json:"relevance"`
	Completeness  float64 `json:"completeness"`
	Accuracy      float64 `json:"accuracy"`
	SourceQuality float64 `json:"sourceQuality"`
	Overall       float64 `json:"overall"`
}

// OptimizationRecord 是一次优化运行的历史记录。
type OptimizationRecord struct {
	Timestamp    time.Time         `json:"timestamp"`
	Metrics      EvaluationMetrics `json:"metrics"`
	ExampleCount int               `json:"exampleCount"`
}

// PipelineStatus 是优化器状态的只读快照。
type PipelineStatus struct {
	IsOptimized      bool       `json:"isOptimized"`
	LastOptimized    *time.Time `json:"lastOptimized"`
	PerformanceScore *float64   `json:"performanceScore"`
	TrainingExamples int        `json:"trainingExamples"`
	CurrentModel     string     `json:"currentModel"`
}
