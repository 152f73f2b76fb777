package service

import (
	"context"
	"sync"
	"time"
	"verona-ai-go/internal/config"
	"verona-ai-go/internal/model"
	"verona-ai-go/internal/repository"
	"verona-ai-go/pkg/braintrust"
	"verona-ai-go/pkg/log"
	"verona-ai-go/pkg/tasks"
	"verona-ai-go/pkg/token"
)

// OptimizeTrigger 把优化任务投递到异步通道（Kafka）。
// 为 nil 时退化为进程内 goroutine 调度。
type OptimizeTrigger func(task tasks.OptimizeTask) error

// PipelineService 接口定义了带优化闭环的检索问答管线。
// 这是搜索接口层的唯一入口：每次搜索都会被遥测包裹、打性能分、
// 沉淀训练范例并检查优化触发条件。
type PipelineService interface {
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error)
	// Process 实现 kafka.TaskProcessor，消费异步优化任务。
	Process(ctx context.Context, task tasks.OptimizeTask) error
	ManualOptimize()
	HandleModelChange(newModel string)
	Status() model.PipelineStatus
	SearchHistory(userID string, limit int) ([]model.SearchLog, error)
}

type pipelineService struct {
	searchService SearchService
	optimizer     *Optimizer
	tracer        *braintrust.Client
	searchLogRepo repository.SearchLogRepository
	trigger       OptimizeTrigger
	cfg           config.PipelineConfig

	mu                 sync.Mutex
	performanceHistory []float64
	lastOptimized      *time.Time
	currentModel       string
}

// NewPipelineService 创建一个新的 PipelineService 实例。
// searchLogRepo 与 trigger 均可为 nil（相应能力降级）。
func NewPipelineService(
	searchService SearchService,
	optimizer *Optimizer,
	tracer *braintrust.Client,
	searchLogRepo repository.SearchLogRepository,
	trigger OptimizeTrigger,
	cfg config.PipelineConfig,
) PipelineService {
	return &pipelineService{
		searchService: searchService,
		optimizer:     optimizer,
		tracer:        tracer,
		searchLogRepo: searchLogRepo,
		trigger:       trigger,
		cfg:           cfg,
		currentModel:  cfg.DefaultModel,
	}
}

// Search 执行一次被遥测包裹的检索，并驱动优化闭环。
func (s *pipelineService) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	if req.SessionID == "" {
		req.SessionID = token.GenerateRandomString(16)
	}

	start := time.Now()
	var resp *model.SearchResponse
	err := s.tracer.Traced(ctx, "rag-search", func(ctx context.Context, span *braintrust.Span) error {
		span.Input = req.Query
		span.Metadata = map[string]interface{}{
			"userId":     req.UserID,
			"sessionId":  req.SessionID,
			"searchType": req.SearchType,
		}

		var searchErr error
		resp, searchErr = s.searchService.Search(ctx, req)
		if searchErr != nil {
			return searchErr
		}

		span.Output = resp.AIAnswer
		span.SetScore("relevance", performanceScore(resp))
		span.SetScore("confidenceScore", confidenceScore(resp.Confidence))
		span.SetScore("resultCount", float64(resp.TotalResults)/20)
		return nil
	})
	if err != nil {
		return nil, err
	}

	score := performanceScore(resp)
	s.recordScore(score)
	s.collectExample(req.Query, resp)
	s.checkTriggers()
	s.writeSearchLog(req, resp, time.Since(start))

	return resp, nil
}

// performanceScore 把一次检索结果折算为 [0,1] 的性能分。
// 置信度、结果数与来源数三项加权，阈值沿用既有行为。
func performanceScore(resp *model.SearchResponse) float64 {
	var score float64
	switch resp.Confidence {
	case model.ConfidenceHigh:
		score += 0.4
	case model.ConfidenceMedium:
		score += 0.25
	default:
		score += 0.1
	}
	score += minFloat(float64(resp.TotalResults)/20, 0.3)
	score += minFloat(float64(len(resp.Sources))/5, 0.3)
	return score
}

func (s *pipelineService) recordScore(score float64) {
	s.mu.Lock()
	s.performanceHistory = append(s.performanceHistory, score)
	s.mu.Unlock()
}

// collectExample 把高置信度且有来源的搜索沉淀为训练范例。
// 首次积累到阈值时触发一轮优化（Untrained -> Collecting -> Optimized）。
func (s *pipelineService) collectExample(query string, resp *model.SearchResponse) {
	if resp.Confidence != model.ConfidenceHigh || len(resp.Sources) == 0 {
		return
	}

	s.optimizer.AddExample(model.TrainingExample{
		Query:          query,
		ExpectedAnswer: resp.AIAnswer,
		RelevantDocs:   resp.Sources,
		Confidence:     resp.Confidence,
	})

	count := s.optimizer.ExampleCount()
	s.mu.Lock()
	firstTime := count >= s.cfg.MinExamplesForRetraining && s.lastOptimized == nil
	s.mu.Unlock()
	if firstTime {
		log.Infof("[PipelineService] 已积累 %d 条训练范例, 触发首次优化", count)
		s.triggerOptimization("initial-threshold")
	}
}

// checkTriggers 检查性能下滑与定时触发条件。
func (s *pipelineService) checkTriggers() {
	s.mu.Lock()
	history := s.performanceHistory
	lastOptimized := s.lastOptimized
	n := len(history)
	var drop bool
	if n > 10 {
		recent := avg(history[n-5:])
		// 历史窗口取倒数第 20 到第 10 条，除数固定为 10：
		// 不足 10 条时历史均值被压低，降档触发更保守
		histStart := n - 20
		if histStart < 0 {
			histStart = 0
		}
		var histSum float64
		for _, x := range history[histStart : n-10] {
			histSum += x
		}
		historical := histSum / 10
		drop = recent < historical*(1-s.cfg.PerformanceDropThreshold)
	}
	s.mu.Unlock()

	if drop {
		log.Warnf("[PipelineService] 检测到性能下滑, 触发重新优化")
		s.triggerOptimization("performance-drop")
		return
	}

	if lastOptimized != nil && time.Since(*lastOptimized) > s.cfg.ScheduleInterval {
		log.Info("[PipelineService] 定时优化触发")
		s.triggerOptimization("scheduled")
	}
}

// triggerOptimization 投递异步优化任务。优化从不在请求路径上同步执行。
func (s *pipelineService) triggerOptimization(reason string) {
	task := tasks.OptimizeTask{
		Reason:       reason,
		ExampleCount: s.optimizer.ExampleCount(),
		TriggeredAt:  time.Now().Unix(),
	}
	if s.trigger != nil {
		if err := s.trigger(task); err != nil {
			log.Errorf("[PipelineService] 投递优化任务失败, 回退到本地执行: %v", err)
			go s.runOptimize(task)
		}
		return
	}
	go s.runOptimize(task)
}

// Process 消费一条异步优化任务。
func (s *pipelineService) Process(_ context.Context, task tasks.OptimizeTask) error {
	s.runOptimize(task)
	return nil
}

// runOptimize 执行一轮优化并重置性能窗口。
func (s *pipelineService) runOptimize(task tasks.OptimizeTask) {
	log.Infof("[PipelineService] 开始执行优化, reason: %s", task.Reason)
	metrics := s.optimizer.Optimize(context.Background())

	now := time.Now()
	s.mu.Lock()
	s.lastOptimized = &now
	s.performanceHistory = nil
	s.mu.Unlock()

	log.Infof("[PipelineService] 优化完成, overall: %.3f", metrics.Overall)
}

// ManualOptimize 手动触发一轮优化。
func (s *pipelineService) ManualOptimize() {
	s.triggerOptimization("manual")
}

// HandleModelChange 在模型版本变化时触发重新优化。
func (s *pipelineService) HandleModelChange(newModel string) {
	s.mu.Lock()
	changed := newModel != "" && newModel != s.currentModel
	if changed {
		log.Infof("[PipelineService] 检测到模型变更: %s -> %s", s.currentModel, newModel)
		s.currentModel = newModel
	}
	s.mu.Unlock()

	if changed {
		s.triggerOptimization("model-change")
	}
}

// Status 返回管线状态的只读快照。
func (s *pipelineService) Status() model.PipelineStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := model.PipelineStatus{
		IsOptimized:      s.lastOptimized != nil,
		LastOptimized:    s.lastOptimized,
		TrainingExamples: s.optimizer.ExampleCount(),
		CurrentModel:     s.currentModel,
	}
	if len(s.performanceHistory) > 0 {
		last := s.performanceHistory[len(s.performanceHistory)-1]
		status.PerformanceScore = &last
	}
	return status
}

// SearchHistory 返回某用户最近的搜索记录。未配置 MySQL 时历史为空。
func (s *pipelineService) SearchHistory(userID string, limit int) ([]model.SearchLog, error) {
	if s.searchLogRepo == nil {
		return []model.SearchLog{}, nil
	}
	return s.searchLogRepo.FindRecent(userID, limit)
}

// writeSearchLog 异步落一条审计记录，失败只记日志。
func (s *pipelineService) writeSearchLog(req model.SearchRequest, resp *model.SearchResponse, elapsed time.Duration) {
	if s.searchLogRepo == nil {
		return
	}
	entry := &model.SearchLog{
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Query:         req.Query,
		EnhancedQuery: resp.EnhancedQuery,
		Answer:        resp.AIAnswer,
		Confidence:    string(resp.Confidence),
		ResultCount:   resp.TotalResults,
		LatencyMs:     elapsed.Milliseconds(),
	}
	go func() {
		if err := s.searchLogRepo.Create(entry); err != nil {
			log.Warnf("[PipelineService] 写入搜索记录失败: %v", err)
		}
	}()
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
