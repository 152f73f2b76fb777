// Package braintrust 提供了向 Braintrust 上报评测事件的轻量客户端。
// 官方没有 Go SDK，这里直接封装其 REST API。
package braintrust

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"
	"verona-ai-go/internal/config"
	"verona-ai-go/pkg/log"
)

// Span 收集单次被追踪操作的输入输出与评分。
type Span struct {
	Input    interface{}
	Output   interface{}
	Scores   map[string]float64
	Metadata map[string]interface{}
}

// SetScore 记录一项评分。非有限值直接丢弃，其余钳制到 [0,1]。
func (s *Span) SetScore(name string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	if s.Scores == nil {
		s.Scores = make(map[string]float64)
	}
	s.Scores[name] = math.Max(0, math.Min(1, value))
}

// Client 上报评测事件。未配置 APIKey 时所有操作透明旁路。
type Client struct {
	cfg     config.BraintrustConfig
	client  *http.Client
	enabled bool

	mu        sync.Mutex
	projectID string
}

// NewClient 创建 Braintrust 客户端。APIKey 为空时返回旁路客户端。
func NewClient(cfg config.BraintrustConfig) *Client {
	c := &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		enabled: cfg.APIKey != "",
	}
	if !c.enabled {
		log.Info("[Braintrust] 未配置 APIKey, 遥测上报已旁路")
	}
	return c
}

// Enabled 返回遥测是否开启。
func (c *Client) Enabled() bool {
	return c.enabled
}

// Traced 执行 fn 并把耗时、评分与输入输出异步上报。
// 上报永不影响业务结果：fn 的错误原样返回，上报失败只记日志。
func (c *Client) Traced(ctx context.Context, name string, fn func(ctx context.Context, span *Span) error) error {
	span := &Span{}
	if !c.enabled {
		return fn(ctx, span)
	}

	start := time.Now()
	err := fn(ctx, span)
	elapsed := time.Since(start)

	// 响应时间作为一项评分：1 秒内满分，随耗时衰减
	span.SetScore("responseTime", math.Min(1, float64(time.Second)/float64(elapsed)))

	event := map[string]interface{}{
		"input":    span.Input,
		"output":   span.Output,
		"scores":   span.Scores,
		"metadata": span.Metadata,
		"metrics": map[string]interface{}{
			"duration": elapsed.Seconds(),
		},
		"span_attributes": map[string]interface{}{
			"name": name,
		},
	}
	if err != nil {
		event["error"] = err.Error()
		log.Errorf("[Braintrust] 被追踪操作失败: %s, error: %v", name, err)
	}

	go c.submit(event)

	return err
}

// submit 在后台把单个事件写入 project logs。
func (c *Client) submit(event map[string]interface{}) {
	projectID, err := c.resolveProject()
	if err != nil {
		log.Warnf("[Braintrust] 解析项目失败: %v", err)
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"events": []interface{}{event},
	})
	if err != nil {
		log.Warnf("[Braintrust] 序列化事件失败: %v", err)
		return
	}

	url := fmt.Sprintf("%s/v1/project_logs/%s/insert", c.cfg.BaseURL, projectID)
	if err := c.post(url, body, nil); err != nil {
		log.Warnf("[Braintrust] 上报事件失败: %v", err)
	}
}

// resolveProject 按名称注册（或取回已存在的）项目，缓存其 id。
func (c *Client) resolveProject() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.projectID != "" {
		return c.projectID, nil
	}

	body, _ := json.Marshal(map[string]string{"name": c.cfg.ProjectName})
	var result struct {
		ID string `json:"id"`
	}
	if err := c.post(c.cfg.BaseURL+"/v1/project", body, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("project register returned empty id")
	}
	c.projectID = result.ID
	return c.projectID, nil
}

func (c *Client) post(url string, body []byte, out interface{}) error {
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("braintrust api returned status %s", resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
