// Package llm provides a client for the Anthropic Messages API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"verona-ai-go/internal/config"
	"verona-ai-go/pkg/log"

	"github.com/gorilla/websocket"
)

// MessageWriter defines an interface for writing streamed answer chunks.
// This allows both a standard websocket.Conn and test interceptors to be used.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Client 定义了答案生成模型的调用接口。
type Client interface {
	// GenerateAnswer 以低温度一次性生成完整回答。
	GenerateAnswer(ctx context.Context, prompt string) (string, error)
	// StreamAnswer 以 SSE 流式生成回答，分块写入 writer。
	StreamAnswer(ctx context.Context, prompt string, writer MessageWriter) error
}

type anthropicClient struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

// NewClient creates a new Anthropic client from config.
func NewClient(cfg config.AnthropicConfig) Client {
	return &anthropicClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (c *anthropicClient) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create messages request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)
	return req, nil
}

// GenerateAnswer calls the Messages API and returns the concatenated text blocks.
func (c *anthropicClient) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	log.Infof("[LLMClient] 开始调用 Anthropic API, model: %s, prompt_len: %d", c.cfg.Model, len(prompt))
	reqBody := messagesRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    []message{{Role: "user", Content: prompt}},
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal messages request: %w", err)
	}

	req, err := c.newRequest(ctx, reqBytes)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[LLMClient] 调用 Anthropic API 失败, error: %v", err)
		return "", fmt.Errorf("failed to call anthropic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.Errorf("[LLMClient] Anthropic API 返回非 200 状态码: %s", resp.Status)
		return "", fmt.Errorf("anthropic api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("failed to decode messages response: %w", err)
	}

	var sb strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("received empty answer from api")
	}

	log.Infof("[LLMClient] 成功获取回答, answer_len: %d", sb.Len())
	return sb.String(), nil
}

// StreamAnswer calls the Messages API with stream=true and forwards text deltas.
func (c *anthropicClient) StreamAnswer(ctx context.Context, prompt string, writer MessageWriter) error {
	reqBody := messagesRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Stream:      true,
		Messages:    []message{{Role: "user", Content: prompt}},
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal messages request: %w", err)
	}

	req, err := c.newRequest(ctx, reqBytes)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call anthropic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("anthropic api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				if err := writer.WriteMessage(websocket.TextMessage, []byte(event.Delta.Text)); err != nil {
					return fmt.Errorf("failed to write message to websocket: %w", err)
				}
			}
		case "message_stop":
			return nil
		}
	}
	return nil
}
