package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"verona-ai-go/internal/service"
	"verona-ai-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// StreamHandler 负责处理 WebSocket 流式搜索连接。
type StreamHandler struct {
	searchService service.SearchService
}

// NewStreamHandler 创建一个新的 StreamHandler。
func NewStreamHandler(searchService service.SearchService) *StreamHandler {
	return &StreamHandler{searchService: searchService}
}

// chunkWriter 把生成模型的增量输出包装成 {"chunk": ...} 帧。
type chunkWriter struct {
	conn *websocket.Conn
}

func (w *chunkWriter) WriteMessage(messageType int, data []byte) error {
	frame, err := json.Marshal(map[string]string{"chunk": string(data)})
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, frame)
}

// Handle 处理一个传入的 WebSocket 连接。
// 每条文本消息视为一次查询，回答以增量帧流式下发，结束时发送 completion 通知。
func (h *StreamHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Info("[StreamHandler] WebSocket 连接已建立")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("[StreamHandler] 从 WebSocket 读取消息失败: %v", err)
			break
		}

		query := strings.TrimSpace(string(message))
		if query == "" {
			continue
		}
		log.Infof("[StreamHandler] 收到流式搜索请求: '%s'", query)

		err = h.searchService.StreamSearch(c.Request.Context(), query, &chunkWriter{conn: conn})
		if err != nil {
			log.Errorf("[StreamHandler] 流式搜索失败: %v", err)
			errFrame, _ := json.Marshal(map[string]string{
				"error": "Search is temporarily unavailable, please try again later",
			})
			_ = conn.WriteMessage(websocket.TextMessage, errFrame)
		}

		// 无论成功失败都发送 completion 通知，客户端据此收尾
		completion, _ := json.Marshal(map[string]interface{}{
			"type":      "completion",
			"status":    "finished",
			"timestamp": time.Now().UnixMilli(),
		})
		if err := conn.WriteMessage(websocket.TextMessage, completion); err != nil {
			break
		}
	}
}
