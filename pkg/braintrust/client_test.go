package braintrust

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"verona-ai-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetScoreClampsAndDrops(t *testing.T) {
	s := &Span{}
	s.SetScore("over", 1.5)
	s.SetScore("under", -0.2)
	s.SetScore("ok", 0.7)
	s.SetScore("nan", math.NaN())
	s.SetScore("inf", math.Inf(1))

	assert.Equal(t, 1.0, s.Scores["over"])
	assert.Equal(t, 0.0, s.Scores["under"])
	assert.Equal(t, 0.7, s.Scores["ok"])
	assert.NotContains(t, s.Scores, "nan", "非有限值直接丢弃")
	assert.NotContains(t, s.Scores, "inf")
}

func TestTracedBypassWithoutAPIKey(t *testing.T) {
	c := NewClient(config.BraintrustConfig{})
	assert.False(t, c.Enabled())

	called := false
	err := c.Traced(context.Background(), "rag-search", func(_ context.Context, span *Span) error {
		called = true
		span.Input = "query"
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called, "旁路模式下业务函数照常执行")
}

func TestTracedReturnsFnError(t *testing.T) {
	c := NewClient(config.BraintrustConfig{})
	wantErr := errors.New("search failed")

	err := c.Traced(context.Background(), "rag-search", func(context.Context, *Span) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestTracedSubmitsEvent(t *testing.T) {
	events := make(chan map[string]interface{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/project":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "proj-1"})
		case "/v1/project_logs/proj-1/insert":
			var payload struct {
				Events []map[string]interface{} `json:"events"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			require.Len(t, payload.Events, 1)
			events <- payload.Events[0]
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(config.BraintrustConfig{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		ProjectName: "VeronaAI",
	})
	require.True(t, c.Enabled())

	err := c.Traced(context.Background(), "rag-search", func(_ context.Context, span *Span) error {
		span.Input = "investment in Loopit"
		span.Output = "The investment was $500,000."
		span.SetScore("relevance", 0.9)
		return nil
	})
	require.NoError(t, err)

	select {
	case event := <-events:
		assert.Equal(t, "investment in Loopit", event["input"])
		assert.Equal(t, "The investment was $500,000.", event["output"])

		scores, ok := event["scores"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, 0.9, scores["relevance"])
		assert.Contains(t, scores, "responseTime", "耗时评分自动附加")

		attrs, ok := event["span_attributes"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "rag-search", attrs["name"])
		assert.NotContains(t, event, "error")
	case <-time.After(3 * time.Second):
		t.Fatal("事件未在超时前上报")
	}
}
