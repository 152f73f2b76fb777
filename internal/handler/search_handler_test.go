package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"verona-ai-go/internal/model"
	"verona-ai-go/pkg/llm"
	"verona-ai-go/pkg/tasks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePipeline 是 service.PipelineService 的测试替身。
type fakePipeline struct {
	resp    *model.SearchResponse
	err     error
	history []model.SearchLog
}

func (f *fakePipeline) Search(context.Context, model.SearchRequest) (*model.SearchResponse, error) {
	return f.resp, f.err
}

func (f *fakePipeline) Process(context.Context, tasks.OptimizeTask) error { return nil }
func (f *fakePipeline) ManualOptimize()                                   {}
func (f *fakePipeline) HandleModelChange(string)                          {}
func (f *fakePipeline) Status() model.PipelineStatus                      { return model.PipelineStatus{} }
func (f *fakePipeline) SearchHistory(string, int) ([]model.SearchLog, error) {
	return f.history, nil
}

// fakeSearch 是 service.SearchService 的测试替身。
type fakeSearch struct {
	chunks []model.DocumentChunk
	err    error
}

func (f *fakeSearch) Search(context.Context, model.SearchRequest) (*model.SearchResponse, error) {
	return nil, nil
}

func (f *fakeSearch) StreamSearch(context.Context, string, llm.MessageWriter) error { return nil }

func (f *fakeSearch) QuickSearch(context.Context, string) ([]model.DocumentChunk, error) {
	return f.chunks, f.err
}

func setupSearchRouter(pipeline *fakePipeline, search *fakeSearch) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSearchHandler(pipeline, search)
	r.POST("/api/v1/search", h.Search)
	r.GET("/api/v1/search", h.QuickSearch)
	r.GET("/api/v1/search/history", h.History)
	return r
}

func TestSearchEmptyQuery(t *testing.T) {
	r := setupSearchRouter(&fakePipeline{}, &fakeSearch{})

	for _, body := range []string{`{}`, `{"query": "   "}`, `not json`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"success": false, "error": "Search query is required"}`, w.Body.String())
	}
}

func TestSearchSuccess(t *testing.T) {
	pipeline := &fakePipeline{resp: &model.SearchResponse{
		Success:      true,
		Query:        "investment in Loopit",
		AIAnswer:     "Loopit received $500,000.",
		Confidence:   model.ConfidenceHigh,
		Sources:      []string{"Loopit"},
		TotalResults: 6,
		SearchType:   "hybrid",
	}}
	r := setupSearchRouter(pipeline, &fakeSearch{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query": "investment in Loopit"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp model.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Loopit received $500,000.", resp.AIAnswer)
	assert.Equal(t, model.ConfidenceHigh, resp.Confidence)
	assert.Equal(t, 6, resp.TotalResults)
}

func TestSearchServiceError(t *testing.T) {
	r := setupSearchRouter(&fakePipeline{err: errors.New("store unreachable")}, &fakeSearch{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query": "anything"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Search failed", body["error"])
	// 非 release 模式下附带错误细节
	assert.Equal(t, "store unreachable", body["details"])
}

func TestQuickSearch(t *testing.T) {
	search := &fakeSearch{chunks: []model.DocumentChunk{{ID: "c1", CompanyName: "Wonde"}}}
	r := setupSearchRouter(&fakePipeline{}, search)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=wonde", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool                  `json:"success"`
		Query   string                `json:"query"`
		Results []model.DocumentChunk `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "wonde", body.Query)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "Wonde", body.Results[0].CompanyName)
}

func TestQuickSearchMissingParam(t *testing.T) {
	r := setupSearchRouter(&fakePipeline{}, &fakeSearch{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success": false, "error": "Query parameter q is required"}`, w.Body.String())
}

func TestSearchHistory(t *testing.T) {
	pipeline := &fakePipeline{history: []model.SearchLog{{Query: "investment", UserID: "analyst-1"}}}
	r := setupSearchRouter(pipeline, &fakeSearch{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/history?userId=analyst-1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool              `json:"success"`
		History []model.SearchLog `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.History, 1)
	assert.Equal(t, "investment", body.History[0].Query)
}
