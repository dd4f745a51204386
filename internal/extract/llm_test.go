package extract_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-indexer/backend/internal/extract"
)

func newModelServer(t *testing.T, calls *atomic.Int32, model *string, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if m, ok := body["model"].(string); ok {
			*model = m
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAISummarizer(t *testing.T) {
	var calls atomic.Int32
	var model string
	srv := newModelServer(t, &calls, &model, `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1709283300,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop",
    "message": {"role": "assistant", "content": "  Storm closed ports.  "}}]
}`)

	s := extract.NewOpenAISummarizer("test-key", "gpt-4o-mini", 3,
		openaioption.WithBaseURL(srv.URL+"/"),
		openaioption.WithMaxRetries(0),
	)

	got, err := s.Summarize(context.Background(), extract.Page{Title: "Storm", Text: stormText})
	require.NoError(t, err)
	require.Equal(t, "Storm closed ports.", got)
	require.Equal(t, "gpt-4o-mini", model)

	got, err = s.Summarize(context.Background(), extract.Page{Title: "Empty"})
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, int32(1), calls.Load())
}

func TestOpenAISummarizerAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	s := extract.NewOpenAISummarizer("test-key", "gpt-4o-mini", 3,
		openaioption.WithBaseURL(srv.URL+"/"),
		openaioption.WithMaxRetries(0),
	)

	_, err := s.Summarize(context.Background(), extract.Page{Text: stormText})
	require.ErrorContains(t, err, "openai API error")
}

func TestAnthropicSummarizer(t *testing.T) {
	var calls atomic.Int32
	var model string
	srv := newModelServer(t, &calls, &model, `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-haiku-4-5",
  "content": [{"type": "text", "text": "Storm closed ports."}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`)

	s := extract.NewAnthropicSummarizer("test-key", "claude-haiku-4-5", 3,
		anthropicoption.WithBaseURL(srv.URL+"/"),
		anthropicoption.WithMaxRetries(0),
	)

	got, err := s.Summarize(context.Background(), extract.Page{Title: "Storm", Text: stormText})
	require.NoError(t, err)
	require.Equal(t, "Storm closed ports.", got)
	require.Equal(t, "claude-haiku-4-5", model)
	require.Equal(t, int32(1), calls.Load())
}
