package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-indexer/backend/internal/config"
	"github.com/DeafMist/news-indexer/backend/internal/elasticsearch"
	"github.com/DeafMist/news-indexer/backend/internal/logger"
	"github.com/DeafMist/news-indexer/backend/internal/models"
)

type stubSearcher struct {
	healthErr error
	searchErr error
	params    elasticsearch.SearchParams
}

func (s *stubSearcher) Health(context.Context) error { return s.healthErr }

func (s *stubSearcher) SearchArticles(_ context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error) {
	s.params = params
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return &elasticsearch.SearchResult{
		Total: 1,
		Items: []models.ArticleDocument{{Title: "Storm closes ports", Publication: "Example Post"}},
	}, nil
}

func newTestServer(es *stubSearcher) http.Handler {
	s := &server{
		log: logger.Discard(),
		cfg: &config.API{DefaultPage: 20, MaxPage: 50},
		es:  es,
	}
	return s.routes()
}

func TestHandleHealth(t *testing.T) {
	es := &stubSearcher{}
	rec := httptest.NewRecorder()
	newTestServer(es).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	es.healthErr = errors.New("cluster red")
	rec = httptest.NewRecorder()
	newTestServer(es).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSearchParams(t *testing.T) {
	es := &stubSearcher{}
	req := httptest.NewRequest(http.MethodGet,
		"/articles?q=storm&publication=Example+Post&keywords=weather,+ports&from=10&size=500&sort=indexed_at:asc&start=2024-03-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	newTestServer(es).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "storm", es.params.Query)
	require.Equal(t, "Example Post", es.params.Publication)
	require.Equal(t, "weather ports", es.params.Keywords)
	require.Equal(t, 10, es.params.From)
	require.Equal(t, 50, es.params.Size)
	require.Equal(t, "indexed_at:asc", es.params.Sort)
	require.NotNil(t, es.params.Start)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), es.params.Start.UTC())
	require.Nil(t, es.params.End)

	var body searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, int64(1), body.Total)
	require.Equal(t, "Storm closes ports", body.Items[0].Title)
}

func TestHandleSearchDefaults(t *testing.T) {
	es := &stubSearcher{}
	rec := httptest.NewRecorder()
	newTestServer(es).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, es.params.From)
	require.Equal(t, 20, es.params.Size)
}

func TestHandleSearchErrors(t *testing.T) {
	es := &stubSearcher{}
	rec := httptest.NewRecorder()
	newTestServer(es).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles?start=yesterday", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	es.searchErr = errors.New("unsupported sort field")
	rec = httptest.NewRecorder()
	newTestServer(es).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClampInt(t *testing.T) {
	require.Equal(t, 20, clampInt("", 20, 50))
	require.Equal(t, 20, clampInt("abc", 20, 50))
	require.Equal(t, 20, clampInt("-3", 20, 50))
	require.Equal(t, 50, clampInt("99", 20, 50))
	require.Equal(t, 7, clampInt("7", 20, 50))
}
