package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DeafMist/news-indexer/backend/internal/fetcher"
	"github.com/stretchr/testify/require"
)

func TestFetchSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<urlset/>"))
	}))
	defer srv.Close()

	body, err := fetcher.New("nscrpr", time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "<urlset/>", string(body))
	require.Equal(t, "nscrpr", gotUA)
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetcher.New("nscrpr", time.Second).Fetch(context.Background(), srv.URL)

	var fe *fetcher.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusNotFound, fe.StatusCode)
	require.Equal(t, srv.URL, fe.URL)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := fetcher.New("nscrpr", 20*time.Millisecond).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetchSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := fetcher.New("nscrpr", time.Second, fetcher.WithMaxBytes(32)).Fetch(context.Background(), srv.URL)
	require.ErrorContains(t, err, "size limit")
}
