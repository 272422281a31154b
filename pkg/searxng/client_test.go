package searxng

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "jane smith board certification", q.Get("q"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "general", q.Get("categories"))
		w.Write([]byte(`{"results": [
			{"title": "Result A", "url": "https://a.example", "content": "...", "engine": "brave"},
			{"title": "Result B", "url": "https://b.example", "content": "..."},
			{"title": "Result C", "url": "https://c.example", "content": "..."}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	got, err := c.Search(context.Background(), "jane smith board certification", "general", 2)
	require.NoError(t, err)
	require.Len(t, got, 2, "results are truncated to numResults")
	assert.Equal(t, "Result A", got[0].Title)
	assert.Equal(t, "brave", got[0].Engine)
}

func TestSearchNoCategories(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("categories"))
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	got, err := c.Search(context.Background(), "query", "", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "query", "general", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}
