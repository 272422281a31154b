package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Equal(t, "places.formattedAddress,places.nationalPhoneNumber,places.businessStatus", r.Header.Get("X-Goog-FieldMask"))

		var req struct {
			TextQuery string `json:"textQuery"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Jane Smith MD, 123 Main St, Springfield, IL", req.TextQuery)

		w.Write([]byte(`{"places": [
			{"formattedAddress": "123 Main St, Springfield, IL 62704, USA",
			 "nationalPhoneNumber": "(555) 123-4567", "businessStatus": "OPERATIONAL"},
			{"formattedAddress": "456 Oak Ave", "nationalPhoneNumber": "(555) 999-9999"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.Lookup(context.Background(), Query{
		Name:    "Jane Smith MD",
		Address: "123 Main St",
		City:    "Springfield",
		State:   "IL",
	})
	require.NoError(t, err)

	assert.True(t, got.Verified)
	assert.Equal(t, "123 Main St, Springfield, IL 62704, USA", got.FormattedAddress)
	assert.Equal(t, "(555) 123-4567", got.Phone)
}

func TestLookupNoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.Lookup(context.Background(), Query{Name: "Nobody"})
	require.NoError(t, err)
	assert.False(t, got.Verified)
	assert.Empty(t, got.FormattedAddress)
}

func TestLookupSkipsEmptyQueryParts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TextQuery string `json:"textQuery"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Jane Smith MD, IL", req.TextQuery)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), Query{Name: "Jane Smith MD", State: "IL"})
	require.NoError(t, err)
}

func TestLookupUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"status": "PERMISSION_DENIED"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), Query{Name: "Jane Smith MD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}
