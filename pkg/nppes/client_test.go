package nppes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryResponse = `{
	"result_count": 1,
	"results": [{
		"number": "1234567890",
		"basic": {"first_name": "JANE", "last_name": "SMITH"},
		"addresses": [
			{"address_purpose": "MAILING", "address_1": "PO BOX 42", "city": "SPRINGFIELD",
			 "state": "IL", "postal_code": "62701", "telephone_number": "555-000-0000"},
			{"address_purpose": "LOCATION", "address_1": "123 MAIN ST", "city": "SPRINGFIELD",
			 "state": "IL", "postal_code": "62704", "telephone_number": "555-123-4567"}
		],
		"taxonomies": [
			{"code": "101Y00000X", "desc": "Counselor", "primary": false},
			{"code": "207R00000X", "desc": "Internal Medicine", "primary": true}
		]
	}]
}`

func TestSearchByNPI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1234567890", r.URL.Query().Get("number"))
		assert.Equal(t, "2.1", r.URL.Query().Get("version"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Write([]byte(registryResponse))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10))
	got, err := c.Search(context.Background(), Query{NPI: "1234567890", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, "1234567890", p.NPI)
	assert.Equal(t, "JANE", p.FirstName)
	// The practice location wins over the mailing address.
	assert.Equal(t, "123 MAIN ST", p.AddressLine1)
	assert.Equal(t, "62704", p.PostalCode)
	assert.Equal(t, "555-123-4567", p.Phone)
	// The primary taxonomy wins.
	assert.Equal(t, "Internal Medicine", p.Taxonomy)
}

func TestSearchByName(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Jane", q.Get("first_name"))
		assert.Equal(t, "Smith", q.Get("last_name"))
		assert.Equal(t, "IL", q.Get("state"))
		assert.Empty(t, q.Get("number"))
		assert.Equal(t, "10", q.Get("limit"))
		w.Write([]byte(`{"result_count": 0, "results": []}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10))
	got, err := c.Search(context.Background(), Query{FirstName: "Jane", LastName: "Smith", State: "IL"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10))
	_, err := c.Search(context.Background(), Query{NPI: "1234567890"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 429")
}

func TestSearchMalformedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10))
	_, err := c.Search(context.Background(), Query{NPI: "1234567890"})
	assert.Error(t, err)
}
