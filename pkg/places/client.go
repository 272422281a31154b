// Package places looks up provider business listings via the Google
// Places text search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// Client looks up provider location and phone from Google Places.
type Client interface {
	Lookup(ctx context.Context, q Query) (*Result, error)
}

// Query identifies the listing to search for. Name is required; the
// address parts narrow the text query when present.
type Query struct {
	Name    string
	Address string
	City    string
	State   string
}

// Result is the best-matching listing. Verified is false when no listing
// matched the query.
type Result struct {
	FormattedAddress string `json:"formatted_address,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Verified         bool   `json:"verified"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Google Places client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery string `json:"textQuery"`
}

type textSearchResponse struct {
	Places []struct {
		FormattedAddress      string `json:"formattedAddress"`
		NationalPhoneNumber   string `json:"nationalPhoneNumber"`
		BusinessStatus        string `json:"businessStatus"`
		InternationalPhoneNum string `json:"internationalPhoneNumber"`
	} `json:"places"`
}

func (c *httpClient) Lookup(ctx context.Context, q Query) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limit wait")
	}

	parts := []string{q.Name}
	for _, p := range []string{q.Address, q.City, q.State} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	body, err := json.Marshal(textSearchRequest{TextQuery: strings.Join(parts, ", ")})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", "places.formattedAddress,places.nationalPhoneNumber,places.businessStatus")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded textSearchResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	if len(decoded.Places) == 0 {
		return &Result{Verified: false}, nil
	}

	best := decoded.Places[0]
	return &Result{
		FormattedAddress: best.FormattedAddress,
		Phone:            best.NationalPhoneNumber,
		Verified:         true,
	}, nil
}
