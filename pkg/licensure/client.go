// Package licensure looks up provider licenses from state medical board
// endpoints. Boards expose wildly different interfaces; this client talks
// to a normalizing gateway configured per deployment.
package licensure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client looks up provider license status.
type Client interface {
	Lookup(ctx context.Context, q Query) (*Result, error)
}

// Query identifies a license record.
type Query struct {
	LicenseNumber string
	State         string
	LicenseType   string // defaults to "MD"
}

// Result is a normalized license record. Verified is false when the
// state's board could not be queried authoritatively.
type Result struct {
	LicenseNumber       string     `json:"license_number"`
	State               string     `json:"state"`
	LicenseType         string     `json:"license_type"`
	Status              string     `json:"status"`
	IssueDate           *time.Time `json:"issue_date,omitempty"`
	ExpiryDate          *time.Time `json:"expiry_date,omitempty"`
	DisciplinaryActions []string   `json:"disciplinary_actions,omitempty"`
	Verified            bool       `json:"verified"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a license lookup client against the given gateway URL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, q Query) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "licensure: rate limit wait")
	}

	licenseType := q.LicenseType
	if licenseType == "" {
		licenseType = "MD"
	}

	params := url.Values{}
	params.Set("license_number", q.LicenseNumber)
	params.Set("state", q.State)
	params.Set("license_type", licenseType)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/lookup?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "licensure: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "licensure: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "licensure: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("licensure: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "licensure: unmarshal response")
	}

	return &result, nil
}
