// Package nppes provides access to the CMS NPPES NPI registry API.
package nppes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://npiregistry.cms.hhs.gov/api"

// apiVersion is the NPPES API version pinned by this client.
const apiVersion = "2.1"

// Client searches the NPI registry for healthcare providers.
type Client interface {
	Search(ctx context.Context, q Query) ([]Provider, error)
}

// Query holds the NPPES search filters. Zero-value fields are omitted.
type Query struct {
	NPI              string
	FirstName        string
	LastName         string
	OrganizationName string
	City             string
	State            string
	PostalCode       string
	Taxonomy         string
	Limit            int
}

// Provider is a single registry result, flattened to the fields the
// pipeline corroborates against.
type Provider struct {
	NPI              string `json:"npi"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	OrganizationName string `json:"organization_name,omitempty"`
	Phone            string `json:"phone,omitempty"`
	AddressLine1     string `json:"address_line1,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	PostalCode       string `json:"postal_code,omitempty"`
	Taxonomy         string `json:"taxonomy,omitempty"`
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

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an NPPES registry client. The registry is a public
// API; the default limiter stays well under its documented courtesy rate.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
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

// nppesResponse mirrors the registry's wire format.
type nppesResponse struct {
	ResultCount int           `json:"result_count"`
	Results     []nppesResult `json:"results"`
}

type nppesResult struct {
	Number string `json:"number"`
	Basic  struct {
		FirstName        string `json:"first_name"`
		LastName         string `json:"last_name"`
		OrganizationName string `json:"organization_name"`
	} `json:"basic"`
	Addresses []struct {
		AddressPurpose  string `json:"address_purpose"`
		Address1        string `json:"address_1"`
		City            string `json:"city"`
		State           string `json:"state"`
		PostalCode      string `json:"postal_code"`
		TelephoneNumber string `json:"telephone_number"`
	} `json:"addresses"`
	Taxonomies []struct {
		Code    string `json:"code"`
		Desc    string `json:"desc"`
		Primary bool   `json:"primary"`
	} `json:"taxonomies"`
}

func (c *httpClient) Search(ctx context.Context, q Query) ([]Provider, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nppes: rate limit wait")
	}

	params := url.Values{}
	params.Set("version", apiVersion)
	setIfPresent(params, "number", q.NPI)
	setIfPresent(params, "first_name", q.FirstName)
	setIfPresent(params, "last_name", q.LastName)
	setIfPresent(params, "organization_name", q.OrganizationName)
	setIfPresent(params, "city", q.City)
	setIfPresent(params, "state", q.State)
	setIfPresent(params, "postal_code", q.PostalCode)
	setIfPresent(params, "taxonomy_description", q.Taxonomy)
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nppes: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nppes: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nppes: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("nppes: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var decoded nppesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, eris.Wrap(err, "nppes: unmarshal response")
	}

	providers := make([]Provider, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		providers = append(providers, flatten(r))
	}
	return providers, nil
}

// flatten picks the location address and primary taxonomy from a raw
// registry result.
func flatten(r nppesResult) Provider {
	p := Provider{
		NPI:              r.Number,
		FirstName:        r.Basic.FirstName,
		LastName:         r.Basic.LastName,
		OrganizationName: r.Basic.OrganizationName,
	}

	for _, a := range r.Addresses {
		// Prefer the practice location over the mailing address.
		if a.AddressPurpose == "LOCATION" || p.AddressLine1 == "" {
			p.AddressLine1 = a.Address1
			p.City = a.City
			p.State = a.State
			p.PostalCode = a.PostalCode
			p.Phone = a.TelephoneNumber
		}
		if a.AddressPurpose == "LOCATION" {
			break
		}
	}

	for _, t := range r.Taxonomies {
		if t.Primary || p.Taxonomy == "" {
			p.Taxonomy = t.Desc
		}
		if t.Primary {
			break
		}
	}

	return p
}

func setIfPresent(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
