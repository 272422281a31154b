// Package webscrape extracts contact details from provider websites.
package webscrape

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client scrapes a provider website for contact information.
type Client interface {
	Scrape(ctx context.Context, pageURL string) (*Result, error)
}

// Result holds the contact details found on a page. Absent fields are
// empty strings; Services is capped at ten entries.
type Result struct {
	URL      string   `json:"url"`
	Phone    string   `json:"phone,omitempty"`
	Email    string   `json:"email,omitempty"`
	Address  string   `json:"address,omitempty"`
	Services []string `json:"services,omitempty"`
}

var (
	phoneRe   = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailRe   = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	addressRe = regexp.MustCompile(`(?is)<(?:address|div|span)[^>]*(?:class|id)="[^"]*(?:address|location)[^"]*"[^>]*>(.*?)</(?:address|div|span)>`)
	serviceRe = regexp.MustCompile(`(?is)<(?:div|section|ul)[^>]*class="[^"]*(?:service|specialty|treatment)[^"]*"[^>]*>(.*?)</(?:div|section|ul)>`)
	itemRe    = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	tagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
)

const maxServices = 10

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent overrides the request User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewClient creates a website scrape client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "directory-cli/1.0 (+provider directory validation)",
		limiter:   rate.NewLimiter(rate.Limit(1), 2),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Scrape(ctx context.Context, pageURL string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "webscrape: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "webscrape: create request %s", pageURL)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "webscrape: fetch %s", pageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("webscrape: %s returned status %d", pageURL, resp.StatusCode)
	}

	// 2MB cap; provider sites are small and contact details live near
	// the top of the page anyway.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, eris.Wrapf(err, "webscrape: read %s", pageURL)
	}

	return Extract(pageURL, string(body)), nil
}

// Extract pulls contact details out of raw HTML. Split from Scrape so the
// extraction rules are testable without a live fetch.
func Extract(pageURL, html string) *Result {
	return &Result{
		URL:      pageURL,
		Phone:    phoneRe.FindString(html),
		Email:    extractEmail(html),
		Address:  extractAddress(html),
		Services: extractServices(html),
	}
}

func extractEmail(html string) string {
	emails := emailRe.FindAllString(html, -1)
	var fallback string
	for _, e := range emails {
		lower := strings.ToLower(e)
		if strings.Contains(lower, "example") || strings.Contains(lower, "noreply") {
			if fallback == "" {
				fallback = e
			}
			continue
		}
		return e
	}
	return fallback
}

func extractAddress(html string) string {
	m := addressRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	text := strings.TrimSpace(stripTags(m[1]))
	// Addresses are long-ish and contain a street number.
	if len(text) < 20 || !strings.ContainsAny(text, "0123456789") {
		return ""
	}
	return text
}

func extractServices(html string) []string {
	var services []string
	for _, section := range serviceRe.FindAllStringSubmatch(html, -1) {
		for _, item := range itemRe.FindAllStringSubmatch(section[1], -1) {
			text := strings.TrimSpace(stripTags(item[1]))
			if len(text) > 3 && len(text) < 100 {
				services = append(services, text)
			}
			if len(services) >= maxServices {
				return services
			}
		}
	}
	return services
}

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}
