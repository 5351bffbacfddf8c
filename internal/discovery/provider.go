package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultProviderTimeout = 20 * time.Second
	maxResponseBytes       = 4 << 20
)

// Provider issues one search call and returns result URLs. Any non-success
// response is an error; the caller treats it as zero results.
type Provider interface {
	Name() string
	// Configured reports whether credentials are present.
	Configured() bool
	Search(ctx context.Context, query string, count int) ([]string, error)
}

// Option customizes an HTTP search provider.
type Option func(*httpProvider)

// WithEndpoint overrides the API endpoint (tests, proxies).
func WithEndpoint(endpoint string) Option {
	return func(p *httpProvider) { p.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *httpProvider) {
		if client != nil {
			p.client = client
		}
	}
}

type httpProvider struct {
	name     string
	apiKey   string
	endpoint string
	client   *http.Client
}

func newHTTPProvider(name, apiKey, endpoint string, opts []Option) httpProvider {
	p := httpProvider{
		name:     name,
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultProviderTimeout},
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *httpProvider) Name() string { return p.name }

func (p *httpProvider) Configured() bool { return p.apiKey != "" }

// do sends req and decodes a 200 JSON body into out.
func (p *httpProvider) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("%s returned status %d", p.name, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s decode response: %w", p.name, err)
	}
	return nil
}

func truncate(urls []string, count int) []string {
	if count > 0 && len(urls) > count {
		return urls[:count]
	}
	return urls
}
