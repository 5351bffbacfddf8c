package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave searches the Brave Search web API.
type Brave struct {
	httpProvider
}

// NewBrave builds a Brave provider; an empty key leaves it unconfigured.
func NewBrave(apiKey string, opts ...Option) *Brave {
	return &Brave{httpProvider: newHTTPProvider("brave", apiKey, braveEndpoint, opts)}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements Provider.
func (b *Brave) Search(ctx context.Context, query string, count int) ([]string, error) {
	if !b.Configured() {
		return nil, fmt.Errorf("brave api key is not configured")
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(min(max(count, 1), 20)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	var body braveResponse
	if err := b.do(req, &body); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(body.Web.Results))
	for _, r := range body.Web.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return truncate(urls, count), nil
}
