package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper searches Google through the Serper API.
type Serper struct {
	httpProvider
}

// NewSerper builds a Serper provider; an empty key leaves it unconfigured.
func NewSerper(apiKey string, opts ...Option) *Serper {
	return &Serper{httpProvider: newHTTPProvider("serper", apiKey, serperEndpoint, opts)}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Link string `json:"link"`
	} `json:"organic"`
}

// Search implements Provider.
func (s *Serper) Search(ctx context.Context, query string, count int) ([]string, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("serper api key is not configured")
	}
	payload, err := json.Marshal(serperRequest{Q: query, Num: max(count, 1)})
	if err != nil {
		return nil, fmt.Errorf("encode serper request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build serper request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.apiKey)

	var body serperResponse
	if err := s.do(req, &body); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(body.Organic))
	for _, r := range body.Organic {
		if r.Link != "" {
			urls = append(urls, r.Link)
		}
	}
	return truncate(urls, count), nil
}
