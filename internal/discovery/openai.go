package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const (
	openAIEndpoint     = "https://api.openai.com/v1/responses"
	defaultOpenAIModel = "gpt-4o-mini"
)

var bareURLPattern = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)

// OpenAI asks a model with the web search tool for matching websites and
// collects the cited URLs.
type OpenAI struct {
	httpProvider
	model string
}

// NewOpenAI builds an OpenAI provider. An empty model selects the default.
func NewOpenAI(apiKey, model string, opts ...Option) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{httpProvider: newHTTPProvider("openai", apiKey, openAIEndpoint, opts), model: model}
}

type openAITool struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model string       `json:"model"`
	Tools []openAITool `json:"tools"`
	Input string       `json:"input"`
}

type openAIResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type        string `json:"type"`
			Text        string `json:"text"`
			Annotations []struct {
				Type string `json:"type"`
				URL  string `json:"url"`
			} `json:"annotations"`
		} `json:"content"`
	} `json:"output"`
}

// Search implements Provider.
func (o *OpenAI) Search(ctx context.Context, query string, count int) ([]string, error) {
	if !o.Configured() {
		return nil, fmt.Errorf("openai api key is not configured")
	}
	prompt := fmt.Sprintf(
		"Search the web and list up to %d official website URLs for: %s. Reply with one URL per line.",
		max(count, 1), query,
	)
	payload, err := json.Marshal(openAIRequest{
		Model: o.model,
		Tools: []openAITool{{Type: "web_search_preview"}},
		Input: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode openai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	var body openAIResponse
	if err := o.do(req, &body); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var urls []string
	add := func(u string) {
		u = strings.TrimRight(u, ".,;:")
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	for _, item := range body.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			for _, a := range c.Annotations {
				if a.Type == "url_citation" {
					add(a.URL)
				}
			}
			for _, u := range bareURLPattern.FindAllString(c.Text, -1) {
				add(u)
			}
		}
	}
	return truncate(urls, count), nil
}
