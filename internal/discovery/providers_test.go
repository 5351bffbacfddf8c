package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesReader(s string) io.Reader { return bytes.NewReader([]byte(s)) }

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "music library", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))
		_, _ = io.WriteString(w, `{"web":{"results":[{"url":"https://a.com/"},{"url":""},{"url":"https://b.com/"},{"url":"https://c.com/"}]}}`)
	}))
	defer srv.Close()

	urls, err := NewBrave("secret", WithEndpoint(srv.URL)).Search(context.Background(), "music library", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com/", "https://b.com/"}, urls)
}

func TestSerperSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		var req serperRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sync licensing", req.Q)
		assert.Equal(t, 5, req.Num)
		_, _ = io.WriteString(w, `{"organic":[{"link":"https://cueforge.io/"},{"link":"https://tidewater.net/"}]}`)
	}))
	defer srv.Close()

	urls, err := NewSerper("secret", WithEndpoint(srv.URL)).Search(context.Background(), "sync licensing", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cueforge.io/", "https://tidewater.net/"}, urls)
}

func TestOpenAISearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultOpenAIModel, req.Model)
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "web_search_preview", req.Tools[0].Type)
		_, _ = io.WriteString(w, `{"output":[
			{"type":"web_search_call"},
			{"type":"message","content":[{"type":"output_text",
				"text":"1. https://harbor-music.com/licensing.\n2. https://cueforge.io/",
				"annotations":[{"type":"url_citation","url":"https://cueforge.io/"}]}]}
		]}`)
	}))
	defer srv.Close()

	urls, err := NewOpenAI("secret", "", WithEndpoint(srv.URL)).Search(context.Background(), "production music", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cueforge.io/", "https://harbor-music.com/licensing"}, urls)
}

func TestProviderFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "broken" {
			_, _ = io.WriteString(w, `{not json`)
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	brave := NewBrave("secret", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	_, err := brave.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	_, err = brave.Search(context.Background(), "broken", 5)
	assert.Error(t, err)

	unconfigured := Providers("", "", "", "")
	require.Len(t, unconfigured, 3)
	for _, p := range unconfigured {
		assert.False(t, p.Configured(), p.Name())
		_, err := p.Search(context.Background(), "q", 1)
		assert.Error(t, err, p.Name())
	}
}
