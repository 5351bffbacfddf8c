// Package metrics exposes Prometheus collectors for the lead crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal            *prometheus.CounterVec
	crawlerBytesTotal            *prometheus.CounterVec
	crawlerFetchSkipsTotal       *prometheus.CounterVec
	crawlerPolitenessWaitSeconds prometheus.Histogram
	leadsSavedTotal              *prometheus.CounterVec
	leadsRejectedTotal           *prometheus.CounterVec
	queueMessagesTotal           *prometheus.CounterVec
	discoveryProviderCallsTotal  *prometheus.CounterVec
	discoveryURLsTotal           prometheus.Counter
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec
	crawlerActiveWorkers         prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of fetch attempts, labeled by site and status class.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerFetchSkipsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_skips_total",
				Help: "Fetches skipped before network access, labeled by reason.",
			},
			[]string{"reason"},
		)

		crawlerPolitenessWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_politeness_wait_seconds",
				Help:    "Histogram of per-domain politeness waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		leadsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leads_saved_total",
				Help: "Total number of leads upserted, labeled by contact type.",
			},
			[]string{"contact_type"},
		)

		leadsRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leads_rejected_total",
				Help: "Total number of candidate leads rejected, labeled by reason.",
			},
			[]string{"reason"},
		)

		queueMessagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_total",
				Help: "Distributed queue messages, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		discoveryProviderCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_provider_calls_total",
				Help: "Search provider calls, labeled by provider and result.",
			},
			[]string{"provider", "result"},
		)

		discoveryURLsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_urls_total",
				Help: "Seed URLs produced by discovery.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of worker loops currently running.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// StatusClass buckets an HTTP status into "2xx".."5xx", or "error" for
// transport failures.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(site string, statusCode int, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, StatusClass(statusCode)).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveFetchSkip records a fetch skipped for reason ("cache", "budget").
func ObserveFetchSkip(reason string) {
	Init()
	crawlerFetchSkipsTotal.WithLabelValues(reason).Inc()
}

// ObservePolitenessWait records the time spent waiting on a domain limiter.
func ObservePolitenessWait(duration time.Duration) {
	Init()
	crawlerPolitenessWaitSeconds.Observe(duration.Seconds())
}

// ObserveLeadSaved increments the saved-lead counter.
func ObserveLeadSaved(contactType string) {
	Init()
	leadsSavedTotal.WithLabelValues(contactType).Inc()
}

// ObserveLeadRejected increments the rejected-lead counter.
func ObserveLeadRejected(reason string) {
	Init()
	leadsRejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveQueueMessage records a queue message outcome ("received", "acked",
// "poison", "sent").
func ObserveQueueMessage(outcome string) {
	Init()
	queueMessagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveProviderCall records a discovery provider call.
func ObserveProviderCall(provider string, ok bool) {
	Init()
	result := "ok"
	if !ok {
		result = "error"
	}
	discoveryProviderCallsTotal.WithLabelValues(provider, result).Inc()
}

// ObserveDiscoveredURLs adds n discovered seed URLs.
func ObserveDiscoveredURLs(n int) {
	Init()
	discoveryURLsTotal.Add(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlerActiveWorkers.Dec()
}
