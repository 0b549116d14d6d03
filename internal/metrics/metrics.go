// Package metrics exposes Prometheus collectors for the siteclone client.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	archiveDownloadsTotal      *prometheus.CounterVec
	archiveBytesTotal          prometheus.Counter
	submissionWaitSeconds      *prometheus.HistogramVec
	channelReconnectsTotal     prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteclone_http_requests_total",
				Help: "Total number of status API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siteclone_http_request_duration_seconds",
				Help:    "Histogram of status API latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)

		archiveDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteclone_archive_downloads_total",
				Help: "Total number of archive retrievals, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		archiveBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "siteclone_archive_bytes_total",
				Help: "Total number of archive bytes written to disk.",
			},
		)

		submissionWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siteclone_submission_wait_seconds",
				Help:    "Histogram of time spent waiting on the submission throttle.",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"host"},
		)

		channelReconnectsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "siteclone_channel_dial_retries_total",
				Help: "Total number of retried dials of the real-time channel.",
			},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL.
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveArchive records one archive retrieval outcome and the bytes it wrote.
func ObserveArchive(outcome string, bytesWritten int64) {
	Init()
	archiveDownloadsTotal.WithLabelValues(outcome).Inc()
	if bytesWritten > 0 {
		archiveBytesTotal.Add(float64(bytesWritten))
	}
}

// ObserveSubmissionWait records time spent waiting for the submission throttle.
func ObserveSubmissionWait(website string, duration time.Duration) {
	Init()
	submissionWaitSeconds.WithLabelValues(SanitizeSite(website)).Observe(duration.Seconds())
}

// IncDialRetries counts a retried channel dial.
func IncDialRetries() {
	Init()
	channelReconnectsTotal.Inc()
}
