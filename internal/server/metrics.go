package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"filehost/internal/upload"
)

const namespace = "filehost"

// Metrics are the Prometheus collectors exposed on /metrics.
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	filesStored    prometheus.Counter
	bytesStored    prometheus.Counter
	uploadFailures *prometheus.CounterVec
	downloads      prometheus.Counter
	downloadBytes  prometheus.Counter
	downloadMisses prometheus.Counter
}

// NewMetrics registers the collectors on reg. Each Server uses its own
// registry, so several servers can coexist in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status class.",
		}, []string{"route", "method", "class"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"route"}),
		filesStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_stored_total",
			Help:      "Files successfully stored.",
		}),
		bytesStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_stored_total",
			Help:      "Bytes of successfully stored files.",
		}),
		uploadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Rejected or failed upload requests by reason.",
		}, []string{"reason"}),
		downloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download requests that found their file.",
		}),
		downloadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Response body bytes sent for downloads.",
		}),
		downloadMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_not_found_total",
			Help:      "Download requests for names that could not be opened.",
		}),
	}
}

// middleware records request count and latency under the matched route
// template, so file names never become label values.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r)

		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(route, r.Method, statusClass(lrw.statusCode())).Inc()
	})
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

func (m *Metrics) recordStored(files []upload.StoredFile) {
	for _, f := range files {
		m.filesStored.Inc()
		m.bytesStored.Add(float64(f.Size))
	}
}

func (m *Metrics) recordUploadFailure(err error) {
	m.uploadFailures.WithLabelValues(failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, upload.ErrWrongKey):
		return "wrong_key"
	case errors.Is(err, upload.ErrMissingKey):
		return "missing_key"
	case errors.Is(err, upload.ErrInvalidKeyFormat):
		return "invalid_key"
	case errors.Is(err, upload.ErrFileTooBig):
		return "file_too_big"
	case errors.Is(err, upload.ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, upload.ErrNoFiles):
		return "no_files"
	case errors.Is(err, upload.ErrStorage):
		return "storage"
	case errors.Is(err, upload.ErrMalformed):
		return "malformed"
	default:
		return "other"
	}
}
