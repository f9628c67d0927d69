package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the dashboard exports. Each Registry owns its
// own prometheus.Registry so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	FeeFetchAttempts  *prometheus.CounterVec
	FeeRows           prometheus.Gauge
	HedgeComputations *prometheus.CounterVec
	NavScans          *prometheus.CounterVec
	NavRecords        *prometheus.CounterVec
	NavExtractErrors  *prometheus.CounterVec
	ScanDuration      prometheus.Histogram
	HTTPDuration      *prometheus.HistogramVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		FeeFetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedgedash_fee_fetch_attempts_total",
				Help: "Fee table fetch attempts by source and result",
			},
			[]string{"source", "result"},
		),
		FeeRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hedgedash_fee_rows",
				Help: "Rows in the most recently fetched fee table",
			},
		),
		HedgeComputations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedgedash_hedge_computations_total",
				Help: "Hedge computations by result",
			},
			[]string{"result"},
		),
		NavScans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedgedash_nav_scans_total",
				Help: "Mailbox NAV scans by result",
			},
			[]string{"result"},
		),
		NavRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedgedash_nav_records_total",
				Help: "NAV records extracted by vendor",
			},
			[]string{"vendor"},
		),
		NavExtractErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedgedash_nav_extract_errors_total",
				Help: "NAV notices that matched a vendor but failed to parse",
			},
			[]string{"vendor"},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hedgedash_nav_scan_duration_seconds",
				Help:    "Duration of a full mailbox scan",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hedgedash_http_request_duration_seconds",
				Help:    "Dashboard request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
	}

	r.reg.MustRegister(
		r.FeeFetchAttempts,
		r.FeeRows,
		r.HedgeComputations,
		r.NavScans,
		r.NavRecords,
		r.NavExtractErrors,
		r.ScanDuration,
		r.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus text format. Response
// compression is left to the dashboard middleware.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{DisableCompression: true})
}

// Gatherer exposes the underlying registry, used by tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveHTTP(route string, status int, d time.Duration) {
	r.HTTPDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
