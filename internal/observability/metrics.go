package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rebeca", Name: "despatch_offers_total", Help: "Ride offers created, by mode"},
		[]string{"mode"},
	)
	AcceptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "rebeca", Name: "despatch_accepts_total", Help: "Offers accepted by a driver"},
	)
	RedirectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "rebeca", Name: "despatch_redirects_total", Help: "Nearest-mode advances to the next candidate"},
	)
	ExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "rebeca", Name: "despatch_exhausted_total", Help: "Despatches that ran out of candidates"},
	)
	SweptOffers = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "rebeca", Name: "despatch_swept_offers_total", Help: "Expired offers reclaimed by the sweeper"},
	)
	AcceptLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rebeca",
			Name:      "despatch_accept_latency_seconds",
			Help:      "Time between offer creation and driver acceptance",
			Buckets:   prometheus.DefBuckets,
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rebeca", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
)
