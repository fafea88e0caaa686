package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricRoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codepair",
		Name:      "rooms_created_total",
		Help:      "Rooms allocated through the directory API.",
	})
	metricAutocompleteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codepair",
		Name:      "autocomplete_requests_total",
		Help:      "Completion requests served, by language.",
	}, []string{"language"})
	metricSessionConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codepair",
		Name:      "session_connections_active",
		Help:      "Currently open session websockets.",
	})
)

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
