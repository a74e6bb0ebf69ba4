/*
Package metrics defines the Prometheus collectors exported by the dash server.
*/
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server updates.
type Metrics struct {
	// Token metrics
	TokensIssued        *prometheus.CounterVec
	TokenVerifyFailures prometheus.Counter

	// Chat metrics
	ChatParticipants  prometheus.Gauge
	ChatPublished     prometheus.Counter
	ChatDropped       prometheus.Counter
	ChatHandshakeFail *prometheus.CounterVec
}

// New registers a fresh set of collectors with registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		TokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dash_tokens_issued_total",
				Help: "Total number of signed tokens issued",
			},
			[]string{"kind"},
		),
		TokenVerifyFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dash_token_verify_failures_total",
				Help: "Total number of bearer tokens that failed verification",
			},
		),
		ChatParticipants: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dash_chat_participants",
				Help: "Number of participants currently joined to the chat room",
			},
		),
		ChatPublished: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dash_chat_messages_published_total",
				Help: "Total number of messages published to the chat room",
			},
		),
		ChatDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dash_chat_messages_dropped_total",
				Help: "Total number of per-subscriber deliveries dropped because the backlog was full",
			},
		),
		ChatHandshakeFail: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dash_chat_handshake_failures_total",
				Help: "Total number of realtime connections closed during authentication",
			},
			[]string{"reason"},
		),
	}
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide collectors registered with the default registry.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
