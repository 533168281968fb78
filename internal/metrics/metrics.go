// Package metrics exposes Prometheus collectors for outbound hub/proxy calls
// and grader authorization decisions.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service labels for RemoteRequests.
const (
	ServiceHub   = "hub"
	ServiceProxy = "proxy"
)

var (
	registry = prometheus.NewRegistry()

	remoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubauth_remote_requests_total",
			Help: "Outbound requests to the hub and proxy APIs, partitioned by service and HTTP status code (0 for transport errors).",
		},
		[]string{"service", "code"},
	)

	authDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubauth_auth_decisions_total",
			Help: "Grader authorization decisions, partitioned by result.",
		},
		[]string{"result"},
	)
)

var registerMetrics sync.Once

// Register adds the collectors to the package registry. Safe to call repeatedly.
func Register() {
	registerMetrics.Do(func() {
		registry.MustRegister(remoteRequests, authDecisions)
		registry.MustRegister(collectors.NewGoCollector())
	})
}

func init() {
	Register()
}

// ObserveRemote records one outbound call.
func ObserveRemote(service string, status int) {
	remoteRequests.WithLabelValues(service, strconv.Itoa(status)).Inc()
}

// ObserveDecision records one allow-list decision.
func ObserveDecision(allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	authDecisions.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
