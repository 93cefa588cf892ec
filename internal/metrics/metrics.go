// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChallengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharos_auth_challenges_issued_total",
		Help: "Number of authentication challenges issued.",
	})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharos_auth_logins_total",
		Help: "Number of login attempts by outcome.",
	}, []string{"outcome"})

	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharos_gateway_calls_total",
		Help: "Number of contract calls by kind and status.",
	}, []string{"kind", "status"})

	GatewayRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharos_gateway_retries_total",
		Help: "Number of retried node attempts.",
	})

	GatewayInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pharos_gateway_inflight_submissions",
		Help: "Write submissions currently holding an admission slot.",
	})
)
