package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RefreshSucceeded = "success"
	RefreshFailed    = "failure"

	ReasonRefreshFailed  = "refresh_failed"
	ReasonNoRefreshToken = "no_refresh_token"
)

// Metrics counts the client's authentication traffic
type Metrics struct {
	Requests     *prometheus.CounterVec // by method and status code ("error" for network failures)
	Retries      prometheus.Counter
	Refreshes    *prometheus.CounterVec // by outcome
	Terminations *prometheus.CounterVec // by reason
}

func newMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issuectl_api_requests_total",
			Help: "Requests sent to the issue tracker API, including retries.",
		}, []string{"method", "code"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issuectl_api_retries_total",
			Help: "Requests resent after a successful token refresh.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issuectl_token_refresh_total",
			Help: "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		Terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issuectl_session_terminations_total",
			Help: "Sessions ended by the refresh protocol.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Requests, m.Retries, m.Refreshes, m.Terminations} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
