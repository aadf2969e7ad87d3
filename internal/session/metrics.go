package session

import "github.com/prometheus/client_golang/prometheus"

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crs_session_logins_total",
			Help: "Login attempts by result (success, failure)",
		},
		[]string{"result"},
	)

	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crs_session_refresh_total",
			Help: "Refresh network calls by result (success, failure)",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(loginsTotal)
	prometheus.MustRegister(refreshTotal)
}
