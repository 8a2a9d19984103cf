package metrics

import (
	"errors"
	"time"

	"blog/pkg/customerrors"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	//Request duration histogram with method, endpoint, and status labels
	RequestDuration *prometheus.HistogramVec
	//Login attempts counter
	LoginAttempts *prometheus.CounterVec
	//Total errors counter with error type label
	TotalErrors *prometheus.CounterVec
	//Database query duration histogram with query type and status labels
	DbQueryDuration *prometheus.HistogramVec
	//Issued tokens counter with token type label
	IssuedTokens *prometheus.CounterVec
	//Blacklisted refresh tokens counter
	BlacklistedTokens prometheus.Counter
	//Successful content writes with kind (category, post, comment) and operation labels
	ContentWrites *prometheus.CounterVec
	//Writes refused by the access policy with kind and reason labels
	PolicyDenials *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "request_duration_seconds",
			Help: "Duration of HTTP requests in seconds."},
			[]string{"method", "endpoint", "status"},
		),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts.",
		},
			[]string{"status"},
		),
		TotalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "total_errors_total",
				Help: "Number of total errors.",
			},
			[]string{"error_type"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
			[]string{"query_type", "status"},
		),
		IssuedTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issued_tokens_total",
			Help: "Number of issued tokens by type.",
		},
			[]string{"type"},
		),
		BlacklistedTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blacklisted_tokens_total",
			Help: "Number of refresh tokens blacklisted on logout.",
		}),
		ContentWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_writes_total",
			Help: "Number of created, updated and deleted blog resources.",
		},
			[]string{"kind", "operation"},
		),
		PolicyDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_denials_total",
			Help: "Number of write attempts refused by the access policy.",
		},
			[]string{"kind", "reason"},
		),
	}
	// Register metrics with the provided registry
	reg.MustRegister(
		m.RequestDuration,
		m.LoginAttempts,
		m.TotalErrors,
		m.DbQueryDuration,
		m.IssuedTokens,
		m.BlacklistedTokens,
		m.ContentWrites,
		m.PolicyDenials,
	)
	return m
}

// ObserveDB is a helper method to record the duration and status of database queries in a consistent way.
func (m *Metrics) ObserveDB(queryName string, start time.Time, err error) {
	duration := time.Since(start).Seconds()

	status := "ok"
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, customerrors.ErrNotFound) {
			status = "not_found"
		} else {
			status = "error"
		}
	}

	m.DbQueryDuration.WithLabelValues(queryName, status).Observe(duration)
}
