// Package telemetry provides logging setup and Prometheus metrics for clubroom.
//
// All metrics are registered against the default Prometheus registry and served on
// the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<CLB_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// The endpoint is not part of the Gin router and therefore absent from the OpenAPI
// document.
//
// HTTP metrics use c.FullPath() (the route template such as
// /api/club/invitations/:invitationId) rather than the raw URL so that ids in the
// path cannot blow up label cardinality.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clubroom/clubroom/internal/safego"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Error rate (%):       sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency by route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Club creation metrics.
//
// ClubsCreatedTotal counts successful creations, labelled by whether a thumbnail
// was attached ("true"/"false").
//
// ClubCreationCompensationsTotal counts rollback steps run after a failed creation.
// step is "club", "thumbnail", or "memberships"; result is "ok" or "error". Any
// result="error" series means an orphaned row or object may have been left behind.
var (
	ClubsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubs_created_total",
			Help: "Total number of clubs created, by whether a thumbnail was attached.",
		},
		[]string{"thumbnail"},
	)

	ClubCreationCompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_creation_compensations_total",
			Help: "Total number of compensation steps run after a failed club creation, by step and result.",
		},
		[]string{"step", "result"},
	)
)

// ThumbnailUploadsTotal counts thumbnail uploads by storage backend and result ("ok" or "error").
var ThumbnailUploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "thumbnail_uploads_total",
		Help: "Total number of club thumbnail uploads, by storage backend and result.",
	},
	[]string{"backend", "result"},
)

// InvitationsTotal counts invitation lifecycle events; action is "created",
// "accepted", or "rejected".
var InvitationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "invitations_total",
		Help: "Total number of club invitation events, by action.",
	},
	[]string{"action"},
)

// InvitationEmailsTotal counts invitation emails by result ("sent", "error" or "skipped").
var InvitationEmailsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "invitation_emails_total",
		Help: "Total number of invitation emails attempted, by result.",
	},
	[]string{"result"},
)

// DBOpenConnections tracks the number of open connections held by the sql.DB pool.
// It is sampled periodically by StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples the connection pool every interval until ctx is
// cancelled or the database stops answering pings.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	safego.Go("db-stats-collector", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	})
}
