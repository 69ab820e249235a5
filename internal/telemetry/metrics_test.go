package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registration is checked through Describe() because Gather() omits *Vec metrics
// that have no observed label combinations yet.
func TestMetrics_AllRegistered(t *testing.T) {
	cases := []struct {
		name string
		c    prometheus.Collector
	}{
		{"http_requests_total", HTTPRequestsTotal},
		{"http_request_duration_seconds", HTTPRequestDuration},
		{"clubs_created_total", ClubsCreatedTotal},
		{"club_creation_compensations_total", ClubCreationCompensationsTotal},
		{"thumbnail_uploads_total", ThumbnailUploadsTotal},
		{"invitations_total", InvitationsTotal},
		{"invitation_emails_total", InvitationEmailsTotal},
		{"db_open_connections", DBOpenConnections},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan *prometheus.Desc, 10)
			tc.c.Describe(ch)
			close(ch)
			for desc := range ch {
				if strings.Contains(desc.String(), `"`+tc.name+`"`) {
					return
				}
			}
			t.Errorf("metric %q: Describe() returned no descriptor with this fqName", tc.name)
		})
	}
}

func TestMetrics_CountersIncrement(t *testing.T) {
	cases := []struct {
		name   string
		cv     *prometheus.CounterVec
		labels prometheus.Labels
	}{
		{"http", HTTPRequestsTotal, prometheus.Labels{"method": "GET", "path": "/api/club/", "status": "200"}},
		{"clubs created", ClubsCreatedTotal, prometheus.Labels{"thumbnail": "true"}},
		{"compensations", ClubCreationCompensationsTotal, prometheus.Labels{"step": "club", "result": "ok"}},
		{"uploads", ThumbnailUploadsTotal, prometheus.Labels{"backend": "local", "result": "ok"}},
		{"invitations", InvitationsTotal, prometheus.Labels{"action": "accepted"}},
		{"emails", InvitationEmailsTotal, prometheus.Labels{"result": "sent"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := counterValue(t, tc.cv, tc.labels)
			tc.cv.With(tc.labels).Inc()
			after := counterValue(t, tc.cv, tc.labels)
			if after-before < 1 {
				t.Errorf("counter did not increase (before=%.0f after=%.0f)", before, after)
			}
		})
	}
}

func TestStartDBStatsCollector_SetsGauge(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	DBOpenConnections.Set(-1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartDBStatsCollector(ctx, db, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if gaugeValue(t, DBOpenConnections) >= 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("collector never updated db_open_connections")
}

// counterValue reads the current value of a CounterVec for the given label set.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 20)
	cv.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		if labelsMatch(dm.GetLabel(), labels) {
			return dm.GetCounter().GetValue()
		}
	}
	return 0
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var dm dto.Metric
	if err := g.Write(&dm); err != nil {
		t.Fatalf("gauge write: %v", err)
	}
	return dm.GetGauge().GetValue()
}

// labelsMatch returns true when all entries in want appear in got.
func labelsMatch(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
