package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.ObserveCheck(CheckNotReady)
	m.ObserveCheck(CheckNotReady)
	m.ObserveCheck(CheckFresh)
	m.ObserveRetrigger()
	m.ObserveReport("volume_change", ReportPublished)
	m.ObservePublish(0.2)

	if got := testutil.ToFloat64(m.pollChecks.WithLabelValues(CheckNotReady)); got != 2 {
		t.Fatalf("not_ready checks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.pollChecks.WithLabelValues(CheckTransportError)); got != 0 {
		t.Fatalf("transport_error checks = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.retriggers); got != 1 {
		t.Fatalf("retriggers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.reports.WithLabelValues("volume_change", ReportPublished)); got != 1 {
		t.Fatalf("reports = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.publishTiming); got != 1 {
		t.Fatalf("publish histogram series = %d, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCheck(CheckFresh)
	m.ObserveRetrigger()
	m.ObserveReport("q", ReportFailed)
	m.ObservePublish(1)
	if m.Registry() != nil {
		t.Fatal("nil metrics should have nil registry")
	}
	if err := m.Push(context.Background(), "http://localhost", "job"); err == nil {
		t.Fatal("Push on nil metrics should fail")
	}
}

func TestPush(t *testing.T) {
	var (
		gotPath string
		gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.ObserveRetrigger()

	if err := m.Push(context.Background(), srv.URL, "cureports"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if gotPath != "/metrics/job/cureports" {
		t.Fatalf("push path = %q", gotPath)
	}
	if !strings.Contains(gotBody, "cureports_poll_retriggers_total") {
		t.Fatal("pushed body does not contain retrigger counter")
	}
}
