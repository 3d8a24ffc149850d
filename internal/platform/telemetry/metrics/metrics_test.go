package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.ObserveReaction("Chess:Game", "succeeded", 20*time.Millisecond)
	m.ObserveReaction("Chess:Game", "succeeded", 10*time.Millisecond)
	m.ObserveReaction("Chess:DrawClaim", "failed", time.Millisecond)
	m.ObserveSubmission("exercise", "ok")
	m.StreamReconnected()
	m.StreamReconnected()
	m.SetReady(true)

	if got := testutil.ToFloat64(m.reactions.WithLabelValues("Chess:Game", "succeeded")); got != 2 {
		t.Fatalf("succeeded reactions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.reactions.WithLabelValues("Chess:DrawClaim", "failed")); got != 1 {
		t.Fatalf("failed reactions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.submissions.WithLabelValues("exercise", "ok")); got != 1 {
		t.Fatalf("submissions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.reconnects); got != 2 {
		t.Fatalf("reconnects = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ready); got != 1 {
		t.Fatalf("ready = %v, want 1", got)
	}
	m.SetReady(false)
	if got := testutil.ToFloat64(m.ready); got != 0 {
		t.Fatalf("ready = %v, want 0", got)
	}
	if got := testutil.CollectAndCount(m.reactionDuration); got != 2 {
		t.Fatalf("duration series = %d, want 2", got)
	}
}

func TestMetricsRejectDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first new: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestHandlerServesExposition(t *testing.T) {
	m, err := New(nil)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.SetReady(true)

	server := httptest.NewServer(m.Handler())
	defer server.Close()
	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, want := range []string{"operator_ready 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("exposition missing %q", want)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveReaction("Chess:Game", "succeeded", time.Second)
	m.ObserveSubmission("create", "ok")
	m.StreamReconnected()
	m.SetReady(true)
	if m.Handler() == nil {
		t.Fatal("expected handler")
	}
}
