package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"reviewsync/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so the vectors export series
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveJob("resolved")
	observability.ObserveBatch("success")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{
		"reviewsync_http_requests_total",
		"reviewsync_jobs_total",
		"reviewsync_batches_total",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}

func TestObserveWriteCounts(t *testing.T) {
	before := testutil.ToFloat64(observability.RecordWrites.WithLabelValues("review", "insert"))
	observability.ObserveWrite("review", "insert")
	observability.ObserveWrite("review", "insert")
	after := testutil.ToFloat64(observability.RecordWrites.WithLabelValues("review", "insert"))
	if after-before != 2 {
		t.Fatalf("want 2 increments, got %v", after-before)
	}
}

func TestServeDisabledWithoutAddr(t *testing.T) {
	if srv := observability.Serve("", observability.InitRegistry()); srv != nil {
		t.Fatal("expected nil server for empty addr")
	}
}
