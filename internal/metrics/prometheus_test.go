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

func TestNewMetricsIsolatedRegistries(t *testing.T) {
	// Two instances must not collide on registration
	a := NewMetrics()
	b := NewMetrics()

	a.RecordObjectProcessed()

	if got := testutil.ToFloat64(a.ObjectsProcessed); got != 1 {
		t.Errorf("Expected 1 processed object, got %v", got)
	}
	if got := testutil.ToFloat64(b.ObjectsProcessed); got != 0 {
		t.Errorf("Expected 0 processed objects on second registry, got %v", got)
	}
}

func TestRecorders(t *testing.T) {
	m := NewMetrics()

	m.RecordChunk(1024)
	m.RecordChunk(512)
	m.SetQueueDepth(3)
	m.RecordSamples(100, 2)
	m.RecordObjectFailure("decoding")
	m.RecordTransition("encoding")
	m.RecordObjectDelivered()
	m.RecordArchiveDelivered(4096)

	if got := testutil.ToFloat64(m.ChunksBridged); got != 2 {
		t.Errorf("Expected 2 chunks, got %v", got)
	}
	if got := testutil.ToFloat64(m.BytesFetched); got != 1536 {
		t.Errorf("Expected 1536 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 3 {
		t.Errorf("Expected queue depth 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.SamplesSkipped); got != 2 {
		t.Errorf("Expected 2 skipped samples, got %v", got)
	}
	if got := testutil.ToFloat64(m.ObjectFailures.WithLabelValues("decoding")); got != 1 {
		t.Errorf("Expected 1 decoding failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.StageTransitions.WithLabelValues("encoding")); got != 1 {
		t.Errorf("Expected 1 transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.ArchivesDelivered); got != 1 {
		t.Errorf("Expected 1 archive, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.RecordChunk(10)
	m.SetQueueDepth(1)
	m.RecordEncode("joint", 0.1, 100)
	m.RecordInvocation("success", 1)

	if err := m.Push(context.Background(), "http://unused", "job"); err != nil {
		t.Errorf("Expected nil metrics push to be a no-op, got %v", err)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordEncode("left", 0.05, 2048)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "mp3mm_encoded_size_bytes") {
		t.Errorf("Expected encoded size histogram in exposition output")
	}
}

func TestPushToGateway(t *testing.T) {
	var gotPath string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	m := NewMetrics()
	m.RecordObjectProcessed()

	if err := m.Push(context.Background(), gateway.URL, "mp3-magic-machine"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if gotPath != "/metrics/job/mp3-magic-machine" {
		t.Errorf("Expected push to job path, got %s", gotPath)
	}
}
