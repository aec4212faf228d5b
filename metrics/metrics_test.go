package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollector_RecordAndServe(t *testing.T) {
	c := New()
	c.RecordStep("pocsync.builtin", "pocsync.http.request", "success", 5*time.Millisecond)
	c.RecordPipeline("lazada-orders", "success", 20*time.Millisecond)
	c.SetQueueDepth("inn_pipeline_queue", 3)
	c.RecordIngress("async", 200)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"pocsync_pipeline_executions_total", "pocsync_step_duration_seconds", "pocsync_queue_depth"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", name, body)
		}
	}
}
