package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesRegisteredSeries(t *testing.T) {
	m := New("operator-test")
	m.BlocksProcessedTotal.WithLabelValues("evm-1").Add(3)
	m.ErrorsTotal.WithLabelValues("evm-1", "transient").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"relayer_up", "relayer_blocks_processed_total", "relayer_errors_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}
