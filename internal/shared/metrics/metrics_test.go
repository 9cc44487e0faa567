package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	before := testutil.ToFloat64(analysisCompletedTotal.WithLabelValues("fallback"))
	IncAnalysisStarted()
	IncAnalysisCompleted("fallback")
	ObserveAnalysisDuration(1500 * time.Millisecond)
	IncProviderRequest("plantnet", "ok")
	SetHistoryItems(3)

	if got := testutil.ToFloat64(analysisCompletedTotal.WithLabelValues("fallback")); got != before+1 {
		t.Fatalf("expected fallback counter %v, got %v", before+1, got)
	}

	r := gin.New()
	r.GET("/metrics", Handler())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, name := range []string{"plantdoc_analysis_started_total", "plantdoc_analysis_duration_ms_bucket", "plantdoc_history_items 3"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %q in metrics output", name)
		}
	}
}
