package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry(t *testing.T) {
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestChunksTotal(t *testing.T) {
	c := ChunksTotal.WithLabelValues("CAMPAIGN_ANALYTICS", "soft_empty")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}

func TestHandler(t *testing.T) {
	RowsWritten.WithLabelValues("campaign_dataset").Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `linkedin_rows_written_total{output="campaign_dataset"}`) {
		t.Errorf("metrics output missing rows written series")
	}
}
