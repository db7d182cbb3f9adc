package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名のメトリクスファミリーを取得する。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSubmission_LabelsByFormTypeAndResult はフォーム種別と結果でラベル付けされることを検証する。
func TestRecordSubmission_LabelsByFormTypeAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSubmission("client", ResultSuccess)
	c.RecordSubmission("client", ResultSuccess)
	c.RecordSubmission("provider", ResultError)

	mf := findMetric(t, reg, "coliana_submissions_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["form_type"] == "client" && m.GetCounter().GetValue() != 2 {
			t.Errorf("client submissions = %v, want 2", m.GetCounter().GetValue())
		}
	}
}

func TestRecordMatches_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMatches(0)
	c.RecordMatches(3)

	h := findMetric(t, reg, "coliana_matches_per_client").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() != 3 {
		t.Errorf("sample sum = %v, want 3", h.GetSampleSum())
	}
}

func TestRecordUnrecognizedFormType_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUnrecognizedFormType()

	val := findMetric(t, reg, "coliana_unrecognized_form_type_total").GetMetric()[0].GetCounter().GetValue()
	if val != 1 {
		t.Errorf("unrecognized_form_type_total = %v, want 1", val)
	}
}

func TestRecordWebCall_RecordsResultAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWebCall(ResultError, 250*time.Millisecond)

	val := findMetric(t, reg, "coliana_web_calls_total").GetMetric()[0].GetCounter().GetValue()
	if val != 1 {
		t.Errorf("web_calls_total = %v, want 1", val)
	}
	h := findMetric(t, reg, "coliana_web_call_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleSum() != 0.25 {
		t.Errorf("latency sum = %v, want 0.25", h.GetSampleSum())
	}
}

func TestRecordHTTPStatus_LabelsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(http.StatusOK)
	c.RecordHTTPStatus(http.StatusBadRequest)

	if n := len(findMetric(t, reg, "coliana_http_status_total").GetMetric()); n != 2 {
		t.Errorf("expected 2 status labels, got %d", n)
	}
}

// TestHandler_ServesMetrics はスクレイプで記録済みメトリクスが返ることを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSubmission("concierge", ResultSuccess)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `coliana_submissions_total{form_type="concierge",result="success"} 1`) {
		t.Errorf("response should contain concierge submission, got:\n%s", body)
	}
}

func TestNop_DoesNotPanic(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordSubmission("client", ResultSuccess)
	r.RecordMatches(1)
	r.RecordUnrecognizedFormType()
	r.RecordWebCall(ResultSuccess, time.Second)
	r.RecordHTTPStatus(200)
}
