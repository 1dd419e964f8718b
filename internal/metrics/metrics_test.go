package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func gatherCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
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
	return nil
}

// TestRecordWalletConnection_IncrementsCounter は接続記録カウンタが増加することを検証する。
func TestRecordWalletConnection_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWalletConnection("success")
	c.RecordWalletConnection("success")
	c.RecordWalletConnection("failed")

	if got := gatherCounterValue(t, reg, "analytics_wallet_connections_total"); got != 3 {
		t.Errorf("total = %f, want 3", got)
	}

	mf := findMetricFamily(t, reg, "analytics_wallet_connections_total")
	if mf == nil {
		t.Fatal("metric family not found")
	}
	if len(mf.GetMetric()) != 2 {
		t.Errorf("label combinations = %d, want 2 (success, failed)", len(mf.GetMetric()))
	}
}

// TestRecordPageView_IncrementsCounter はページビューカウンタが増加することを検証する。
func TestRecordPageView_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPageView()
	c.RecordPageView()

	if got := gatherCounterValue(t, reg, "analytics_page_views_total"); got != 2 {
		t.Errorf("total = %f, want 2", got)
	}
}

// TestRecordHTTPRequest_LabelsByStatus はHTTPリクエストがステータス別に記録されることを検証する。
func TestRecordHTTPRequest_LabelsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest("GET", "/api/analytics/dashboard", 200)
	c.RecordHTTPRequest("GET", "/api/analytics/retention", 200)
	c.RecordHTTPRequest("POST", "/api/track/wallet-connection", 401)

	if got := gatherCounterValue(t, reg, "analytics_http_requests_total"); got != 3 {
		t.Errorf("total = %f, want 3", got)
	}
}

// TestRecordCohortRebuild_ObservesDurationOnSuccess は成功時のみ所要時間が記録されることを検証する。
func TestRecordCohortRebuild_ObservesDurationOnSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCohortRebuild("weekly", true, 2*time.Second)
	c.RecordCohortRebuild("weekly", false, time.Second)

	if got := gatherCounterValue(t, reg, "analytics_cohort_rebuilds_total"); got != 2 {
		t.Errorf("rebuild count = %f, want 2", got)
	}

	mf := findMetricFamily(t, reg, "analytics_cohort_rebuild_duration_seconds")
	if mf == nil {
		t.Fatal("histogram not found")
	}
	if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
		t.Errorf("histogram samples = %d, want 1 (failures not observed)", count)
	}
}

// TestRecordBehaviorRefresh_LabelsByOutcome は結果別に記録されることを検証する。
func TestRecordBehaviorRefresh_LabelsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBehaviorRefresh(true)
	c.RecordBehaviorRefresh(false)
	c.RecordBehaviorRefresh(false)

	if got := gatherCounterValue(t, reg, "analytics_behavior_refreshes_total"); got != 3 {
		t.Errorf("total = %f, want 3", got)
	}
}
