package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetBuildInfo(t *testing.T) {
	BuildInfo.Reset()

	SetBuildInfo("v1.0.0", "go1.25")

	count := testutil.CollectAndCount(BuildInfo)
	if count != 1 {
		t.Errorf("expected 1 metric, got %d", count)
	}

	value := testutil.ToFloat64(BuildInfo.WithLabelValues("v1.0.0", "go1.25"))
	if value != 1 {
		t.Errorf("expected value 1, got %f", value)
	}
}

func TestReconciliationMetrics(t *testing.T) {
	ReconciliationsTotal.Reset()

	ReconciliationsTotal.WithLabelValues("success").Inc()
	ReconciliationsTotal.WithLabelValues("success").Inc()
	ReconciliationsTotal.WithLabelValues("aborted").Inc()
	ReconciliationDuration.Observe(0.5)

	if got := testutil.ToFloat64(ReconciliationsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("expected 2 successful reconciliations, got %f", got)
	}
	if got := testutil.ToFloat64(ReconciliationsTotal.WithLabelValues("aborted")); got != 1 {
		t.Errorf("expected 1 aborted reconciliation, got %f", got)
	}
}

func TestRecordMetrics(t *testing.T) {
	RecordsAddedTotal.Reset()
	RecordsRemovedTotal.Reset()
	RecordsSkippedTotal.Reset()
	RecordsFailedTotal.Reset()

	RecordsAddedTotal.WithLabelValues("example.com").Add(3)
	RecordsRemovedTotal.WithLabelValues("example.com").Inc()
	RecordsSkippedTotal.WithLabelValues("add").Add(4)
	RecordsFailedTotal.WithLabelValues("example.com", "remove").Inc()

	if got := testutil.ToFloat64(RecordsAddedTotal.WithLabelValues("example.com")); got != 3 {
		t.Errorf("expected 3 added, got %f", got)
	}
	if got := testutil.ToFloat64(RecordsRemovedTotal.WithLabelValues("example.com")); got != 1 {
		t.Errorf("expected 1 removed, got %f", got)
	}
	if got := testutil.ToFloat64(RecordsSkippedTotal.WithLabelValues("add")); got != 4 {
		t.Errorf("expected 4 skipped, got %f", got)
	}
	if got := testutil.ToFloat64(RecordsFailedTotal.WithLabelValues("example.com", "remove")); got != 1 {
		t.Errorf("expected 1 failed, got %f", got)
	}
}

func TestMetricNames(t *testing.T) {
	expectedPrefix := Namespace + "_"

	collectors := []prometheus.Collector{
		BuildInfo,
		ReconciliationsTotal,
		ReconciliationDuration,
		LastReconciliationTimestamp,
		RecordsDeclared,
		RecordsLive,
		RecordsAddedTotal,
		RecordsRemovedTotal,
		RecordsSkippedTotal,
		RecordsFailedTotal,
		ProviderAPIRequestsTotal,
		ProviderAPIDuration,
		PublicIPLookupsTotal,
	}

	for _, c := range collectors {
		ch := make(chan *prometheus.Desc, 10)
		c.Describe(ch)
		close(ch)

		for desc := range ch {
			if !strings.Contains(desc.String(), expectedPrefix) {
				t.Errorf("metric %s does not have expected prefix %s", desc.String(), expectedPrefix)
			}
		}
	}
}
