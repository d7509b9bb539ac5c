package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func gathered(t *testing.T, m *Metrics) map[string]float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, mf := range mfs {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range metric.GetLabel() {
				key += "," + l.GetName() + "=" + l.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest("send-actions", ResultAccepted, time.Millisecond)
	m.ObserveRequest("send-actions", ResultAccepted, 2*time.Millisecond)
	m.ObserveRequest("send-actions", "InvalidCounter", time.Millisecond)
	m.Failure("journal")
	m.SetGuards(3, 1, 0)
	m.ReceiptSigned()
	m.JournalRecords(3)

	got := gathered(t, m)
	require.Equal(t, 2.0, got["tfaguard_requests_total,op=send-actions,result=accepted"])
	require.Equal(t, 1.0, got["tfaguard_requests_total,op=send-actions,result=InvalidCounter"])
	require.Equal(t, 3.0, got["tfaguard_request_duration_seconds,op=send-actions"])
	require.Equal(t, 1.0, got["tfaguard_infrastructure_failures_total,stage=journal"])
	require.Equal(t, 3.0, got["tfaguard_installed_guards"])
	require.Equal(t, 1.0, got["tfaguard_pending_recoveries"])
	require.Equal(t, 0.0, got["tfaguard_pending_delegations"])
	require.Equal(t, 1.0, got["tfaguard_receipts_signed_total"])
	require.Equal(t, 3.0, got["tfaguard_journal_records_total"])
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("x", "y", time.Second)
	m.Failure("statedb")
	m.SetGuards(1, 1, 1)
	m.ReceiptSigned()
	m.JournalRecords(1)
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetGuards(2, 0, 0)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "tfaguard_installed_guards 2")
}
