package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCycleIncrementsFailureCounterOnlyOnFailure(t *testing.T) {
	r := New()

	r.ObserveCycle(1.5, true)
	if got := testutil.ToFloat64(r.CycleFailures); got != 0 {
		t.Fatalf("expected 0 cycle failures after a success, got %v", got)
	}

	r.ObserveCycle(2.0, false)
	if got := testutil.ToFloat64(r.CycleFailures); got != 1 {
		t.Fatalf("expected 1 cycle failure after a failed cycle, got %v", got)
	}
}

func TestSetGateRecordsPassState(t *testing.T) {
	r := New()
	r.SetGate("data_integrity", true)
	if got := testutil.ToFloat64(r.GatePass.WithLabelValues("data_integrity")); got != 1 {
		t.Fatalf("expected gate pass gauge to be 1, got %v", got)
	}
	r.SetGate("data_integrity", false)
	if got := testutil.ToFloat64(r.GatePass.WithLabelValues("data_integrity")); got != 0 {
		t.Fatalf("expected gate pass gauge to be 0 after failing, got %v", got)
	}
}

func TestSetQueueDepth(t *testing.T) {
	r := New()
	r.SetQueueDepth(7)
	if got := testutil.ToFloat64(r.QueueDepth); got != 7 {
		t.Fatalf("expected queue depth gauge to be 7, got %v", got)
	}
}

func TestObserveCollectorTracksItemsAndFailures(t *testing.T) {
	r := New()
	r.ObserveCollector("tasks", 5, "")
	if got := testutil.ToFloat64(r.CollectorItems.WithLabelValues("tasks")); got != 5 {
		t.Fatalf("expected 5 items synced, got %v", got)
	}

	r.ObserveCollector("tasks", 0, "auth")
	if got := testutil.ToFloat64(r.CollectorFail.WithLabelValues("tasks", "auth")); got != 1 {
		t.Fatalf("expected 1 auth failure recorded, got %v", got)
	}
}
