package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newMetrics(registry, Config{ServiceName: "hearth", Environment: "test"})

	m.IncJobRun(JobEnactCosts)
	m.IncJobRun(JobEnactCosts)
	m.IncCostEnacted()
	m.IncEnactSkip(EnactSkipAlreadyEnacted)
	m.AddCyclesCreated(13)
	m.AddStatementsSent(3)
	m.ObserveJobDuration(JobEnactCosts, 250*time.Millisecond)

	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues(JobEnactCosts)); got != 2 {
		t.Fatalf("expected 2 job runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.costsEnacted); got != 1 {
		t.Fatalf("expected 1 enacted cost, got %v", got)
	}
	if got := testutil.ToFloat64(m.enactSkips.WithLabelValues(EnactSkipAlreadyEnacted)); got != 1 {
		t.Fatalf("expected 1 skip, got %v", got)
	}
	if got := testutil.ToFloat64(m.cyclesCreated); got != 13 {
		t.Fatalf("expected 13 cycles created, got %v", got)
	}
	if got := testutil.ToFloat64(m.statementsSent); got != 3 {
		t.Fatalf("expected 3 statements sent, got %v", got)
	}
}

func TestClassifyJobReason(t *testing.T) {
	if got := classifyJobReason(context.DeadlineExceeded); got != JobReasonDeadlineExceeded {
		t.Fatalf("expected %q, got %q", JobReasonDeadlineExceeded, got)
	}
	if got := classifyJobReason(errors.New("boom")); got != JobReasonUnknown {
		t.Fatalf("expected %q, got %q", JobReasonUnknown, got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.IncJobRun(JobPopulateCycles)
	m.IncJobError(JobPopulateCycles, errors.New("boom"))
	m.IncCostEnacted()
	m.AddCyclesCreated(1)
	m.AddStatementsSent(1)
	m.ObserveJobDuration(JobPopulateCycles, time.Second)
}

func TestSingletonReset(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := WithConfig(Config{ServiceName: "hearth", Environment: "test-singleton"})
	second := Default()
	if first != second {
		t.Fatal("expected the same singleton instance")
	}
}
