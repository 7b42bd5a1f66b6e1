package infer

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_TrackRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	g := buildChain(t)
	e := New(g, WithMetrics(m))
	c := variable(t, g, "C")

	if _, err := e.Run(c, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := testutil.ToFloat64(m.runs); got != 1 {
		t.Errorf("runs counter = %v, want 1", got)
	}
	misses := testutil.ToFloat64(m.cacheMisses)
	if misses == 0 {
		t.Error("first run recorded no cache misses")
	}
	if got := testutil.ToFloat64(m.cacheHits); got != 0 {
		t.Errorf("first run cache hits = %v, want 0", got)
	}

	if _, err := e.Run(c, nil); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := testutil.ToFloat64(m.cacheHits); got != misses {
		t.Errorf("second run cache hits = %v, want %v (all messages reused)", got, misses)
	}
	if got := testutil.ToFloat64(m.cacheMisses); got != misses {
		t.Errorf("cache misses moved to %v after a fully cached run", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	// An engine without metrics must work identically.
	g := buildChain(t)
	e := New(g)
	if _, err := e.Run(variable(t, g, "B"), nil); err != nil {
		t.Fatalf("Run without metrics: %v", err)
	}
	if e.Stats().Runs != 1 {
		t.Errorf("stats runs = %d, want 1", e.Stats().Runs)
	}
}
