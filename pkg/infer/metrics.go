package infer

import "github.com/prometheus/client_golang/prometheus"

// Stats are cumulative engine counters. CacheHits counts messages served
// from the store without recomputation; a second run under the same
// evidence must raise only CacheHits.
type Stats struct {
	MessagesComputed int
	CacheHits        int
	CacheMisses      int
	Sweeps           int
	Runs             int
}

// Metrics exports engine counters to a Prometheus registry. Optional: an
// Engine without metrics only maintains its Stats.
type Metrics struct {
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	messages    prometheus.Counter
	runs        prometheus.Counter
	sweeps      prometheus.Histogram
}

// NewMetrics creates and registers the engine collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treeprop_message_cache_hits_total",
			Help: "Messages served from the per-evidence cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treeprop_message_cache_misses_total",
			Help: "Messages that had to be computed.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treeprop_messages_computed_total",
			Help: "Log-space messages computed across all runs.",
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treeprop_runs_total",
			Help: "Completed inference runs.",
		}),
		sweeps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "treeprop_relay_sweeps",
			Help:    "Breadth-first relay sweeps per run.",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		}),
	}
	reg.MustRegister(m.cacheHits, m.cacheMisses, m.messages, m.runs, m.sweeps)
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.cacheMisses.Inc()
		m.messages.Inc()
	}
}

func (m *Metrics) run(sweeps int) {
	if m != nil {
		m.runs.Inc()
		m.sweeps.Observe(float64(sweeps))
	}
}
