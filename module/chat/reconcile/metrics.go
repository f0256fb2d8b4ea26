package reconcile

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airchat",
		Subsystem: "engine",
		Name:      "events_total",
		Help:      "Change-stream deliveries and intents processed by engines.",
	}, []string{"kind"})

	failuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airchat",
		Subsystem: "engine",
		Name:      "failures_total",
		Help:      "Failed loads, writes and deletes reported to engines.",
	}, []string{"op"})

	pendingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airchat",
		Subsystem: "engine",
		Name:      "pending",
		Help:      "Messages per reconciliation state across running engines.",
	}, []string{"state"})

	enginesRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "airchat",
		Subsystem: "engine",
		Name:      "running",
		Help:      "Started and not yet closed engines.",
	})
)

func init() {
	prometheus.MustRegister(eventsTotal, failuresTotal, pendingGauge, enginesRunning)
}

// gauges tracks one engine's share of pendingGauge so it can be
// withdrawn on close.
type gauges struct {
	last map[State]int
}

func (g *gauges) set(counts map[State]int) {
	if g.last == nil {
		g.last = make(map[State]int)
	}
	for _, s := range []State{PendingWrite, SendError, PendingDelete} {
		if d := counts[s] - g.last[s]; d != 0 {
			pendingGauge.WithLabelValues(s.String()).Add(float64(d))
			g.last[s] = counts[s]
		}
	}
}

func (g *gauges) reset() { g.set(nil) }
