// Package metrics exposes debounce counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sweeney/mouse-debouncer/internal/logic"
)

const namespace = "mouse_debouncer"

// Reporter is the read-only engine surface the collector scrapes.
type Reporter interface {
	Report() []logic.ButtonReport
	TotalSuppressed() uint64
	GlobalThresholdMillis() uint32
}

// Collector reads the engine report on every scrape, so the event path
// never touches Prometheus for these series.
type Collector struct {
	r Reporter

	suppressed *prometheus.Desc
	threshold  *prometheus.Desc
	total      *prometheus.Desc
	global     *prometheus.Desc
}

// NewCollector returns a collector over r.
func NewCollector(r Reporter) *Collector {
	return &Collector{
		r: r,
		suppressed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "suppressed_clicks_total"),
			"Click attempts suppressed per monitored button",
			[]string{"button"}, nil),
		threshold: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "threshold_milliseconds"),
			"Debounce threshold per monitored button",
			[]string{"button"}, nil),
		total: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "suppressed_clicks_all_total"),
			"Click attempts suppressed across all buttons",
			nil, nil),
		global: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "global_threshold_milliseconds"),
			"Threshold inherited by buttons without their own",
			nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.suppressed
	ch <- c.threshold
	ch <- c.total
	ch <- c.global
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, b := range c.r.Report() {
		name := b.Button.String()
		ch <- prometheus.MustNewConstMetric(c.suppressed, prometheus.CounterValue, float64(b.Suppressed), name)
		ch <- prometheus.MustNewConstMetric(c.threshold, prometheus.GaugeValue, float64(b.ThresholdMillis), name)
	}
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(c.r.TotalSuppressed()))
	ch <- prometheus.MustNewConstMetric(c.global, prometheus.GaugeValue, float64(c.r.GlobalThresholdMillis()))
}

// Counters are updated by the dispatcher loop. The labelled children are
// resolved once so updates do not allocate.
type Counters struct {
	Passed     prometheus.Counter
	Suppressed prometheus.Counter
	Forwarded  prometheus.Counter
	EmitErrors prometheus.Counter
	Sources    prometheus.Gauge
}

// NewCounters registers the loop counters with reg.
func NewCounters(reg prometheus.Registerer) *Counters {
	f := promauto.With(reg)
	verdicts := f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "button_events_total",
		Help:      "Button transitions judged by the engine, by verdict",
	}, []string{"verdict"})

	return &Counters{
		Passed:     verdicts.WithLabelValues("pass"),
		Suppressed: verdicts.WithLabelValues("suppress"),
		Forwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwarded_events_total",
			Help:      "Non-button events forwarded unchanged",
		}),
		EmitErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_errors_total",
			Help:      "Events that could not be written to the virtual device",
		}),
		Sources: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "input_sources",
			Help:      "Input sources currently grabbed",
		}),
	}
}

// NewRegistry returns a registry with the collector for r, the loop
// counters and the Go and process collectors.
func NewRegistry(r Reporter) (*prometheus.Registry, *Counters) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(r),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return reg, NewCounters(reg)
}
