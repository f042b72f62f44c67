// Package metrics exposes sync and chat activity in Prometheus format.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"kitsune-client/internal/model"
	"kitsune-client/internal/notebook"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the client metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	Snapshots      prometheus.Counter
	Notebooks      prometheus.Gauge
	FeedDrops      *prometheus.CounterVec
	ViewerLookups  *prometheus.CounterVec
	Exchanges      *prometheus.CounterVec
	ExchangeTime   prometheus.Histogram
	ChatIncrements *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,

		Snapshots: f.NewCounter(prometheus.CounterOpts{
			Name: "kitsune_registry_snapshots_total",
			Help: "Notebook registry snapshots applied",
		}),
		Notebooks: f.NewGauge(prometheus.GaugeOpts{
			Name: "kitsune_registry_notebooks",
			Help: "Notebooks in the latest registry snapshot",
		}),
		FeedDrops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kitsune_feed_drops_total",
			Help: "Push feed disconnects by reason",
		}, []string{"reason"}),
		ViewerLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kitsune_viewer_lookups_total",
			Help: "Viewer base address lookups by result",
		}, []string{"result"}),
		Exchanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kitsune_chat_exchanges_total",
			Help: "Finished chat exchanges by final status",
		}, []string{"status"}),
		ExchangeTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kitsune_chat_exchange_duration_seconds",
			Help:    "Time from send to the end of the reply stream",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ChatIncrements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kitsune_chat_increments_total",
			Help: "Streamed chat increments applied, by type",
		}, []string{"type"}),
	}
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SnapshotApplied(notebooks int) {
	r.Snapshots.Inc()
	r.Notebooks.Set(float64(notebooks))
}

func (r *Recorder) FeedDropped(err error) {
	reason := "error"
	if errors.Is(err, notebook.ErrFeedClosed) {
		reason = "closed"
	}
	r.FeedDrops.WithLabelValues(reason).Inc()
}

func (r *Recorder) ViewerLookup(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.ViewerLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) ExchangeFinished(status model.ChatStatus, elapsed time.Duration) {
	r.Exchanges.WithLabelValues(string(status)).Inc()
	r.ExchangeTime.Observe(elapsed.Seconds())
}

func (r *Recorder) IncrementApplied(kind string) {
	r.ChatIncrements.WithLabelValues(kind).Inc()
}
