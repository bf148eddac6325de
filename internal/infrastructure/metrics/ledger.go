package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fastygo/agritrace/domain"
)

const namespace = "agritrace"

// Ledger exports tracking ledger activity to Prometheus.
type Ledger struct {
	registry    *prometheus.Registry
	appended    *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	stock       *prometheus.GaugeVec
	drift       *prometheus.GaugeVec
	outboxDepth prometheus.Gauge
	published   prometheus.Counter
	dropped     prometheus.Counter
}

// New creates the collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Ledger {
	l := &Ledger{
		registry: prometheus.NewRegistry(),
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_appended_total",
			Help:      "Tracking events committed to the ledger.",
		}, []string{"status"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Append attempts rejected, by error code.",
		}, []string{"code"}),
		stock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facility_stock",
			Help:      "Current stock of a facility after its latest append.",
		}, []string{"facility_id"}),
		drift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facility_stock_drift",
			Help:      "Stored stock minus stock replayed from the ledger.",
		}, []string{"facility_id"}),
		outboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_depth",
			Help:      "Ledger notifications waiting to be published.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Ledger notifications published.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dropped_total",
			Help:      "Ledger notifications dropped after exhausting retries.",
		}),
	}

	l.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		l.appended,
		l.rejected,
		l.stock,
		l.drift,
		l.outboxDepth,
		l.published,
		l.dropped,
	)
	return l
}

func (l *Ledger) EventAppended(event domain.TrackingEvent, facilityStock float64) {
	l.appended.WithLabelValues(string(event.Status)).Inc()
	l.stock.WithLabelValues(event.FacilityID).Set(facilityStock)
}

func (l *Ledger) AppendRejected(code domain.ErrorCode) {
	l.rejected.WithLabelValues(string(code)).Inc()
}

func (l *Ledger) StockDrift(facilityID string, drift float64) {
	l.drift.WithLabelValues(facilityID).Set(drift)
}

func (l *Ledger) OutboxDepth(n int) {
	l.outboxDepth.Set(float64(n))
}

func (l *Ledger) Published(n int) {
	l.published.Add(float64(n))
}

func (l *Ledger) Dropped(n int) {
	l.dropped.Add(float64(n))
}

// Registry exposes the underlying registry.
func (l *Ledger) Registry() *prometheus.Registry {
	return l.registry
}

// Handler serves the registry in the Prometheus text format.
func (l *Ledger) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(l.registry, promhttp.HandlerOpts{}))
}
