package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SOSRaisedTotal          prometheus.Counter
	SOSRejectedTotal        *prometheus.CounterVec
	AlertsDeliveredTotal    *prometheus.CounterVec
	DeliveryFailuresTotal   prometheus.Counter
	ActiveRecordings        prometheus.Gauge
	RecordingDurationSecs   prometheus.Histogram
	IncidentsCompletedTotal prometheus.Counter
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers against a caller-supplied registerer so tests can use a
// private registry instead of the global one.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SOSRaisedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aegis_sos_raised_total",
			Help: "Total number of SOS operations that reached the recording state",
		}),
		SOSRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_sos_rejected_total",
			Help: "Total number of rejected SOS attempts by reason",
		}, []string{"reason"}),
		AlertsDeliveredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_alerts_delivered_total",
			Help: "Total number of per-contact alert deliveries by channel",
		}, []string{"channel"}),
		DeliveryFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aegis_alert_delivery_failures_total",
			Help: "Total number of per-contact deliveries that exhausted every channel",
		}),
		ActiveRecordings: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aegis_active_recordings",
			Help: "Number of capture sessions currently recording",
		}),
		RecordingDurationSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_recording_duration_seconds",
			Help:    "Elapsed duration of completed capture sessions",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7), // 1s .. ~68m
		}),
		IncidentsCompletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aegis_incidents_completed_total",
			Help: "Total number of incidents transitioned to completed",
		}),
	}
}

func (m *Metrics) IncrementSOSRaised() {
	m.SOSRaisedTotal.Inc()
}

func (m *Metrics) IncrementSOSRejected(reason string) {
	m.SOSRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementAlertDelivered(channel string) {
	m.AlertsDeliveredTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncrementDeliveryFailure() {
	m.DeliveryFailuresTotal.Inc()
}

func (m *Metrics) SetActiveRecordings(count int) {
	m.ActiveRecordings.Set(float64(count))
}

func (m *Metrics) ObserveRecordingDuration(seconds float64) {
	m.RecordingDurationSecs.Observe(seconds)
}

func (m *Metrics) IncrementIncidentsCompleted() {
	m.IncidentsCompletedTotal.Inc()
}
