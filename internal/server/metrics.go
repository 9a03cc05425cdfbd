package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

// Metrics instruments the directory channel. A nil *Metrics records nothing.
type Metrics struct {
	consumers prometheus.Gauge
	pushes    *prometheus.CounterVec
	requests  *prometheus.CounterVec
	dropped   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		consumers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "syphon_directory_consumers",
			Help: "Number of connected consumer contexts",
		}),
		pushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "syphon_directory_pushes_total",
			Help: "Notifications pushed to consumers, by channel",
		}, []string{"channel"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "syphon_directory_requests_total",
			Help: "Requests received from consumers, by type",
		}, []string{"type"}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "syphon_directory_dropped_messages_total",
			Help: "Messages dropped because a consumer queue was full",
		}),
	}
}

func (m *Metrics) connected(n int) {
	if m == nil {
		return
	}
	m.consumers.Set(float64(n))
}

func (m *Metrics) pushed(ch syphon.Channel) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) requested(t signal.MessageType) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) droppedMessage() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
