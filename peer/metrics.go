package peer

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the prometheus collectors shared by every session created with
// them. A nil *Metrics records nothing.
type Metrics struct {
	messagesReceived *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	bytesReceived    prometheus.Counter
	bytesSent        prometheus.Counter
	sessions         *prometheus.GaugeVec
	closes           *prometheus.CounterVec
	rejectedProofs   prometheus.Counter
}

// NewMetrics creates the session collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spvd",
				Subsystem: "peer",
				Name:      "messages_received_total",
				Help:      "Messages decoded from peers, by command.",
			},
			[]string{"command"}),
		messagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spvd",
				Subsystem: "peer",
				Name:      "messages_sent_total",
				Help:      "Messages written to peers, by command.",
			},
			[]string{"command"}),
		bytesReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spvd",
				Subsystem: "peer",
				Name:      "bytes_received_total",
				Help:      "Bytes read from peers.",
			}),
		bytesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spvd",
				Subsystem: "peer",
				Name:      "bytes_sent_total",
				Help:      "Bytes written to peers.",
			}),
		sessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "spvd",
				Subsystem: "peer",
				Name:      "sessions",
				Help:      "Open sessions, by role.",
			},
			[]string{"role"}),
		closes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spvd",
				Subsystem: "peer",
				Name:      "closes_total",
				Help:      "Closed sessions, by reason.",
			},
			[]string{"reason"}),
		rejectedProofs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spvd",
				Subsystem: "peer",
				Name:      "rejected_merkle_proofs_total",
				Help:      "Merkleblock messages whose proof failed validation.",
			}),
	}

	collectors := []prometheus.Collector{
		m.messagesReceived, m.messagesSent, m.bytesReceived, m.bytesSent,
		m.sessions, m.closes, m.rejectedProofs,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, errors.Wrap(err, "failed to register peer metrics")
		}
	}
	return m, nil
}

func (m *Metrics) received(command string, bytes int) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(command).Inc()
	m.bytesReceived.Add(float64(bytes))
}

func (m *Metrics) sent(command string, bytes int) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(command).Inc()
	m.bytesSent.Add(float64(bytes))
}

func (m *Metrics) opened(role Role) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(role.String()).Inc()
}

func (m *Metrics) closed(role Role, reason CloseReason) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(role.String()).Dec()
	m.closes.WithLabelValues(reason.String()).Inc()
}

func (m *Metrics) rejectedProof() {
	if m == nil {
		return
	}
	m.rejectedProofs.Inc()
}
