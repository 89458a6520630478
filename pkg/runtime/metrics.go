package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts runtime activity per CRDT type. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	InstancesCreated *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	ChangesEmitted   *prometheus.CounterVec
	ReceiveErrors    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"type"})
	}

	m := &Metrics{
		InstancesCreated: counter("instances_created_total", "CRDT instances created in this process"),
		MessagesSent:     counter("messages_sent_total", "Messages submitted to the message handler"),
		MessagesReceived: counter("messages_received_total", "Messages merged into local state"),
		ChangesEmitted:   counter("changes_emitted_total", "Change events emitted by reduce"),
		ReceiveErrors:    counter("receive_errors_total", "Inbound messages that could not be merged"),
	}
	if reg != nil {
		reg.MustRegister(
			m.InstancesCreated,
			m.MessagesSent,
			m.MessagesReceived,
			m.ChangesEmitted,
			m.ReceiveErrors,
		)
	}
	return m
}

func (m *Metrics) add(vec func(*Metrics) *prometheus.CounterVec, typeName string, n int) {
	if m == nil || n == 0 {
		return
	}
	vec(m).WithLabelValues(typeName).Add(float64(n))
}

func (m *Metrics) created(typeName string) {
	m.add(func(m *Metrics) *prometheus.CounterVec { return m.InstancesCreated }, typeName, 1)
}

func (m *Metrics) sent(typeName string) {
	m.add(func(m *Metrics) *prometheus.CounterVec { return m.MessagesSent }, typeName, 1)
}

func (m *Metrics) received(typeName string, changes int) {
	m.add(func(m *Metrics) *prometheus.CounterVec { return m.MessagesReceived }, typeName, 1)
	m.add(func(m *Metrics) *prometheus.CounterVec { return m.ChangesEmitted }, typeName, changes)
}

func (m *Metrics) failed(typeName string) {
	m.add(func(m *Metrics) *prometheus.CounterVec { return m.ReceiveErrors }, typeName, 1)
}
