package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	messages *prometheus.CounterVec
	polls    *prometheus.CounterVec
	waiting  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "messages_total",
			Help:      "Records appended, by kind.",
		}, []string{"kind"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "polls_total",
			Help:      "Completed long-polls, by result.",
		}, []string{"result"}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "waiting_polls",
			Help:      "Long-polls currently blocked.",
		}),
	}
	reg.MustRegister(m.messages, m.polls, m.waiting)
	return m
}
