package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	connections  prometheus.Gauge
	rooms        prometheus.Gauge
	gamesStarted prometheus.Counter
	moves        prometheus.Counter
	rejections   *prometheus.CounterVec
}

// newMetrics builds the coordinator collectors and registers them on reg
// when it is not nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gobang_connections",
			Help: "Number of live client connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gobang_rooms",
			Help: "Number of live rooms.",
		}),
		gamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gobang_games_started_total",
			Help: "Games started after both players readied up.",
		}),
		moves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gobang_moves_total",
			Help: "Accepted moves.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gobang_rejections_total",
			Help: "Rejected start and click requests by reason.",
		}, []string{"event", "reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.rooms, m.gamesStarted, m.moves, m.rejections)
	}
	return m
}
