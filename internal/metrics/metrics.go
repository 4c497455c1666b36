package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CheckIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_checkins_total",
			Help: "Check-in attempts by outcome",
		},
		[]string{"result"},
	)
	CatalogSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_catalog_source_total",
			Help: "Venue catalog reads by the source that served them",
		},
		[]string{"source"},
	)
	CreditSpends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_spends_total",
			Help: "Credit spend attempts by outcome",
		},
		[]string{"result"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "interaction_sessions_active",
			Help: "Interaction sessions currently held in memory",
		},
	)

	registerOnce sync.Once
)

// Register adds the domain collectors to the default registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(CheckIns)
		prometheus.MustRegister(CatalogSource)
		prometheus.MustRegister(CreditSpends)
		prometheus.MustRegister(ActiveSessions)
	})
}
