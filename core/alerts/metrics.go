package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var alertsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "checkops",
	Name:      "alerts_processed_total",
	Help:      "Surveillance alerts handled by the checklist generator, by outcome.",
}, []string{"outcome"})

var sourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "checkops",
	Name:      "alert_source_errors_total",
	Help:      "Read or decode failures of alert sources.",
}, []string{"source", "kind"})
