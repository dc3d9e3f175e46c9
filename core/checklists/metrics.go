package checklists

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "checkops",
	Name:      "instance_status_transitions_total",
	Help:      "Checklist instance status changes by source and target status.",
}, []string{"from", "to"})

var orphanedBlobs = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "checkops",
	Name:      "orphaned_blobs_total",
	Help:      "Attachment blobs that could not be removed after their rows were deleted.",
})
