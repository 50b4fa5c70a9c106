package documents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "document_submissions_total",
		Help: "Document uploads by type and whether they replaced an existing record",
	}, []string{"doc_type", "replaced"})

	documentReviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "document_reviews_total",
		Help: "Admin review decisions by resulting status",
	}, []string{"status"})

	documentResendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "document_resends_total",
		Help: "Documents reset to pending by their owner",
	}, []string{"doc_type"})

	verificationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_verification_transitions_total",
		Help: "Driver aggregate status changes",
	}, []string{"from", "to"})

	aggregateWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driver_verification_write_failures_total",
		Help: "Aggregation passes whose result could not be stored",
	})
)
