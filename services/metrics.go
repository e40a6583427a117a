package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names used as metric labels.
const (
	stageCollect   = "collect"
	stageExtract   = "extract"
	stageChemistry = "chemistry"
	stageReview    = "review"
	stagePromote   = "promote"
)

var (
	stageItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "golden",
		Name:      "stage_items_total",
		Help:      "Items handled per pipeline stage and outcome.",
	}, []string{"stage", "outcome"})

	newCandidates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "golden",
		Name:      "new_candidates_total",
		Help:      "Raw candidates inserted by the collector.",
	})

	externalCallSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "golden",
		Name:      "external_call_seconds",
		Help:      "Latency of calls to external registries and chemistry services.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "outcome"})
)

func countItem(stage, outcome string) {
	stageItems.WithLabelValues(stage, outcome).Inc()
}

func observeCall(service string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	externalCallSeconds.WithLabelValues(service, outcome).Observe(time.Since(start).Seconds())
}
