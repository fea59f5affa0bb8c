package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// bidsSubmitted counts submit attempts by result
	bidsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homebids_bids_submitted_total",
		Help: "Bid submissions by result",
	}, []string{"result"})

	// bidTransitions counts applied bid status changes
	bidTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homebids_bid_transitions_total",
		Help: "Bid status changes by target status",
	}, []string{"status"})

	creditsDebited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homebids_credits_debited_total",
		Help: "Credits spent on bids",
	})

	creditsRefunded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homebids_credits_refunded_total",
		Help: "Credits returned to contractors",
	})

	// messagesSent counts send attempts by result
	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homebids_messages_total",
		Help: "Conversation messages by result",
	}, []string{"result"})

	reviewsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homebids_reviews_created_total",
		Help: "Platform reviews created",
	})

	externalSnapshotContractors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "homebids_external_snapshot_contractors",
		Help: "Contractors in the last imported external review snapshot",
	})
)

// resultLabel turns an error into a low-cardinality metric label.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
