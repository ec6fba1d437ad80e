// Package metrics holds the bot's prometheus counters: inbound webhooks
// by platform/event type, outbound HTTP responses by platform/code, and
// job enqueue/completion counts by prover.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	webhookEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formalci_webhook_events_total",
		Help: "A counter of webhook events received, by platform and event type.",
	}, []string{"platform", "event_type"})

	webhookResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formalci_webhook_responses_total",
		Help: "A counter of webhook HTTP responses sent, by platform and status code.",
	}, []string{"platform", "code"})

	jobsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formalci_jobs_enqueued_total",
		Help: "A counter of proof jobs accepted by the scheduler, by prover and priority.",
	}, []string{"prover", "priority"})

	jobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formalci_jobs_completed_total",
		Help: "A counter of proof jobs reaching a terminal state, by prover and outcome.",
	}, []string{"prover", "outcome"})
)

func init() {
	prometheus.MustRegister(webhookEventsTotal, webhookResponsesTotal, jobsEnqueuedTotal, jobsCompletedTotal)
}

// RecordWebhookEvent increments the inbound webhook counter.
func RecordWebhookEvent(platform, eventType string) {
	webhookEventsTotal.WithLabelValues(platform, eventType).Inc()
}

// RecordWebhookResponse increments the outbound response counter.
func RecordWebhookResponse(platform, code string) {
	webhookResponsesTotal.WithLabelValues(platform, code).Inc()
}

// RecordJobEnqueued increments the jobs-enqueued counter.
func RecordJobEnqueued(prover, priority string) {
	jobsEnqueuedTotal.WithLabelValues(prover, priority).Inc()
}

// RecordJobCompleted increments the jobs-completed counter.
func RecordJobCompleted(prover, outcome string) {
	jobsCompletedTotal.WithLabelValues(prover, outcome).Inc()
}
