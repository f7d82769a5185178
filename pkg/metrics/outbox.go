package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish results
const (
	PublishSuccess = "success"
	PublishRetry   = "retry"
	PublishFailed  = "failed"
)

// OutboxMetrics counts outbox deliveries by event type and result
type OutboxMetrics struct {
	published *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox metrics on reg
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}

	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_messages_published_total",
		Help: "Outbox messages handled, by event type and result.",
	}, []string{"event_type", "result"})

	reg.MustRegister(published)

	return &OutboxMetrics{published: published}
}

func (o *OutboxMetrics) IncPublished(eventType, result string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(eventType, result).Inc()
}
