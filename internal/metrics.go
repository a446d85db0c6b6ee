package internal

import (
	"expvar"
	"net/http"
)

var (
	requestsTotal      = expvar.NewMap("ghbridge_requests_total")
	rejectedTotal      = expvar.NewMap("ghbridge_rejected_total")
	mutedTotal         = expvar.NewMap("ghbridge_muted_total")
	skippedTotal       = expvar.NewMap("ghbridge_skipped_total")
	notificationsTotal = expvar.NewMap("ghbridge_notifications_total")
	deliveryErrors     = expvar.NewMap("ghbridge_delivery_errors_total")
	publishErrors      = expvar.NewMap("ghbridge_publish_errors_total")
)

// IncRequest counts a delivery by its X-GitHub-Event name.
func IncRequest(event string) {
	requestsTotal.Add(event, 1)
}

// IncRejected counts a delivery answered with a 4xx, keyed by reason.
func IncRejected(reason string) {
	rejectedTotal.Add(reason, 1)
}

func IncMuted(event string) {
	mutedTotal.Add(event, 1)
}

// IncSkipped counts deliveries dropped before routing (ignore rules,
// repository filters, disabled events, no-op handlers).
func IncSkipped(reason string) {
	skippedTotal.Add(reason, 1)
}

// IncNotification counts a delivered notification by operation (send or edit).
func IncNotification(op string) {
	notificationsTotal.Add(op, 1)
}

func IncDeliveryError(op string) {
	deliveryErrors.Add(op, 1)
}

func IncPublishError(driver string) {
	publishErrors.Add(driver, 1)
}

// MetricsHandler serves every expvar counter as JSON.
func MetricsHandler() http.Handler {
	return expvar.Handler()
}
