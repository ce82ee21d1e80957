package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsInitialized,
		statusTransitions,
		premiumActivations,
		webhookCallbacks,
		providerRequestDuration,
	)
}

var (
	// result: ok|invalid|provider_error|store_error
	paymentsInitialized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobile_payments_initialized_total",
			Help: "Payment initializations by payment method and result.",
		},
		[]string{"payment_method", "result"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobile_payments_status_transitions_total",
			Help: "Transaction status changes won by a reconciliation source.",
		},
		[]string{"source", "status"},
	)

	premiumActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobile_payments_premium_activations_total",
			Help: "Premium grants by reconciliation source.",
		},
		[]string{"source"},
	)

	// result: processed|rejected|ignored|error
	webhookCallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mobile_payments_webhook_callbacks_total",
			Help: "Webhook deliveries by provider and result.",
		},
		[]string{"provider", "result"},
	)

	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mobile_payments_provider_request_duration_seconds",
			Help:    "Duration of provider API calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "success"},
	)
)

func IncInitialized(paymentMethod, result string) {
	paymentsInitialized.WithLabelValues(norm(paymentMethod), norm(result)).Inc()
}

func IncStatusTransition(source, status string) {
	statusTransitions.WithLabelValues(norm(source), norm(status)).Inc()
}

func IncPremiumActivation(source string) {
	premiumActivations.WithLabelValues(norm(source)).Inc()
}

func IncWebhookCallback(provider, result string) {
	webhookCallbacks.WithLabelValues(norm(provider), norm(result)).Inc()
}

func ObserveProviderRequest(operation string, started time.Time, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	providerRequestDuration.WithLabelValues(norm(operation), success).Observe(time.Since(started).Seconds())
}
