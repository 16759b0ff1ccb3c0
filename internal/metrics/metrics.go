package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "boma",
			Name:      "bookings_created_total",
			Help:      "Bookings successfully created.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "boma",
			Name:      "booking_conflicts_total",
			Help:      "Booking requests rejected because the dates were taken.",
		},
	)

	paymentsInitiated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boma",
			Name:      "payments_initiated_total",
			Help:      "Checkout initiations by payment method.",
		},
		[]string{"method"},
	)

	webhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boma",
			Name:      "webhooks_total",
			Help:      "Gateway webhook deliveries by reconciliation outcome.",
		},
		[]string{"outcome"},
	)

	ledgerGroups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boma",
			Name:      "ledger_groups_total",
			Help:      "Balanced ledger groups appended, by reference type.",
		},
		[]string{"reference_type"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingsCreated, bookingConflicts, paymentsInitiated, webhooks, ledgerGroups)
	})
}

func IncBookingCreated()  { bookingsCreated.Inc() }
func IncBookingConflict() { bookingConflicts.Inc() }

func IncPaymentInitiated(method string) { paymentsInitiated.WithLabelValues(method).Inc() }

func IncWebhook(outcome string) { webhooks.WithLabelValues(outcome).Inc() }

func IncLedgerGroup(referenceType string) { ledgerGroups.WithLabelValues(referenceType).Inc() }
