package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReservationMetrics counts coordinator outcomes so overbooking pressure and
// compensation activity are visible without log scraping.
type ReservationMetrics struct {
	confirmed            prometheus.Counter
	capacityRejected     prometheus.Counter
	compensations        prometheus.Counter
	cancellations        prometheus.Counter
	reconciliationOpened prometheus.Counter
	reconciliationClosed prometheus.Counter
}

// NewReservationMetrics registers the reservation counters on the provided registerer.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	m := &ReservationMetrics{
		confirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservations_confirmed_total",
			Help: "Reservations that reached confirmed.",
		}),
		capacityRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservations_capacity_rejected_total",
			Help: "Create attempts rejected for insufficient capacity.",
		}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservations_compensations_total",
			Help: "Compensating releases issued after a ledger failure.",
		}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservations_cancelled_total",
			Help: "Reservations cancelled by their owner.",
		}),
		reconciliationOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_items_opened_total",
			Help: "Releases handed to the reconciler after retry exhaustion.",
		}),
		reconciliationClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_items_resolved_total",
			Help: "Reconciliation items whose release finally landed.",
		}),
	}
	reg.MustRegister(
		m.confirmed,
		m.capacityRejected,
		m.compensations,
		m.cancellations,
		m.reconciliationOpened,
		m.reconciliationClosed,
	)
	return m
}

func (m *ReservationMetrics) IncConfirmed() {
	if m == nil || m.confirmed == nil {
		return
	}
	m.confirmed.Inc()
}

func (m *ReservationMetrics) IncCapacityRejected() {
	if m == nil || m.capacityRejected == nil {
		return
	}
	m.capacityRejected.Inc()
}

func (m *ReservationMetrics) IncCompensation() {
	if m == nil || m.compensations == nil {
		return
	}
	m.compensations.Inc()
}

func (m *ReservationMetrics) IncCancelled() {
	if m == nil || m.cancellations == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *ReservationMetrics) IncReconciliationOpened() {
	if m == nil || m.reconciliationOpened == nil {
		return
	}
	m.reconciliationOpened.Inc()
}

func (m *ReservationMetrics) IncReconciliationResolved() {
	if m == nil || m.reconciliationClosed == nil {
		return
	}
	m.reconciliationClosed.Inc()
}
