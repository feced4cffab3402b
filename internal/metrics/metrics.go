package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Reservations successfully created.",
	})

	ReservationsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_rejected_total",
		Help: "Reserve requests rejected for insufficient stock.",
	})

	ReservationsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_confirmed_total",
		Help: "Reservations confirmed into permanent stock deductions.",
	})

	ReservationsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_released_total",
		Help: "Reservations released back to available capacity.",
	})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_sweep_runs_total",
		Help: "Expiry sweeper executions.",
	})

	SweepReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_sweep_released_total",
		Help: "Expired reservations released by the sweeper.",
	})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Applied order status transitions.",
	}, []string{"to"})

	OrderTransitionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Order transitions rejected by the lifecycle graph.",
	})
)
