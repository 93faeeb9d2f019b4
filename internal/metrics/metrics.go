// Package metrics exposes Prometheus collectors for the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileTicks counts completed reconciliation passes.
	ReconcileTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledd_reconcile_ticks_total",
		Help: "Completed reconciliation ticks.",
	})

	// HardwareErrors counts failed hardware calls by operation.
	HardwareErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledd_hardware_errors_total",
		Help: "Failed LED controller calls.",
	}, []string{"op"})

	// Commands counts accepted protocol commands by name.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledd_commands_total",
		Help: "Accepted protocol commands.",
	}, []string{"command"})

	// Sessions counts accepted client connections.
	Sessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledd_sessions_total",
		Help: "Accepted client sessions.",
	})

	// ProbedLEDs reports the number of LEDs found at startup.
	ProbedLEDs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledd_probed_leds",
		Help: "LEDs confirmed present by the startup probe.",
	})
)
