// Package reconcile drives the LED hardware toward pending state on a
// fixed tick. It is the only writer of applied state and the only
// caller of the controller after startup.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/nasutils/ledd/internal/hw"
	"github.com/nasutils/ledd/internal/metrics"
	"github.com/nasutils/ledd/internal/state"
)

// DefaultInterval is the reconciliation tick period.
const DefaultInterval = 50 * time.Millisecond

// Reconciler diffs pending state against applied state every tick and
// issues the minimal set of hardware calls. Failed calls leave applied
// state untouched, so the same transition is retried next tick.
type Reconciler struct {
	ctrl     hw.Controller
	store    *state.Store
	applied  [state.MaxLEDs]state.LED
	interval time.Duration

	// Throttles hardware-failure logging; a dead bus fails every
	// tick and would otherwise flood the journal.
	errLog *rate.Limiter

	now func() time.Time
}

// New creates a reconciler seeded with the probed hardware status as
// initial applied state. nowFn overrides the clock for tests; nil
// means time.Now.
func New(ctrl hw.Controller, store *state.Store, initial []state.LED, interval time.Duration, nowFn func() time.Time) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	r := &Reconciler{
		ctrl:     ctrl,
		store:    store,
		interval: interval,
		errLog:   rate.NewLimiter(rate.Every(time.Second), 1),
		now:      nowFn,
	}
	copy(r.applied[:], initial)
	return r
}

// Run executes the tick loop until ctx is cancelled. Cancellation is
// observed once per tick, so shutdown latency is bounded by one
// interval.
func (r *Reconciler) Run(ctx context.Context) error {
	log.Info().Dur("interval", r.interval).Msg("Reconciler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Reconciler stopping")
			return nil
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick runs one reconcile pass over all probed slots.
func (r *Reconciler) Tick() {
	pending, shots := r.store.Snapshot()
	now := r.now()
	for i := range pending {
		r.reconcileSlot(i, pending[i], shots[i], now)
	}
	metrics.ReconcileTicks.Inc()
}

func (r *Reconciler) reconcileSlot(slot int, pending state.LED, shot state.Oneshot, now time.Time) {
	applied := &r.applied[slot]
	mode := state.EffectiveMode(pending, shot, now)

	if mode != applied.Mode {
		switch mode {
		case state.ModeOff:
			if r.call(slot, "set_onoff", r.ctrl.SetOnOff(slot, false)) {
				applied.Mode = state.ModeOff
			}
			// The LED is (going) dark: brightness and color sync
			// resume on a later tick.
			return
		case state.ModeOn:
			if r.call(slot, "set_onoff", r.ctrl.SetOnOff(slot, true)) {
				applied.Mode = state.ModeOn
			}
		case state.ModeBlink:
			if r.call(slot, "set_blink", r.ctrl.SetBlink(slot, pending.TOn, pending.TOff)) {
				applied.Mode = state.ModeBlink
				applied.TOn = pending.TOn
				applied.TOff = pending.TOff
			}
		case state.ModeBreath:
			if r.call(slot, "set_breath", r.ctrl.SetBreath(slot, pending.TOn, pending.TOff)) {
				applied.Mode = state.ModeBreath
				applied.TOn = pending.TOn
				applied.TOff = pending.TOff
			}
		}
	}

	if pending.Brightness != applied.Brightness {
		if r.call(slot, "set_brightness", r.ctrl.SetBrightness(slot, pending.Brightness)) {
			applied.Brightness = pending.Brightness
		}
	}

	if pending.R != applied.R || pending.G != applied.G || pending.B != applied.B {
		if r.call(slot, "set_rgb", r.ctrl.SetRGB(slot, pending.R, pending.G, pending.B)) {
			applied.R, applied.G, applied.B = pending.R, pending.G, pending.B
		}
	}
}

// call records a failed hardware call and reports whether it
// succeeded. Failures are retried next tick with no backoff.
func (r *Reconciler) call(slot int, op string, err error) bool {
	if err == nil {
		return true
	}
	metrics.HardwareErrors.WithLabelValues(op).Inc()
	if r.errLog.Allow() {
		log.Warn().Err(err).Int("led", slot).Str("op", op).Msg("Hardware call failed, retrying next tick")
	}
	return false
}
