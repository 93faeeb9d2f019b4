// Package hw abstracts the LED controller hardware behind a small
// capability set. After startup the reconciler is the only caller, so
// implementations do not need to be goroutine-safe.
package hw

import (
	"github.com/rs/zerolog/log"

	"github.com/nasutils/ledd/internal/state"
)

// Controller is everything the daemon needs from the LED hardware.
// Every call reports success or failure; the reconciler retries failed
// transitions on the next tick.
type Controller interface {
	// Status probes one slot and reports its current configuration,
	// including whether the slot exists at all.
	Status(slot int) (state.LED, error)

	SetOnOff(slot int, on bool) error
	SetBrightness(slot int, level uint8) error
	SetRGB(slot int, r, g, b uint8) error
	SetBlink(slot int, tOnMs, tOffMs int) error
	SetBreath(slot int, tOnMs, tOffMs int) error

	Close() error
}

// Probe walks slots from zero and returns the contiguous prefix of
// available LEDs. Probing stops at the first unavailable or unreadable
// slot, so a higher slot is never reported available when a lower one
// failed.
func Probe(ctrl Controller, max int) []state.LED {
	var probed []state.LED
	for i := 0; i < max; i++ {
		st, err := ctrl.Status(i)
		if err != nil {
			log.Debug().Err(err).Int("led", i).Msg("Probe stopped")
			break
		}
		if !st.Available {
			break
		}
		probed = append(probed, st)
	}
	return probed
}
