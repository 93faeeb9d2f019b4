// Package state holds the in-memory LED state shared between the
// protocol server and the reconciler. Pending state is what clients
// asked for; the reconciler owns the applied (confirmed) side.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MaxLEDs is the fixed number of LED slots the daemon manages.
const MaxLEDs = 10

// Timing bounds for blink/breath cadence and one-shot pulses, in
// milliseconds. All timings are clamped into this range on write.
const (
	MinTimingMs = 50
	MaxTimingMs = 0x7fff
)

// ErrSlotRange is returned for LED indexes outside [0, MaxLEDs).
var ErrSlotRange = errors.New("led index out of range")

// OpMode is the operating mode of a single LED.
type OpMode int

const (
	ModeOff OpMode = iota
	ModeOn
	ModeBlink
	ModeBreath
)

func (m OpMode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeOn:
		return "on"
	case ModeBlink:
		return "blink"
	case ModeBreath:
		return "breath"
	default:
		return "unknown"
	}
}

// LED is one slot's configuration record. The daemon keeps two of
// these per slot: pending (desired) and applied (last confirmed).
type LED struct {
	Available  bool
	Mode       OpMode
	Brightness uint8
	R, G, B    uint8
	TOn, TOff  int // milliseconds, within [MinTimingMs, MaxTimingMs]
}

// Oneshot is the one-shot pulse override for a slot. While enabled it
// overrides the effective mode seen by the reconciler without touching
// the stored Mode field.
type Oneshot struct {
	Enabled bool
	Start   time.Time
}

// Store guards pending and one-shot state behind a single mutex.
// Mutators never touch hardware; convergence is the reconciler's job.
type Store struct {
	mu      sync.Mutex
	pending [MaxLEDs]LED
	oneshot [MaxLEDs]Oneshot
	probed  int
	now     func() time.Time
}

// New creates a store seeded with the probed LED status. The probed
// slice is the contiguous prefix of available slots reported by the
// hardware at startup. nowFn overrides the clock for tests; nil means
// time.Now.
func New(probed []LED, nowFn func() time.Time) *Store {
	if nowFn == nil {
		nowFn = time.Now
	}
	s := &Store{probed: len(probed), now: nowFn}
	copy(s.pending[:], probed)
	return s
}

// ProbedCount returns the number of LEDs confirmed present at startup.
func (s *Store) ProbedCount() int {
	return s.probed
}

func checkSlot(slot int) error {
	if slot < 0 || slot >= MaxLEDs {
		return fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	return nil
}

// SetBrightness implements the brightness_set semantics: level 0
// forces the LED off, any other level turns an off LED back on and
// records the new brightness.
func (s *Store) SetBrightness(slot int, level uint8) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	led := &s.pending[slot]
	if level == 0 {
		led.Mode = ModeOff
		return nil
	}
	if led.Mode == ModeOff {
		led.Mode = ModeOn
	}
	led.Brightness = level
	return nil
}

// SetColor updates the pending color. All-zero input is the
// protocol's "no change" sentinel, so true black is not settable.
func (s *Store) SetColor(slot int, r, g, b uint8) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if r == 0 && g == 0 && b == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	led := &s.pending[slot]
	led.R, led.G, led.B = r, g, b
	return nil
}

// SetMode sets the pending operating mode directly (on/off commands).
func (s *Store) SetMode(slot int, mode OpMode) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[slot].Mode = mode
	return nil
}

// SetBlink switches the slot to blink or breath with the given
// cadence. Timings are clamped to the hardware range.
func (s *Store) SetBlink(slot int, mode OpMode, tOn, tOff int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if mode != ModeBlink && mode != ModeBreath {
		return fmt.Errorf("invalid blink mode %s", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	led := &s.pending[slot]
	led.Mode = mode
	led.TOn = ClampTiming(tOn)
	led.TOff = ClampTiming(tOff)
	return nil
}

// SetOneshot stores the clamped pulse timings. It does not start a
// pulse; that takes a Shot trigger.
func (s *Store) SetOneshot(slot int, tOn, tOff int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	led := &s.pending[slot]
	led.TOn = ClampTiming(tOn)
	led.TOff = ClampTiming(tOff)
	return nil
}

// Shot triggers a one-shot pulse. A trigger arriving mid-cycle is
// ignored so an in-flight pulse is never re-phased; once the cycle
// (tOn+tOff) has elapsed a new trigger starts a fresh pulse.
func (s *Store) Shot(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	shot := &s.oneshot[slot]
	now := s.now()
	cycle := int64(s.pending[slot].TOn + s.pending[slot].TOff)
	if !shot.Enabled || now.Sub(shot.Start).Milliseconds() > cycle {
		shot.Enabled = true
		shot.Start = now
	}
	return nil
}

// ReadPending returns a copy of the slot's pending record.
func (s *Store) ReadPending(slot int) (LED, error) {
	if err := checkSlot(slot); err != nil {
		return LED{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending[slot], nil
}

// Snapshot copies out the probed prefix of pending and one-shot state.
// The reconciler calls this once per tick so hardware I/O never runs
// while the lock is held.
func (s *Store) Snapshot() ([]LED, []Oneshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	leds := make([]LED, s.probed)
	shots := make([]Oneshot, s.probed)
	copy(leds, s.pending[:s.probed])
	copy(shots, s.oneshot[:s.probed])
	return leds, shots
}

// ClampTiming clamps a timing value into the hardware range.
func ClampTiming(v int) int {
	if v < MinTimingMs {
		return MinTimingMs
	}
	if v > MaxTimingMs {
		return MaxTimingMs
	}
	return v
}

// EffectiveMode returns the mode the hardware should show at the given
// instant. An active one-shot pulse overrides the stored mode: on for
// tOn, off for tOff, then on again until the next trigger.
func EffectiveMode(led LED, shot Oneshot, now time.Time) OpMode {
	if !shot.Enabled {
		return led.Mode
	}
	elapsed := now.Sub(shot.Start).Milliseconds()
	switch {
	case elapsed < int64(led.TOn):
		return ModeOn
	case elapsed < int64(led.TOn+led.TOff):
		return ModeOff
	default:
		return ModeOn
	}
}
