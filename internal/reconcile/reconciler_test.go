package reconcile

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nasutils/ledd/internal/state"
)

// fakeController records hardware calls and can be told to fail.
type fakeController struct {
	calls []string
	fail  map[string]bool
}

func newFakeController() *fakeController {
	return &fakeController{fail: make(map[string]bool)}
}

func (f *fakeController) record(op string, slot int) error {
	if f.fail[op] {
		return errors.New("bus error")
	}
	f.calls = append(f.calls, fmt.Sprintf("%s/%d", op, slot))
	return nil
}

func (f *fakeController) Status(slot int) (state.LED, error) {
	return state.LED{Available: true}, nil
}

func (f *fakeController) SetOnOff(slot int, on bool) error {
	if on {
		return f.record("on", slot)
	}
	return f.record("off", slot)
}

func (f *fakeController) SetBrightness(slot int, level uint8) error {
	return f.record("brightness", slot)
}

func (f *fakeController) SetRGB(slot int, r, g, b uint8) error {
	return f.record("rgb", slot)
}

func (f *fakeController) SetBlink(slot int, tOn, tOff int) error {
	return f.record("blink", slot)
}

func (f *fakeController) SetBreath(slot int, tOn, tOff int) error {
	return f.record("breath", slot)
}

func (f *fakeController) Close() error { return nil }

func newTestRig(n int) (*fakeController, *state.Store, *Reconciler) {
	ctrl := newFakeController()
	initial := make([]state.LED, n)
	for i := range initial {
		initial[i].Available = true
	}
	store := state.New(initial, nil)
	rec := New(ctrl, store, initial, DefaultInterval, nil)
	return ctrl, store, rec
}

func TestConvergence(t *testing.T) {
	ctrl, store, rec := newTestRig(2)

	store.SetBrightness(0, 80)
	store.SetColor(0, 10, 20, 30)
	store.SetBlink(1, state.ModeBreath, 300, 700)

	// One tick with an always-succeeding controller converges.
	rec.Tick()

	want0 := state.LED{Available: true, Mode: state.ModeOn, Brightness: 80, R: 10, G: 20, B: 30}
	if got := rec.applied[0]; got != want0 {
		t.Errorf("applied[0] = %+v, want %+v", got, want0)
	}
	want1 := state.LED{Available: true, Mode: state.ModeBreath, TOn: 300, TOff: 700}
	if got := rec.applied[1]; got != want1 {
		t.Errorf("applied[1] = %+v, want %+v", got, want1)
	}

	// A second tick with no pending changes issues no hardware calls.
	n := len(ctrl.calls)
	rec.Tick()
	if len(ctrl.calls) != n {
		t.Errorf("converged tick issued calls: %v", ctrl.calls[n:])
	}
}

func TestOffSkipsBrightnessAndColor(t *testing.T) {
	ctrl, store, rec := newTestRig(1)

	store.SetBrightness(0, 80)
	rec.Tick()
	ctrl.calls = nil

	// Turn off while brightness and color also differ.
	store.SetMode(0, state.ModeOff)
	store.SetBrightness(0, 0) // forces off, level stays
	store.SetColor(0, 1, 2, 3)
	rec.Tick()

	if len(ctrl.calls) != 1 || ctrl.calls[0] != "off/0" {
		t.Fatalf("off transition calls = %v, want [off/0]", ctrl.calls)
	}

	// Next tick the mode matches applied, so color syncs.
	ctrl.calls = nil
	rec.Tick()
	for _, c := range ctrl.calls {
		if c == "off/0" || c == "on/0" {
			t.Errorf("unexpected mode call %s after convergence", c)
		}
	}
	if got := rec.applied[0]; got.R != 1 || got.G != 2 || got.B != 3 {
		t.Errorf("color not synced on later tick: %+v", got)
	}
}

func TestFailureRetriesNextTick(t *testing.T) {
	ctrl, store, rec := newTestRig(1)

	ctrl.fail["on"] = true
	store.SetMode(0, state.ModeOn)

	rec.Tick()
	if got := rec.applied[0].Mode; got != state.ModeOff {
		t.Errorf("applied mode = %v after failed call, want off", got)
	}

	// Same transition is retried once the hardware recovers.
	ctrl.fail["on"] = false
	rec.Tick()
	if got := rec.applied[0].Mode; got != state.ModeOn {
		t.Errorf("applied mode = %v after retry, want on", got)
	}
}

func TestBrightnessAndColorFailIndependently(t *testing.T) {
	ctrl, store, rec := newTestRig(1)

	store.SetBrightness(0, 80)
	store.SetColor(0, 10, 20, 30)

	ctrl.fail["rgb"] = true
	rec.Tick()

	applied := rec.applied[0]
	if applied.Brightness != 80 {
		t.Errorf("brightness = %d, want 80 despite rgb failure", applied.Brightness)
	}
	if applied.R != 0 {
		t.Errorf("color advanced despite failure: %+v", applied)
	}

	ctrl.fail["rgb"] = false
	rec.Tick()
	if got := rec.applied[0]; got.R != 10 || got.G != 20 || got.B != 30 {
		t.Errorf("color not converged after recovery: %+v", got)
	}
}

func TestOneshotDrivesOnOffCalls(t *testing.T) {
	ctrl := newFakeController()
	initial := []state.LED{{Available: true}}
	now := time.Unix(1000, 0)
	store := state.New(initial, func() time.Time { return now })

	rec := New(ctrl, store, initial, DefaultInterval, func() time.Time { return now })

	store.SetOneshot(0, 100, 200)
	store.Shot(0)

	// Within tOn: effective mode is on.
	now = now.Add(50 * time.Millisecond)
	rec.Tick()
	if got := rec.applied[0].Mode; got != state.ModeOn {
		t.Fatalf("mode = %v at +50ms, want on", got)
	}

	// Within tOff: effective mode drops to off.
	now = now.Add(100 * time.Millisecond)
	rec.Tick()
	if got := rec.applied[0].Mode; got != state.ModeOff {
		t.Fatalf("mode = %v at +150ms, want off", got)
	}

	// After the cycle: holds on, no auto-repeat.
	now = now.Add(200 * time.Millisecond)
	rec.Tick()
	if got := rec.applied[0].Mode; got != state.ModeOn {
		t.Fatalf("mode = %v at +350ms, want on", got)
	}

	want := []string{"on/0", "off/0", "on/0"}
	if len(ctrl.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", ctrl.calls, want)
	}
	for i := range want {
		if ctrl.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", ctrl.calls, want)
		}
	}
}
