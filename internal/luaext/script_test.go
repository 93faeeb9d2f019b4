package luaext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nasutils/ledd/internal/state"
)

func runScript(t *testing.T, store *state.Store, script string) error {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boot.lua")
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return RunScript(path, store)
}

func newTestStore(n int) *state.Store {
	leds := make([]state.LED, n)
	for i := range leds {
		leds[i].Available = true
	}
	return state.New(leds, nil)
}

func TestScriptSetsPendingState(t *testing.T) {
	store := newTestStore(2)

	err := runScript(t, store, `
local led = require("led")
local log = require("log")

log.info("boot policy")
led.brightness(0, 80)
led.color(0, 10, 20, 30)
led.breath(1, 300, 700)
`)
	if err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}

	led0, _ := store.ReadPending(0)
	if led0.Mode != state.ModeOn || led0.Brightness != 80 || led0.R != 10 {
		t.Errorf("led 0 pending = %+v, want on/80 with color", led0)
	}

	led1, _ := store.ReadPending(1)
	if led1.Mode != state.ModeBreath || led1.TOn != 300 || led1.TOff != 700 {
		t.Errorf("led 1 pending = %+v, want breath 300/700", led1)
	}
}

func TestScriptCount(t *testing.T) {
	store := newTestStore(3)

	err := runScript(t, store, `
local led = require("led")
if led.count() ~= 3 then
	error("unexpected led count")
end
`)
	if err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}
}

func TestScriptErrorsAreReported(t *testing.T) {
	store := newTestStore(1)

	if err := runScript(t, store, `error("boom")`); err == nil {
		t.Error("RunScript() with failing script should return an error")
	}
}

func TestScriptBadSlotReturnsFalse(t *testing.T) {
	store := newTestStore(1)

	err := runScript(t, store, `
local led = require("led")
local ok, msg = led.on(99)
if ok then
	error("expected out-of-range slot to fail")
end
if msg == nil then
	error("expected an error message")
end
`)
	if err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}
}
