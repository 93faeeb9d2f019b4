package luaext

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nasutils/ledd/internal/state"
)

// LEDModule exposes light mutations to Lua. Every function takes the
// LED index first and mirrors a protocol command; mutations land in
// pending state and the reconciler pushes them to hardware.
type LEDModule struct {
	store *state.Store
}

// NewLEDModule creates a new led module
func NewLEDModule(store *state.Store) *LEDModule {
	return &LEDModule{store: store}
}

// Loader is the module loader for Lua
func (m *LEDModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "count", L.NewFunction(m.count))
	L.SetField(mod, "on", L.NewFunction(m.on))
	L.SetField(mod, "off", L.NewFunction(m.off))
	L.SetField(mod, "brightness", L.NewFunction(m.brightness))
	L.SetField(mod, "color", L.NewFunction(m.color))
	L.SetField(mod, "blink", L.NewFunction(m.blink))
	L.SetField(mod, "breath", L.NewFunction(m.breath))
	L.SetField(mod, "oneshot", L.NewFunction(m.oneshot))
	L.SetField(mod, "shot", L.NewFunction(m.shot))

	L.Push(mod)
	return 1
}

func (m *LEDModule) count(L *lua.LState) int {
	L.Push(lua.LNumber(m.store.ProbedCount()))
	return 1
}

func (m *LEDModule) on(L *lua.LState) int {
	return m.result(L, m.store.SetMode(L.CheckInt(1), state.ModeOn))
}

func (m *LEDModule) off(L *lua.LState) int {
	return m.result(L, m.store.SetMode(L.CheckInt(1), state.ModeOff))
}

func (m *LEDModule) brightness(L *lua.LState) int {
	return m.result(L, m.store.SetBrightness(L.CheckInt(1), uint8(L.CheckInt(2))))
}

func (m *LEDModule) color(L *lua.LState) int {
	return m.result(L, m.store.SetColor(
		L.CheckInt(1), uint8(L.CheckInt(2)), uint8(L.CheckInt(3)), uint8(L.CheckInt(4))))
}

func (m *LEDModule) blink(L *lua.LState) int {
	return m.result(L, m.store.SetBlink(
		L.CheckInt(1), state.ModeBlink, L.CheckInt(2), L.CheckInt(3)))
}

func (m *LEDModule) breath(L *lua.LState) int {
	return m.result(L, m.store.SetBlink(
		L.CheckInt(1), state.ModeBreath, L.CheckInt(2), L.CheckInt(3)))
}

func (m *LEDModule) oneshot(L *lua.LState) int {
	return m.result(L, m.store.SetOneshot(L.CheckInt(1), L.CheckInt(2), L.CheckInt(3)))
}

func (m *LEDModule) shot(L *lua.LState) int {
	return m.result(L, m.store.Shot(L.CheckInt(1)))
}

// result pushes (true) or (false, message) in the usual Lua style.
func (m *LEDModule) result(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}
