package luaext

import (
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// LogModule provides logging functions to Lua
type LogModule struct{}

// NewLogModule creates a new log module
func NewLogModule() *LogModule {
	return &LogModule{}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "debug", L.NewFunction(m.debug))
	L.SetField(mod, "info", L.NewFunction(m.info))
	L.SetField(mod, "warn", L.NewFunction(m.warn))
	L.SetField(mod, "error", L.NewFunction(m.errorLog))

	L.Push(mod)
	return 1
}

func (m *LogModule) debug(L *lua.LState) int {
	log.Debug().Str("source", "lua").Msg(L.CheckString(1))
	return 0
}

func (m *LogModule) info(L *lua.LState) int {
	log.Info().Str("source", "lua").Msg(L.CheckString(1))
	return 0
}

func (m *LogModule) warn(L *lua.LState) int {
	log.Warn().Str("source", "lua").Msg(L.CheckString(1))
	return 0
}

func (m *LogModule) errorLog(L *lua.LState) int {
	log.Error().Str("source", "lua").Msg(L.CheckString(1))
	return 0
}
