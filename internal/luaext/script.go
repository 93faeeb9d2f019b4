// Package luaext runs an optional operator-supplied Lua script once at
// startup, after probing but before the first client session. The
// script drives the same state store as the socket protocol, so it can
// set boot-time LED policy without a client.
package luaext

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/nasutils/ledd/internal/state"
)

// RunScript executes the script at path against the store.
func RunScript(path string, store *state.Store) error {
	L := lua.NewState()
	defer L.Close()

	L.PreloadModule("led", NewLEDModule(store).Loader)
	L.PreloadModule("log", NewLogModule().Loader)

	if err := L.DoFile(path); err != nil {
		return fmt.Errorf("startup script %s: %w", path, err)
	}
	return nil
}
