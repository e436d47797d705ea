// Package scripting runs user Lua scripts that filter and reformat the
// guestbook feed before it is displayed.
package scripting

import (
	"fmt"
	"log"

	lua "github.com/yuin/gopher-lua"
)

// VM wraps a Lua state for display scripts.
type VM struct {
	L     *lua.LState
	hooks *lua.LTable
}

// NewVM creates a new Lua VM with the standard libraries loaded.
func NewVM() *VM {
	L := lua.NewState(lua.Options{
		CallStackSize: 120,
		RegistrySize:  120 * 20,
	})

	return &VM{L: L}
}

// Close shuts down the Lua VM.
func (vm *VM) Close() {
	vm.L.Close()
}

// LoadScript loads and executes a Lua script file.
// The script is expected to return a table of hook functions.
func (vm *VM) LoadScript(path string) error {
	if err := vm.L.DoFile(path); err != nil {
		return fmt.Errorf("load script %s: %w", path, err)
	}
	vm.hooks = vm.findHooks()
	if vm.hooks == nil {
		return fmt.Errorf("load script %s: no hook table returned", path)
	}
	return nil
}

// LoadString is LoadScript for inline source.
func (vm *VM) LoadString(src string) error {
	if err := vm.L.DoString(src); err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	vm.hooks = vm.findHooks()
	if vm.hooks == nil {
		return fmt.Errorf("load script: no hook table returned")
	}
	return nil
}

// HasHook checks if the hook table has a specific function.
func (vm *VM) HasHook(name string) bool {
	if vm.hooks == nil {
		return false
	}
	_, ok := vm.hooks.RawGetString(name).(*lua.LFunction)
	return ok
}

// CallHook calls a hook with args and returns its single result.
// A missing hook returns LNil.
func (vm *VM) CallHook(name string, args ...lua.LValue) (lua.LValue, error) {
	if vm.hooks == nil {
		return lua.LNil, nil
	}

	fn := vm.hooks.RawGetString(name)
	if fn == lua.LNil {
		return lua.LNil, nil
	}
	if _, ok := fn.(*lua.LFunction); !ok {
		return lua.LNil, fmt.Errorf("hook %s is not a function", name)
	}

	if err := vm.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return lua.LNil, fmt.Errorf("call %s: %w", name, err)
	}
	ret := vm.L.Get(-1)
	vm.L.Pop(1)
	return ret, nil
}

// findHooks finds the hook table: either the return value of the script
// or a global named "display".
func (vm *VM) findHooks() *lua.LTable {
	top := vm.L.Get(-1)
	if tbl, ok := top.(*lua.LTable); ok {
		vm.L.Pop(1)
		return tbl
	}

	g := vm.L.GetGlobal("display")
	if tbl, ok := g.(*lua.LTable); ok {
		return tbl
	}

	return nil
}

// SetGlobal sets a global value in the Lua state.
func (vm *VM) SetGlobal(name string, value lua.LValue) {
	vm.L.SetGlobal(name, value)
}

// RegisterModule registers a table of functions as a Lua module.
func (vm *VM) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	mod := vm.L.NewTable()
	for fname, fn := range funcs {
		mod.RawSetString(fname, vm.L.NewFunction(fn))
	}
	vm.L.SetGlobal(name, mod)
}

// LogError logs a Lua error with context.
func LogError(context string, err error) {
	if err != nil {
		log.Printf("Lua error [%s]: %v", context, err)
	}
}
