package scripting

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lua "github.com/yuin/gopher-lua"

	"github.com/notepid/guestbook/internal/guestbook"
)

var _ guestbook.Decorator = (*Filter)(nil)

// Filter is a guestbook.Decorator backed by a Lua script returning
//
//	return {
//	  filter = function(msg) return true end,   -- hide when false
//	  format = function(msg) return msg.text end -- replace the text
//	}
//
// Either hook may be omitted.
type Filter struct {
	mu sync.Mutex
	vm *VM
}

// LoadFilter compiles the script at path.
func LoadFilter(path string, account func() common.Address) (*Filter, error) {
	vm := newFilterVM(account)
	if err := vm.LoadScript(path); err != nil {
		vm.Close()
		return nil, err
	}
	return &Filter{vm: vm}, nil
}

// NewFilter compiles inline script source.
func NewFilter(src string, account func() common.Address) (*Filter, error) {
	vm := newFilterVM(account)
	if err := vm.LoadString(src); err != nil {
		vm.Close()
		return nil, err
	}
	return &Filter{vm: vm}, nil
}

func newFilterVM(account func() common.Address) *VM {
	vm := NewVM()
	NewGuestbookAPI(account).Register(vm)
	return vm
}

// Close releases the Lua state.
func (f *Filter) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vm.Close()
}

// Visible reports whether the filter hook keeps m. Only an explicit false
// or nil result hides a message; a script without the hook shows everything.
func (f *Filter) Visible(m guestbook.Message) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.vm.HasHook("filter") {
		return true, nil
	}
	ret, err := f.vm.CallHook("filter", messageTable(f.vm.L, m))
	if err != nil {
		return true, err
	}
	return lua.LVAsBool(ret), nil
}

// Format returns the text produced by the format hook. ok is false when the
// hook is absent or returned nil.
func (f *Filter) Format(m guestbook.Message) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.vm.HasHook("format") {
		return "", false, nil
	}
	ret, err := f.vm.CallHook("format", messageTable(f.vm.L, m))
	if err != nil {
		return "", false, err
	}
	switch v := ret.(type) {
	case *lua.LNilType:
		return "", false, nil
	case lua.LString:
		return SanitizeForDisplay(string(v)), true, nil
	default:
		return "", false, fmt.Errorf("format returned %s, want string", ret.Type())
	}
}
