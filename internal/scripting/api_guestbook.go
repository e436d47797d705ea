package scripting

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lua "github.com/yuin/gopher-lua"

	"github.com/notepid/guestbook/internal/guestbook"
)

// GuestbookAPI exposes helpers to display scripts as the "gb" module.
type GuestbookAPI struct {
	account func() common.Address
}

// NewGuestbookAPI creates the helper module. account reports the connected
// account, or the zero address.
func NewGuestbookAPI(account func() common.Address) *GuestbookAPI {
	return &GuestbookAPI{account: account}
}

// Register installs the helpers in the Lua state.
func (api *GuestbookAPI) Register(vm *VM) {
	vm.RegisterModule("gb", map[string]lua.LGFunction{
		"short":   api.luaShort,
		"time":    api.luaTime,
		"account": api.luaAccount,
		"is_mine": api.luaIsMine,
	})
}

// messageTable converts a message to the table hooks receive.
func messageTable(L *lua.LState, m guestbook.Message) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("sender", lua.LString(m.Sender.Hex()))
	t.RawSetString("text", lua.LString(m.Text))
	t.RawSetString("timestamp", lua.LNumber(m.Timestamp))
	return t
}

func (api *GuestbookAPI) luaShort(L *lua.LState) int {
	addr := L.CheckString(1)
	if !common.IsHexAddress(addr) {
		L.Push(lua.LString(addr))
		return 1
	}
	L.Push(lua.LString(guestbook.ShortAddress(common.HexToAddress(addr))))
	return 1
}

// gb.time(ms [, layout]) formats a millisecond timestamp with a Go layout.
func (api *GuestbookAPI) luaTime(L *lua.LState) int {
	ms := L.CheckNumber(1)
	layout := L.OptString(2, "2006-01-02 15:04")
	L.Push(lua.LString(time.UnixMilli(int64(ms)).Local().Format(layout)))
	return 1
}

func (api *GuestbookAPI) luaAccount(L *lua.LState) int {
	a := api.currentAccount()
	if a == (common.Address{}) {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(a.Hex()))
	return 1
}

func (api *GuestbookAPI) luaIsMine(L *lua.LState) int {
	addr := L.CheckString(1)
	a := api.currentAccount()
	L.Push(lua.LBool(a != (common.Address{}) && strings.EqualFold(addr, a.Hex())))
	return 1
}

func (api *GuestbookAPI) currentAccount() common.Address {
	if api.account == nil {
		return common.Address{}
	}
	return api.account()
}
