// Package deploy deploys contracts described by declarative modules and
// keeps a journal of the resulting addresses per chain.
package deploy

import "fmt"

// Future is a contract the module will deploy.
type Future struct {
	ID       string // "<module>#<contract>"
	Contract string // artifact name
	Args     []any  // constructor arguments
}

// Module is a named set of deployment futures.
type Module struct {
	ID      string
	Futures []Future
}

// Builder collects futures while a module is being described.
type Builder struct {
	module *Module
}

// Contract adds a deployment of the named contract with constructor args.
func (b *Builder) Contract(name string, args ...any) Future {
	f := Future{
		ID:       b.module.ID + "#" + name,
		Contract: name,
		Args:     args,
	}
	for _, existing := range b.module.Futures {
		if existing.ID == f.ID {
			panic(fmt.Sprintf("deploy: duplicate future %s", f.ID))
		}
	}
	b.module.Futures = append(b.module.Futures, f)
	return f
}

// BuildModule describes a module.
func BuildModule(id string, fn func(m *Builder)) *Module {
	m := &Module{ID: id}
	fn(&Builder{module: m})
	return m
}

// Future returns the future deploying the named contract.
func (m *Module) Future(contract string) (Future, bool) {
	for _, f := range m.Futures {
		if f.Contract == contract {
			return f, true
		}
	}
	return Future{}, false
}

// GuestbookModule deploys the Guestbook contract, which takes no constructor arguments.
var GuestbookModule = BuildModule("GuestbookModule", func(m *Builder) {
	m.Contract("Guestbook")
})

var modules = map[string]*Module{
	GuestbookModule.ID: GuestbookModule,
}

// Lookup returns a known module by ID.
func Lookup(id string) (*Module, bool) {
	m, ok := modules[id]
	return m, ok
}
