// Package contract binds the Guestbook contract ABI to a go-ethereum backend.
package contract

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/notepid/guestbook/internal/guestbook"
)

//go:embed guestbook.abi.json
var abiJSON string

var guestbookABI = mustParseABI(abiJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse guestbook abi: %v", err))
	}
	return parsed
}

// ABI returns the parsed Guestbook interface descriptor.
func ABI() abi.ABI {
	return guestbookABI
}

// Backend is what the binding needs from a node connection.
// *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ guestbook.Contract = (*Guestbook)(nil)

// Guestbook is a binding to a deployed Guestbook contract.
type Guestbook struct {
	address common.Address
	backend Backend
	bound   *bind.BoundContract
}

// New binds the contract at address.
func New(address common.Address, backend Backend) *Guestbook {
	return &Guestbook{
		address: address,
		backend: backend,
		bound:   bind.NewBoundContract(address, guestbookABI, backend, backend, backend),
	}
}

// entry mirrors the contract's Message struct.
type entry struct {
	Sender    common.Address
	Text      string
	Timestamp *big.Int
}

// NewMessageLog is the decoded NewMessage event.
type NewMessageLog struct {
	Sender    common.Address
	Timestamp *big.Int
	Text      string
}

// Address returns the contract address.
func (g *Guestbook) Address() common.Address {
	return g.address
}

// Messages calls getMessages at the current head and returns the entries
// together with the block height they were read at.
func (g *Guestbook) Messages(ctx context.Context) ([]guestbook.Message, uint64, error) {
	head, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("block number: %w", err)
	}

	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, BlockNumber: new(big.Int).SetUint64(head)}
	if err := g.bound.Call(opts, &out, "getMessages"); err != nil {
		return nil, 0, fmt.Errorf("getMessages at block %d: %w", head, err)
	}
	if len(out) == 0 {
		return nil, 0, fmt.Errorf("getMessages at block %d: empty result", head)
	}

	raw := *abi.ConvertType(out[0], new([]entry)).(*[]entry)
	msgs := make([]guestbook.Message, 0, len(raw))
	for _, e := range raw {
		msgs = append(msgs, guestbook.NewMessage(e.Sender, e.Text, e.Timestamp))
	}
	return msgs, head, nil
}

// Post sends a postMessage transaction.
func (g *Guestbook) Post(opts *bind.TransactOpts, text string) (*types.Transaction, error) {
	return g.bound.Transact(opts, "postMessage", text)
}

// WaitMined blocks until tx is mined or ctx is done.
func (g *Guestbook) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, g.backend, tx)
}

// BlockNumber returns the current head block height.
func (g *Guestbook) BlockNumber(ctx context.Context) (uint64, error) {
	return g.backend.BlockNumber(ctx)
}

// Code returns the bytecode stored at the contract address at block.
func (g *Guestbook) Code(ctx context.Context, block uint64) ([]byte, error) {
	return g.backend.CodeAt(ctx, g.address, new(big.Int).SetUint64(block))
}

// ParseNewMessage decodes a NewMessage log.
func (g *Guestbook) ParseNewMessage(l types.Log) (guestbook.Event, error) {
	var out NewMessageLog
	if err := g.bound.UnpackLog(&out, "NewMessage", l); err != nil {
		return guestbook.Event{}, fmt.Errorf("unpack NewMessage: %w", err)
	}

	return guestbook.Event{
		Message: guestbook.NewMessage(out.Sender, out.Text, out.Timestamp),
		Block:   l.BlockNumber,
		ID:      guestbook.EventID(l.TxHash, l.Index),
		Removed: l.Removed,
	}, nil
}

// WatchNewMessage streams decoded NewMessage events into sink until the
// returned subscription is unsubscribed or fails.
func (g *Guestbook) WatchNewMessage(ctx context.Context, sink chan<- guestbook.Event) (event.Subscription, error) {
	logs, sub, err := g.bound.WatchLogs(&bind.WatchOpts{Context: ctx}, "NewMessage")
	if err != nil {
		return nil, err
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				ev, err := g.ParseNewMessage(l)
				if err != nil {
					log.Printf("contract: skipping log %s: %v", l.TxHash.Hex(), err)
					continue
				}
				select {
				case sink <- ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}
