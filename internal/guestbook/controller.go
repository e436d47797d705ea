package guestbook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// Provider is a wallet: it holds the user's account and signs transactions.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (string, error)
	Signer(ctx context.Context) (*bind.TransactOpts, error)
}

// Contract is the Guestbook contract call surface.
type Contract interface {
	Address() common.Address

	// Messages reads the full message list and the block height it was read at.
	Messages(ctx context.Context) ([]Message, uint64, error)

	Post(opts *bind.TransactOpts, text string) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	WatchNewMessage(ctx context.Context, sink chan<- Event) (event.Subscription, error)

	BlockNumber(ctx context.Context) (uint64, error)
	Code(ctx context.Context, block uint64) ([]byte, error)
}

// Archiver stores reloaded message lists.
type Archiver interface {
	Archive(ctx context.Context, msgs []Message, block uint64) error
}

// Options configures a Controller. Provider and Contract may be nil when no
// wallet is available.
type Options struct {
	Provider        Provider
	Contract        Contract
	Archive         Archiver
	Broker          *Broker
	ExpectedChainID string
	WaitTimeout     time.Duration
	Dedup           DedupPolicy
}

// Connection is the result of a wallet connection request.
type Connection struct {
	Account common.Address
	ChainID string

	// NetworkWarning wraps ErrWrongNetwork when the provider is on an
	// unexpected chain. The connection is still established.
	NetworkWarning error
}

// ProbeReport describes what the diagnostic probe found at the contract address.
type ProbeReport struct {
	Address  common.Address
	Messages int
	FetchErr error
	Block    uint64
	CodeSize int
	HasCode  bool
}

// Controller owns the application state and runs every guestbook operation.
type Controller struct {
	provider Provider
	contract Contract
	archive  Archiver
	broker   *Broker

	expectedChainID string
	waitTimeout     time.Duration

	state *State

	mu         sync.Mutex
	subscribed bool
	subGen     uint64
}

// NewController creates a controller with empty state.
func NewController(opts Options) *Controller {
	broker := opts.Broker
	if broker == nil {
		broker = NewBroker()
	}
	return &Controller{
		provider:        opts.Provider,
		contract:        opts.Contract,
		archive:         opts.Archive,
		broker:          broker,
		expectedChainID: strings.ToLower(opts.ExpectedChainID),
		waitTimeout:     opts.WaitTimeout,
		state:           NewState(opts.Dedup),
	}
}

// State returns the controller's application state.
func (c *Controller) State() *State {
	return c.state
}

// Broker returns the update broker.
func (c *Controller) Broker() *Broker {
	return c.broker
}

// Connect requests account access and checks the provider's network.
func (c *Controller) Connect(ctx context.Context) (Connection, error) {
	if c.provider == nil {
		return Connection{}, ErrProviderUnavailable
	}

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		log.Printf("guestbook: error connecting to wallet: %v", err)
		return Connection{}, fmt.Errorf("request accounts: %w", err)
	}

	var conn Connection
	if len(accounts) > 0 {
		conn.Account = accounts[0]
		c.state.setSession(Session{Account: accounts[0], Connected: true})
		c.broker.Publish(Update{Kind: UpdateSession})
	}

	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		log.Printf("guestbook: error reading chain id: %v", err)
		return conn, fmt.Errorf("chain id: %w", err)
	}
	conn.ChainID = chainID
	log.Printf("guestbook: connected to chainId %s", chainID)

	if conn.Account != (common.Address{}) {
		c.state.setSession(Session{Account: conn.Account, Connected: true, ChainID: chainID})
	}

	if c.expectedChainID != "" && !strings.EqualFold(chainID, c.expectedChainID) {
		conn.NetworkWarning = fmt.Errorf("%w: provider is on chain %s, expected %s",
			ErrWrongNetwork, chainID, c.expectedChainID)
		log.Printf("guestbook: %v", conn.NetworkWarning)
	}

	return conn, nil
}

// FetchAll reloads the full message list and replaces the feed with it.
// On failure the previous feed is kept.
func (c *Controller) FetchAll(ctx context.Context) ([]Message, error) {
	if c.contract == nil {
		return []Message{}, nil
	}

	msgs, block, err := c.contract.Messages(ctx)
	if err != nil {
		log.Printf("guestbook: error fetching messages: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}

	if !c.state.feed.Replace(msgs, block) {
		log.Printf("guestbook: ignoring reload at block %d, feed already at block %d",
			block, c.state.feed.SyncedBlock())
		return msgs, nil
	}
	c.broker.Publish(Update{Kind: UpdateReloaded})

	if c.archive != nil {
		if err := c.archive.Archive(ctx, msgs, block); err != nil {
			log.Printf("guestbook: archive %d messages at block %d: %v", len(msgs), block, err)
		}
	}

	return msgs, nil
}

// Submit posts the current draft and waits for the transaction to be mined.
// On success the draft is cleared and the feed reloaded; on failure the
// draft is kept.
func (c *Controller) Submit(ctx context.Context) error {
	text := c.state.Draft()
	if strings.TrimSpace(text) == "" {
		return ErrEmptySubmission
	}
	if c.provider == nil || c.contract == nil {
		return ErrProviderUnavailable
	}
	if !c.state.beginSubmit() {
		return ErrSubmitting
	}
	c.broker.Publish(Update{Kind: UpdateSubmitting})

	err := c.transact(ctx, text)
	c.state.endSubmit(err == nil)
	c.broker.Publish(Update{Kind: UpdateSubmitting})

	if err != nil {
		log.Printf("guestbook: error posting message: %v", err)
		return fmt.Errorf("%w: %w", ErrTransactionFailure, err)
	}

	// The reload logs its own failure; the submission itself succeeded.
	_, _ = c.FetchAll(ctx)
	return nil
}

func (c *Controller) transact(ctx context.Context, text string) error {
	signer, err := c.provider.Signer(ctx)
	if err != nil {
		return fmt.Errorf("get signer: %w", err)
	}
	signer.Context = ctx

	tx, err := c.contract.Post(signer, text)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	log.Printf("guestbook: transaction sent: %s", tx.Hash().Hex())

	waitCtx := ctx
	if c.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.waitTimeout)
		defer cancel()
	}

	receipt, err := c.contract.WaitMined(waitCtx, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("wait for %s: timed out after %v", tx.Hash().Hex(), c.waitTimeout)
		}
		return fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted in block %v", tx.Hash().Hex(), receipt.BlockNumber)
	}

	log.Printf("guestbook: transaction confirmed: %s", tx.Hash().Hex())
	return nil
}

// Subscribe starts listening for NewMessage events. The returned release
// function stops the subscription; it is safe to call more than once.
func (c *Controller) Subscribe(ctx context.Context) (func(), error) {
	if c.contract == nil {
		return nil, ErrProviderUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscribed {
		return nil, ErrAlreadySubscribed
	}

	sink := make(chan Event, 64)
	sub, err := c.contract.WatchNewMessage(ctx, sink)
	if err != nil {
		return nil, fmt.Errorf("watch new messages: %w", err)
	}
	c.subscribed = true
	c.subGen++
	gen := c.subGen

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case ev := <-sink:
				c.HandleEvent(ev)
			case err, ok := <-sub.Err():
				if ok && err != nil {
					log.Printf("guestbook: new message subscription ended: %v", err)
					c.endSubscription(gen)
					c.broker.Publish(Update{Kind: UpdateSubscriptionLost, Err: err})
				}
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			sub.Unsubscribe()
			close(done)
			<-stopped

			c.endSubscription(gen)
		})
	}
	return release, nil
}

// endSubscription clears the subscribed flag if gen is still the current
// subscription.
func (c *Controller) endSubscription(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subGen == gen {
		c.subscribed = false
	}
}

// HandleEvent applies one NewMessage notification to the feed.
func (c *Controller) HandleEvent(ev Event) {
	if !c.state.feed.Apply(ev) {
		return
	}
	if ev.Removed {
		log.Printf("guestbook: NewMessage %s removed by reorg", ev.ID)
		c.broker.Publish(Update{Kind: UpdateReloaded})
		return
	}
	log.Printf("guestbook: NewMessage event received: %s", ev.Message)
	msg := ev.Message
	c.broker.Publish(Update{Kind: UpdateAppended, Message: &msg})
}

// Probe reports whether the configured address hosts a contract on the
// connected network. It does not touch the feed.
func (c *Controller) Probe(ctx context.Context) (ProbeReport, error) {
	if c.contract == nil {
		return ProbeReport{}, ErrProviderUnavailable
	}

	report := ProbeReport{Address: c.contract.Address()}

	msgs, _, err := c.contract.Messages(ctx)
	if err != nil {
		report.FetchErr = err
		log.Printf("probe: getMessages failed: %v", err)
	} else {
		report.Messages = len(msgs)
		log.Printf("probe: %d messages from contract", len(msgs))
	}

	block, err := c.contract.BlockNumber(ctx)
	if err != nil {
		return report, fmt.Errorf("block number: %w", err)
	}
	report.Block = block
	log.Printf("probe: current block %d", block)

	code, err := c.contract.Code(ctx, block)
	if err != nil {
		return report, fmt.Errorf("code at %s: %w", report.Address.Hex(), err)
	}
	report.CodeSize = len(code)
	report.HasCode = len(code) > 0

	if report.HasCode {
		log.Printf("probe: contract detected at %s (%d bytes)", report.Address.Hex(), report.CodeSize)
	} else {
		log.Printf("probe: %s is not a contract on this network; check contract.address or the network", report.Address.Hex())
	}
	return report, nil
}
