package guestbook

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

type fakeProvider struct {
	accounts []common.Address
	chainID  string
	err      error
}

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return p.accounts, p.err
}

func (p *fakeProvider) ChainID(ctx context.Context) (string, error) {
	return p.chainID, nil
}

func (p *fakeProvider) Signer(ctx context.Context) (*bind.TransactOpts, error) {
	if len(p.accounts) == 0 {
		return nil, errors.New("no accounts")
	}
	return &bind.TransactOpts{From: p.accounts[0]}, nil
}

// fakeContract mines every post into its message list once WaitMined is called.
type fakeContract struct {
	mu sync.Mutex

	addr     common.Address
	msgs     []Message
	block    uint64
	code     []byte
	fetchErr error
	postErr  error
	revert   bool
	gate     chan struct{} // when set, WaitMined blocks until closed

	posts   []string
	pending map[common.Hash]pendingPost
	sink    chan<- Event
	watches int
	subErr  chan error // when set, a value sent here ends the subscription
}

type pendingPost struct {
	from common.Address
	text string
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		addr:    common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		block:   1,
		code:    []byte{0x60, 0x80},
		pending: make(map[common.Hash]pendingPost),
	}
}

func (c *fakeContract) Address() common.Address { return c.addr }

func (c *fakeContract) Messages(ctx context.Context) ([]Message, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchErr != nil {
		return nil, 0, c.fetchErr
	}
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	return out, c.block, nil
}

func (c *fakeContract) Post(opts *bind.TransactOpts, text string) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.postErr != nil {
		return nil, c.postErr
	}
	c.posts = append(c.posts, text)
	tx := types.NewTx(&types.LegacyTx{Nonce: uint64(len(c.posts)), Data: []byte(text)})
	c.pending[tx.Hash()] = pendingPost{from: opts.From, text: text}
	return tx, nil
}

func (c *fakeContract) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.block++
	if c.revert {
		return &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: new(big.Int).SetUint64(c.block)}, nil
	}
	p := c.pending[tx.Hash()]
	c.msgs = append(c.msgs, NewMessage(p.from, p.text, big.NewInt(int64(1_700_000_000+c.block))))
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: new(big.Int).SetUint64(c.block)}, nil
}

func (c *fakeContract) WatchNewMessage(ctx context.Context, sink chan<- Event) (event.Subscription, error) {
	c.mu.Lock()
	c.sink = sink
	c.watches++
	c.mu.Unlock()
	failed := c.subErr
	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
			return nil
		case err := <-failed:
			return err
		}
	}), nil
}

func (c *fakeContract) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

func (c *fakeContract) Code(ctx context.Context, block uint64) ([]byte, error) {
	return c.code, nil
}

func newTestController(p Provider, c Contract, policy DedupPolicy) *Controller {
	opts := Options{ExpectedChainID: "0x7a69", WaitTimeout: time.Second, Dedup: policy}
	if p != nil {
		opts.Provider = p
	}
	if c != nil {
		opts.Contract = c
	}
	return NewController(opts)
}

func TestConnectWithoutProvider(t *testing.T) {
	ctl := newTestController(nil, nil, DedupKeyed)

	_, err := ctl.Connect(context.Background())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if ctl.State().Session().Connected {
		t.Fatalf("session should stay absent")
	}
}

func TestConnectSetsFirstAccount(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{alice, bob}, chainID: "0x7a69"}
	ctl := newTestController(p, nil, DedupKeyed)

	conn, err := ctl.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if conn.Account != alice {
		t.Fatalf("expected first account, got %s", conn.Account.Hex())
	}
	if conn.NetworkWarning != nil {
		t.Fatalf("unexpected network warning: %v", conn.NetworkWarning)
	}
	sess := ctl.State().Session()
	if !sess.Connected || sess.Account != alice || sess.ChainID != "0x7a69" {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestConnectWrongNetworkIsAdvisory(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{alice}, chainID: "0x1"}
	ctl := newTestController(p, nil, DedupKeyed)

	conn, err := ctl.Connect(context.Background())
	if err != nil {
		t.Fatalf("wrong network must not fail Connect: %v", err)
	}
	if !errors.Is(conn.NetworkWarning, ErrWrongNetwork) {
		t.Fatalf("expected ErrWrongNetwork warning, got %v", conn.NetworkWarning)
	}
	if !ctl.State().Session().Connected {
		t.Fatalf("session should be connected despite wrong network")
	}
}

func TestConnectEmptyAccountsLeavesSessionAbsent(t *testing.T) {
	p := &fakeProvider{chainID: "0x7a69"}
	ctl := newTestController(p, nil, DedupKeyed)

	if _, err := ctl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ctl.State().Session().Connected {
		t.Fatalf("session should stay absent without accounts")
	}
}

func TestFetchAllWithoutContractIsEmpty(t *testing.T) {
	ctl := newTestController(nil, nil, DedupKeyed)

	msgs, err := ctl.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %v", msgs)
	}
	rows := Rows(ctl.State().Snapshot().Messages, nil)
	if len(rows) != 0 {
		t.Fatalf("expected empty feed, got %d rows", len(rows))
	}
}

func TestFetchAllFailureKeepsPriorFeed(t *testing.T) {
	c := newFakeContract()
	c.msgs = []Message{msgAt(alice, "kept", 10)}
	ctl := newTestController(nil, c, DedupKeyed)

	if _, err := ctl.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	c.fetchErr = errors.New("rpc down")
	_, err := ctl.FetchAll(context.Background())
	if !errors.Is(err, ErrFetchFailure) {
		t.Fatalf("expected ErrFetchFailure, got %v", err)
	}
	msgs := ctl.State().Feed().Messages()
	if len(msgs) != 1 || msgs[0].Text != "kept" {
		t.Fatalf("expected prior feed to be kept, got %v", msgs)
	}
}

func TestSubmitEmptyDraftNeverWrites(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{alice}, chainID: "0x7a69"}
	c := newFakeContract()
	c.msgs = []Message{msgAt(bob, "existing", 10)}
	ctl := newTestController(p, c, DedupKeyed)
	if _, err := ctl.FetchAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, draft := range []string{"", "   ", "\n\t "} {
		ctl.State().SetDraft(draft)
		if err := ctl.Submit(context.Background()); !errors.Is(err, ErrEmptySubmission) {
			t.Fatalf("draft %q: expected ErrEmptySubmission, got %v", draft, err)
		}
	}
	if len(c.posts) != 0 {
		t.Fatalf("write path invoked for empty draft: %v", c.posts)
	}
	if ctl.State().Feed().Len() != 1 {
		t.Fatalf("feed changed on empty submission")
	}
	if ctl.State().Submitting() {
		t.Fatalf("submitting should be false")
	}
}

func TestSubmitSuccessClearsDraftAndReloads(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{alice}, chainID: "0x7a69"}
	c := newFakeContract()
	ctl := newTestController(p, c, DedupKeyed)

	text := "hello  é\U0001F600"
	ctl.State().SetDraft(text)
	if err := ctl.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if ctl.State().Draft() != "" {
		t.Fatalf("expected draft cleared, got %q", ctl.State().Draft())
	}
	if ctl.State().Submitting() {
		t.Fatalf("submitting should be reset")
	}
	msgs := ctl.State().Feed().Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected reload to include the new message, got %v", msgs)
	}
	if msgs[0].Text != text {
		t.Fatalf("text not preserved: got %q want %q", msgs[0].Text, text)
	}
	if msgs[0].Sender != alice {
		t.Fatalf("expected signer as sender, got %s", msgs[0].Sender.Hex())
	}
	if msgs[0].Timestamp%1000 != 0 || msgs[0].Timestamp == 0 {
		t.Fatalf("expected millisecond timestamp, got %d", msgs[0].Timestamp)
	}
}

func TestSubmitRevertKeepsDraft(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{alice}, chainID: "0x7a69"}
	c := newFakeContract()
	c.revert = true
	ctl := newTestController(p, c, DedupKeyed)

	ctl.State().SetDraft("will revert")
	err := ctl.Submit(context.Background())
	if !errors.Is(err, ErrTransactionFailure) {
		t.Fatalf("expected ErrTransactionFailure, got %v", err)
	}
	if ctl.State().Draft() != "will revert" {
		t.Fatalf("draft not preserved: %q", ctl.State().Draft())
	}
	if ctl.State().Submitting() {
		t.Fatalf("submitting should be reset after failure")
	}
	if ctl.State().Feed().Len() != 0 {
		t.Fatalf("feed should be unchanged")
	}
}

func TestSubmitRejectedKeepsDraft(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{alice}, chainID: "0x7a69"}
	c := newFakeContract()
	c.postErr = errors.New("user rejected transaction")
	ctl := newTestController(p, c, DedupKeyed)

	ctl.State().SetDraft("rejected")
	if err := ctl.Submit(context.Background()); !errors.Is(err, ErrTransactionFailure) {
		t.Fatalf("expected ErrTransactionFailure, got %v", err)
	}
	if ctl.State().Draft() != "rejected" || ctl.State().Submitting() {
		t.Fatalf("unexpected state after rejection: draft=%q submitting=%v",
			ctl.State().Draft(), ctl.State().Submitting())
	}
}

func TestSubmitTimeoutKeepsDraft(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{alice}, chainID: "0x7a69"}
	c := newFakeContract()
	c.gate = make(chan struct{})
	ctl := NewController(Options{Provider: p, Contract: c, WaitTimeout: 20 * time.Millisecond})

	ctl.State().SetDraft("slow")
	if err := ctl.Submit(context.Background()); !errors.Is(err, ErrTransactionFailure) {
		t.Fatalf("expected ErrTransactionFailure on timeout, got %v", err)
	}
	if ctl.State().Draft() != "slow" || ctl.State().Submitting() {
		t.Fatalf("unexpected state after timeout")
	}
}

func TestSubmitWhileSubmitting(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{alice}, chainID: "0x7a69"}
	c := newFakeContract()
	c.gate = make(chan struct{})
	ctl := newTestController(p, c, DedupKeyed)
	ctl.State().SetDraft("first")

	done := make(chan error, 1)
	go func() { done <- ctl.Submit(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for !ctl.State().Submitting() {
		select {
		case <-deadline:
			t.Fatalf("submission never started")
		case <-time.After(time.Millisecond):
		}
	}

	if err := ctl.Submit(context.Background()); !errors.Is(err, ErrSubmitting) {
		t.Fatalf("expected ErrSubmitting, got %v", err)
	}

	close(c.gate)
	if err := <-done; err != nil {
		t.Fatalf("first submission: %v", err)
	}
}

func TestHandleEventAppendsOne(t *testing.T) {
	ctl := newTestController(nil, newFakeContract(), DedupNone)
	sub := ctl.Broker().Subscribe()
	defer ctl.Broker().Unsubscribe(sub.ID)

	ev := Event{Message: msgAt(bob, "streamed", 42), Block: 2, ID: "0xdead:0"}
	ctl.HandleEvent(ev)
	if ctl.State().Feed().Len() != 1 {
		t.Fatalf("expected exactly one entry, got %d", ctl.State().Feed().Len())
	}

	select {
	case u := <-sub.Ch:
		if u.Kind != UpdateAppended || u.Message == nil || u.Message.Text != "streamed" {
			t.Fatalf("unexpected update %+v", u)
		}
	default:
		t.Fatalf("expected an append update")
	}

	// Duplicate delivery appends again under the original policy.
	ctl.HandleEvent(ev)
	if ctl.State().Feed().Len() != 2 {
		t.Fatalf("expected two entries after duplicate delivery, got %d", ctl.State().Feed().Len())
	}
}

func TestSubscribeDeliversEventsAndReleases(t *testing.T) {
	c := newFakeContract()
	ctl := newTestController(nil, c, DedupKeyed)
	updates := ctl.Broker().Subscribe()
	defer ctl.Broker().Unsubscribe(updates.ID)

	release, err := ctl.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if _, err := ctl.Subscribe(context.Background()); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}

	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	sink <- Event{Message: msgAt(alice, "live", 50), Block: 9, ID: "0x9:0"}

	select {
	case u := <-updates.Ch:
		if u.Kind != UpdateAppended {
			t.Fatalf("unexpected update %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event was not applied")
	}

	release()
	release()

	again, err := ctl.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("resubscribe after release: %v", err)
	}
	again()

	if c.watches != 2 {
		t.Fatalf("expected 2 registrations, got %d", c.watches)
	}
}

func TestSubscribeFailurePublishesLossAndAllowsResubscribe(t *testing.T) {
	c := newFakeContract()
	c.subErr = make(chan error, 1)
	ctl := newTestController(nil, c, DedupKeyed)
	updates := ctl.Broker().Subscribe()
	defer ctl.Broker().Unsubscribe(updates.ID)

	release, err := ctl.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	c.subErr <- errors.New("websocket closed")

	select {
	case u := <-updates.Ch:
		if u.Kind != UpdateSubscriptionLost || u.Err == nil || u.Err.Error() != "websocket closed" {
			t.Fatalf("unexpected update %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription loss was not published")
	}

	again, err := ctl.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("resubscribe after loss: %v", err)
	}

	// Releasing the dead subscription must not clear the live one.
	release()
	if _, err := ctl.Subscribe(context.Background()); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}
	again()
}

func TestProbeReportsMissingCode(t *testing.T) {
	c := newFakeContract()
	c.code = nil
	c.msgs = []Message{msgAt(alice, "x", 1)}
	ctl := newTestController(nil, c, DedupKeyed)

	report, err := ctl.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if report.HasCode {
		t.Fatalf("expected no code")
	}
	if report.Messages != 1 || report.Block != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if ctl.State().Feed().Len() != 0 {
		t.Fatalf("probe must not touch the feed")
	}
}

func TestProbeConfirmsContract(t *testing.T) {
	ctl := newTestController(nil, newFakeContract(), DedupKeyed)

	report, err := ctl.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !report.HasCode || report.CodeSize != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
}
