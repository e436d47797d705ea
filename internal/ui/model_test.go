package ui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	"github.com/notepid/guestbook/internal/guestbook"
)

var alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

func newTestModel(t *testing.T) (*Model, *guestbook.Controller) {
	t.Helper()
	ctrl := guestbook.NewController(guestbook.Options{ExpectedChainID: "0x7a69"})
	m := New(context.Background(), ctrl, nil)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, ctrl
}

func TestEmptyFeedView(t *testing.T) {
	m, _ := newTestModel(t)

	if !strings.Contains(m.View(), guestbook.EmptyFeedText) {
		t.Fatalf("expected empty state, got:\n%s", m.View())
	}
}

func TestConnectWithoutProviderShowsAlert(t *testing.T) {
	m, ctrl := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	if cmd == nil {
		t.Fatalf("expected a connect command")
	}
	m.Update(cmd())

	if !strings.Contains(m.status, "No wallet available") || m.statusKind != statusErr {
		t.Fatalf("unexpected status %q", m.status)
	}
	if ctrl.State().Session().Connected {
		t.Fatalf("session should stay absent")
	}
}

func TestSubmitRequiresConnection(t *testing.T) {
	m, ctrl := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd != nil {
		t.Fatalf("expected no command when disconnected")
	}
	if m.statusKind != statusWarn {
		t.Fatalf("expected a warning, got %q", m.status)
	}
	if ctrl.State().Submitting() {
		t.Fatalf("should not be submitting")
	}
}

func TestSubscribeFailureIsAWarning(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(subscribeCmd(context.Background(), m.ctrl)())
	if m.statusKind != statusWarn || !strings.Contains(m.status, "live updates unavailable") {
		t.Fatalf("unexpected status %q", m.status)
	}
	if m.release != nil {
		t.Fatalf("release should not be set after a failed subscribe")
	}
}

func TestEventUpdatesFeed(t *testing.T) {
	m, ctrl := newTestModel(t)

	ctrl.HandleEvent(guestbook.Event{
		Message: guestbook.Message{Sender: alice, Text: "hello from alice", Timestamp: 1_700_000_000_000},
		Block:   3,
		ID:      "0x01:0",
	})

	next := listenCmd(m.ctx, m.done, m.sub)()
	if _, ok := next.(updateMsg); !ok {
		t.Fatalf("expected an update, got %T", next)
	}
	_, cmd := m.Update(next)
	if cmd == nil {
		t.Fatalf("model should keep listening")
	}

	view := m.View()
	if !strings.Contains(view, "hello from alice") || !strings.Contains(view, "0x7099...79C8") {
		t.Fatalf("event not rendered:\n%s", view)
	}
	if !strings.Contains(view, "Messages (1)") {
		t.Fatalf("expected message count in header:\n%s", view)
	}
}

func TestRenderFeedMostRecentFirst(t *testing.T) {
	out := renderFeed([]guestbook.Message{
		{Sender: alice, Text: "first", Timestamp: 1_000},
		{Sender: alice, Text: "second", Timestamp: 2_000},
	}, nil, 80)

	if strings.Index(out, "second") > strings.Index(out, "first") {
		t.Fatalf("expected most recent first:\n%s", out)
	}
}

func TestRenderFeedDoesNotReorderInput(t *testing.T) {
	msgs := []guestbook.Message{
		{Sender: alice, Text: "first", Timestamp: 1_000},
		{Sender: alice, Text: "second", Timestamp: 2_000},
	}
	renderFeed(msgs, nil, 80)

	if msgs[0].Text != "first" {
		t.Fatalf("input slice was reordered: %v", msgs)
	}
}

func TestListenReturnsAfterClose(t *testing.T) {
	m, _ := newTestModel(t)
	listen := listenCmd(m.ctx, m.done, m.sub)

	got := make(chan tea.Msg, 1)
	go func() { got <- listen() }()

	m.Close()
	select {
	case msg := <-got:
		if msg != nil {
			t.Fatalf("expected nil after close, got %T", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("listen did not return after Close")
	}
}

func TestListenReturnsOnCancel(t *testing.T) {
	m, _ := newTestModel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if msg := listenCmd(ctx, m.done, m.sub)(); msg != nil {
		t.Fatalf("expected nil after cancel, got %T", msg)
	}
}

func TestSubscriptionLostShowsWarning(t *testing.T) {
	m, _ := newTestModel(t)

	released := 0
	m.release = func() { released++ }
	_, cmd := m.Update(updateMsg(guestbook.Update{
		Kind: guestbook.UpdateSubscriptionLost,
		Err:  errors.New("websocket closed"),
	}))

	if m.statusKind != statusWarn || m.status != "live updates unavailable: websocket closed" {
		t.Fatalf("unexpected status %q", m.status)
	}
	if released != 1 || m.release != nil {
		t.Fatalf("dead subscription not released: calls=%d", released)
	}
	if cmd == nil {
		t.Fatalf("model should keep listening")
	}
}

func TestRunClosesModelWhenCancelled(t *testing.T) {
	ctrl := guestbook.NewController(guestbook.Options{ExpectedChainID: "0x7a69"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, ctrl, nil, tea.WithInput(nil), tea.WithOutput(io.Discard))
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		t.Fatalf("Run: %v", err)
	}
	if ctrl.Broker().Count() != 0 {
		t.Fatalf("model not closed: %d broker subscribers", ctrl.Broker().Count())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m, ctrl := newTestModel(t)

	released := 0
	m.release = func() { released++ }
	m.Close()
	m.Close()

	if released != 1 {
		t.Fatalf("release called %d times", released)
	}
	if ctrl.Broker().Count() != 0 {
		t.Fatalf("broker subscriber leaked")
	}
}

func TestQuitReleasesSubscription(t *testing.T) {
	m, _ := newTestModel(t)

	released := false
	m.release = func() { released = true }
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if !released {
		t.Fatalf("subscription not released on quit")
	}

	// A subscription that completes after quitting is released at once.
	late := false
	m.Update(subscribedMsg{release: func() { late = true }})
	if !late {
		t.Fatalf("late subscription not released")
	}
}
