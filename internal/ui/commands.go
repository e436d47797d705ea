package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/notepid/guestbook/internal/guestbook"
)

type connectedMsg struct {
	conn guestbook.Connection
	err  error
}

type reloadedMsg struct {
	count int
	err   error
}

type submittedMsg struct {
	err error
}

type subscribedMsg struct {
	release func()
	err     error
}

type probedMsg struct {
	report guestbook.ProbeReport
	err    error
}

type updateMsg guestbook.Update

func connectCmd(ctx context.Context, c *guestbook.Controller) tea.Cmd {
	return func() tea.Msg {
		conn, err := c.Connect(ctx)
		return connectedMsg{conn: conn, err: err}
	}
}

func reloadCmd(ctx context.Context, c *guestbook.Controller) tea.Cmd {
	return func() tea.Msg {
		msgs, err := c.FetchAll(ctx)
		return reloadedMsg{count: len(msgs), err: err}
	}
}

func submitCmd(ctx context.Context, c *guestbook.Controller) tea.Cmd {
	return func() tea.Msg {
		return submittedMsg{err: c.Submit(ctx)}
	}
}

func subscribeCmd(ctx context.Context, c *guestbook.Controller) tea.Cmd {
	return func() tea.Msg {
		release, err := c.Subscribe(ctx)
		return subscribedMsg{release: release, err: err}
	}
}

func probeCmd(ctx context.Context, c *guestbook.Controller) tea.Cmd {
	return func() tea.Msg {
		report, err := c.Probe(ctx)
		return probedMsg{report: report, err: err}
	}
}

// listenCmd waits for the next state update. It returns nil once ctx is
// cancelled or done is closed.
func listenCmd(ctx context.Context, done <-chan struct{}, sub *guestbook.Subscriber) tea.Cmd {
	return func() tea.Msg {
		select {
		case u, ok := <-sub.Ch:
			if !ok {
				return nil
			}
			return updateMsg(u)
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		}
	}
}
