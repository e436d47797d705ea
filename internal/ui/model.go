// Package ui is the Bubble Tea client for the guestbook.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"github.com/notepid/guestbook/internal/guestbook"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusErr
)

// Model is the client's root Bubble Tea model.
type Model struct {
	ctx  context.Context
	ctrl *guestbook.Controller
	dec  guestbook.Decorator
	sub  *guestbook.Subscriber

	// release ends the event subscription; nil until subscribed.
	release func()
	// done is closed by Close to wake a pending listenCmd.
	done chan struct{}

	width  int
	height int

	feed    viewport.Model
	draft   textarea.Model
	spinner spinner.Model

	status     string
	statusKind statusKind
	quitting   bool
}

// New creates the client model. dec may be nil.
func New(ctx context.Context, ctrl *guestbook.Controller, dec guestbook.Decorator) *Model {
	ta := textarea.New()
	ta.Placeholder = "Share your message with the world..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(4)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		dec:     dec,
		sub:     ctrl.Broker().Subscribe(),
		done:    make(chan struct{}),
		feed:    viewport.New(0, 0),
		draft:   ta,
		spinner: sp,
		status:  "ctrl+o connect wallet",
	}
}

// Run runs the client until the user quits or ctx is cancelled. The model
// is closed before Run returns, whatever the outcome.
func Run(ctx context.Context, ctrl *guestbook.Controller, dec guestbook.Decorator, opts ...tea.ProgramOption) error {
	model := New(ctx, ctrl, dec)
	defer model.Close()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(model, opts...).Run()
	return err
}

// Init starts the initial load and the event subscription concurrently.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		reloadCmd(m.ctx, m.ctrl),
		subscribeCmd(m.ctx, m.ctrl),
		listenCmd(m.ctx, m.done, m.sub),
		textarea.Blink,
	)
}

// Close releases the event subscription and the broker registration.
// It is safe to call more than once.
func (m *Model) Close() {
	if m.release != nil {
		m.release()
		m.release = nil
	}
	if m.sub != nil {
		m.ctrl.Broker().Unsubscribe(m.sub.ID)
		m.sub = nil
		close(m.done)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case connectedMsg:
		m.onConnected(msg)
		m.refreshFeed()
		return m, nil

	case reloadedMsg:
		if msg.err != nil {
			// Fetch failures are logged by the controller; keep the old feed.
			return m, nil
		}
		m.refreshFeed()
		return m, nil

	case subscribedMsg:
		if msg.err != nil {
			m.setStatus(statusWarn, "live updates unavailable: "+msg.err.Error())
			return m, nil
		}
		if m.quitting {
			msg.release()
			return m, nil
		}
		m.release = msg.release
		return m, nil

	case submittedMsg:
		return m.onSubmitted(msg)

	case probedMsg:
		m.onProbed(msg)
		return m, nil

	case updateMsg:
		if msg.Kind == guestbook.UpdateSubscriptionLost {
			m.onSubscriptionLost(msg.Err)
		}
		m.refreshFeed()
		if m.sub == nil {
			return m, nil
		}
		return m, listenCmd(m.ctx, m.done, m.sub)

	case spinner.TickMsg:
		if !m.ctrl.State().Submitting() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.draft, cmd = m.draft.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		m.Close()
		return m, tea.Quit
	case "ctrl+o":
		m.setStatus(statusInfo, "connecting...")
		return m, connectCmd(m.ctx, m.ctrl)
	case "ctrl+r":
		return m, reloadCmd(m.ctx, m.ctrl)
	case "ctrl+p":
		m.setStatus(statusInfo, "probing contract...")
		return m, probeCmd(m.ctx, m.ctrl)
	case "ctrl+s":
		return m.submit()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		return m, cmd
	}

	if !m.ctrl.State().Session().Connected || m.ctrl.State().Submitting() {
		return m, nil
	}
	var cmd tea.Cmd
	m.draft, cmd = m.draft.Update(msg)
	m.ctrl.State().SetDraft(m.draft.Value())
	return m, cmd
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	if !m.ctrl.State().Session().Connected {
		m.setStatus(statusWarn, "connect a wallet first (ctrl+o)")
		return m, nil
	}
	if m.ctrl.State().Submitting() {
		return m, nil
	}
	m.ctrl.State().SetDraft(m.draft.Value())
	if strings.TrimSpace(m.draft.Value()) == "" {
		m.setStatus(statusWarn, "Message cannot be empty")
		return m, nil
	}

	m.draft.Blur()
	m.setStatus(statusInfo, "Publishing...")
	return m, tea.Batch(submitCmd(m.ctx, m.ctrl), m.spinner.Tick)
}

func (m *Model) onConnected(msg connectedMsg) {
	switch {
	case errors.Is(msg.err, guestbook.ErrProviderUnavailable):
		m.setStatus(statusErr, "No wallet available: set a signing key and rpc url")
	case msg.err != nil:
		m.setStatus(statusErr, "Error connecting to wallet: "+msg.err.Error())
	case msg.conn.NetworkWarning != nil:
		m.setStatus(statusWarn, "Please switch the node to Hardhat localhost (chain 31337): "+msg.conn.NetworkWarning.Error())
	case msg.conn.Account == (common.Address{}):
		m.setStatus(statusWarn, "wallet returned no accounts")
	default:
		m.setStatus(statusOK, "Connected: "+guestbook.ShortAddress(msg.conn.Account))
	}
}

func (m *Model) onSubmitted(msg submittedMsg) (tea.Model, tea.Cmd) {
	m.draft.Focus()
	if msg.err != nil {
		m.setStatus(statusErr, "Error posting message: "+msg.err.Error())
		return m, nil
	}
	m.draft.Reset()
	m.setStatus(statusOK, "Message published")
	m.refreshFeed()
	return m, nil
}

func (m *Model) onProbed(msg probedMsg) {
	r := msg.report
	switch {
	case msg.err != nil:
		m.setStatus(statusErr, "probe failed: "+msg.err.Error())
	case !r.HasCode:
		m.setStatus(statusErr, fmt.Sprintf("%s is not a contract at block %d. Check contract.address or the network",
			r.Address.Hex(), r.Block))
	case r.FetchErr != nil:
		m.setStatus(statusWarn, fmt.Sprintf("contract detected at %s but getMessages failed: %v", r.Address.Hex(), r.FetchErr))
	default:
		m.setStatus(statusOK, fmt.Sprintf("contract detected at %s (block %d, %d messages)",
			r.Address.Hex(), r.Block, r.Messages))
	}
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.status = text
}

func (m *Model) layout() {
	panelWidth := m.width - 2
	if panelWidth < 20 {
		panelWidth = 20
	}
	m.draft.SetWidth(panelWidth - 4)

	// title, composer panel, status, help
	used := 2 + m.draft.Height() + 4 + 2
	feedHeight := m.height - used
	if feedHeight < 3 {
		feedHeight = 3
	}
	m.feed.Width = panelWidth
	m.feed.Height = feedHeight
	m.refreshFeed()
}

func (m *Model) refreshFeed() {
	m.feed.SetContent(renderFeed(m.ctrl.State().Feed().Messages(), m.dec, m.feed.Width))
}

// onSubscriptionLost drops the dead subscription so a later connect can
// subscribe again.
func (m *Model) onSubscriptionLost(err error) {
	if m.release != nil {
		m.release()
		m.release = nil
	}
	text := "live updates unavailable"
	if err != nil {
		text += ": " + err.Error()
	}
	m.setStatus(statusWarn, text)
}

// renderFeed renders messages most recent first. msgs is not modified.
func renderFeed(msgs []guestbook.Message, dec guestbook.Decorator, width int) string {
	sorted := append([]guestbook.Message(nil), msgs...)
	guestbook.SortRecentFirst(sorted)
	rows := guestbook.Rows(sorted, dec)
	if len(rows) == 0 {
		return subtleStyle.Render(guestbook.EmptyFeedText) + "\n" + subtleStyle.Render("Be the first to share!")
	}

	textStyle := lipgloss.NewStyle()
	if width > 2 {
		textStyle = textStyle.Width(width - 2)
	}

	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(senderStyle.Render(r.From))
		b.WriteString("  ")
		b.WriteString(subtleStyle.Render(r.When))
		b.WriteString("\n")
		b.WriteString(textStyle.Render(r.Text))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	state := m.ctrl.State()

	var b strings.Builder
	b.WriteString(titleStyle.Render("On-Chain GuestBook"))
	b.WriteString(subtleStyle.Render(fmt.Sprintf("  Messages (%d)", state.Feed().Len())))
	b.WriteString("\n")
	b.WriteString(m.feed.View())
	b.WriteString("\n")

	sess := state.Session()
	var composer string
	switch {
	case !sess.Connected:
		composer = "Connect your wallet to start sharing messages\n" + helpKeyStyle.Render("ctrl+o") + " Connect Wallet"
	case state.Submitting():
		composer = okStyle.Render("● ") + "Connected: " + guestbook.ShortAddress(sess.Account) + "\n" +
			m.draft.View() + "\n" + m.spinner.View() + " Publishing..."
	default:
		composer = okStyle.Render("● ") + "Connected: " + guestbook.ShortAddress(sess.Account) + "\n" +
			m.draft.View() + "\n" + helpKeyStyle.Render("ctrl+s") + " Publish Message"
	}
	b.WriteString(panelStyle.Render(composer))
	b.WriteString("\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render("ctrl+o connect • ctrl+s publish • ctrl+r reload • ctrl+p debug contract • pgup/pgdown scroll • esc quit"))
	return b.String()
}

func (m *Model) renderStatus() string {
	switch m.statusKind {
	case statusOK:
		return okStyle.Render(m.status)
	case statusWarn:
		return warnStyle.Render(m.status)
	case statusErr:
		return errStyle.Render(m.status)
	default:
		return m.status
	}
}
