package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/ethereum/go-ethereum/common"

	"github.com/notepid/guestbook/internal/admin/app"
	"github.com/notepid/guestbook/internal/guestbook"
)

type messagesModel struct {
	app *app.App

	width  int
	height int

	Done bool

	state messagesState
	list  list.Model
	err   error

	selectedContract string
	offset           int
	limit            int

	selectedPos int
	msgBody     string
	msgHeader   string
}

type messagesState int

const (
	messagesStateContracts messagesState = iota
	messagesStateList
	messagesStateDetail
)

type msgItem struct {
	contract string
	pos      int
	title    string
	desc     string
}

func (i msgItem) Title() string       { return i.title }
func (i msgItem) Description() string { return i.desc }
func (i msgItem) FilterValue() string { return i.title }

func newMessagesModel(a *app.App) *messagesModel {
	m := &messagesModel{app: a, state: messagesStateContracts, limit: 50}
	m.reloadContracts()
	return m
}

func (m *messagesModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

func (m *messagesModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
				m.err = nil
				m.state = messagesStateContracts
				m.reloadContracts()
			}
		}
		return nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			if m.state == messagesStateContracts {
				m.Done = true
				return nil
			}
		case "esc":
			m.back()
			return nil
		case "n":
			if m.state == messagesStateList {
				if m.offset+m.limit < m.app.Archive.CountMessages(m.selectedContract) {
					m.offset += m.limit
				}
				m.reloadMessages()
				return nil
			}
		case "p":
			if m.state == messagesStateList {
				m.offset -= m.limit
				if m.offset < 0 {
					m.offset = 0
				}
				m.reloadMessages()
				return nil
			}
		}
	}

	if m.state == messagesStateDetail {
		return nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			it, ok := m.list.SelectedItem().(msgItem)
			if !ok {
				return cmd
			}
			switch m.state {
			case messagesStateContracts:
				m.selectedContract = it.contract
				m.offset = 0
				m.state = messagesStateList
				m.reloadMessages()
				return nil
			case messagesStateList:
				m.selectedPos = it.pos
				m.state = messagesStateDetail
				m.loadMessageDetail()
				return nil
			}
		}
	}

	return cmd
}

func (m *messagesModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Archive error: %v\n\nPress Enter/Esc to go back.", m.err)
	}

	switch m.state {
	case messagesStateContracts:
		m.list.Title = "Archived Contracts"
		return m.list.View() + "\n(q to quit, enter to select)"
	case messagesStateList:
		m.list.Title = fmt.Sprintf("Messages (%s, from %d)", shortHex(m.selectedContract), m.offset+1)
		return m.list.View() + "\n(n next page, p prev page, esc back)"
	case messagesStateDetail:
		return m.msgHeader + "\n\n" + m.msgBody + "\n\n(esc back)"
	default:
		return "Archive"
	}
}

func (m *messagesModel) reloadContracts() {
	contracts, err := m.app.Archive.ListContracts()
	if err != nil {
		m.err = err
		return
	}

	items := make([]list.Item, 0, len(contracts))
	for _, c := range contracts {
		desc := fmt.Sprintf("%d messages • last block %d", c.TotalMsgs, c.LastBlock)
		items = append(items, msgItem{contract: c.Address, title: c.Address, desc: desc})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
}

func (m *messagesModel) reloadMessages() {
	msgs, err := m.app.Archive.ListMessages(m.selectedContract, m.offset, m.limit)
	if err != nil {
		m.err = err
		return
	}

	items := make([]list.Item, 0, len(msgs))
	for _, msg := range msgs {
		desc := fmt.Sprintf("from %s • %s", shortHex(msg.Sender), msg.Time().Local().Format("2006-01-02 15:04"))
		items = append(items, msgItem{contract: msg.Contract, pos: msg.Position, title: firstLine(msg.Body), desc: desc})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
}

func (m *messagesModel) loadMessageDetail() {
	msg, err := m.app.Archive.GetMessage(m.selectedContract, m.selectedPos)
	if err != nil {
		m.err = err
		return
	}

	m.msgHeader = fmt.Sprintf("Contract: %s\nPosition: %d\nFrom: %s\nDate: %s\nBlock: %d\nKey: %s\nArchived: %s",
		msg.Contract, msg.Position, msg.Sender,
		msg.Time().Local().Format("2006-01-02 15:04:05"), msg.Block, msg.ContentKey,
		msg.ArchivedAt.Local().Format("2006-01-02 15:04"),
	)
	m.msgBody = msg.Body
}

func (m *messagesModel) back() {
	switch m.state {
	case messagesStateContracts:
		m.Done = true
	case messagesStateList:
		m.state = messagesStateContracts
		m.reloadContracts()
	case messagesStateDetail:
		m.state = messagesStateList
		m.reloadMessages()
	}
}

func shortHex(addr string) string {
	if !common.IsHexAddress(addr) {
		return addr
	}
	return guestbook.ShortAddress(common.HexToAddress(addr))
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
	}
	if s == "" {
		return "(empty)"
	}
	return s
}
