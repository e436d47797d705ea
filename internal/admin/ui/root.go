package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/notepid/guestbook/internal/admin/app"
)

type screen int

const (
	screenHome screen = iota
	screenSettings
	screenMessages
	screenDeployments
)

type rootModel struct {
	app *app.App

	width  int
	height int

	active screen

	homeList list.Model
	err      error

	settings    *settingsModel
	messages    *messagesModel
	deployments *deploymentsModel
}

type menuItem struct {
	title string
	desc  string
	to    screen
}

func (m menuItem) Title() string       { return m.title }
func (m menuItem) Description() string { return m.desc }
func (m menuItem) FilterValue() string { return m.title }

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func NewRootModel(a *app.App) tea.Model {
	items := []list.Item{
		menuItem{title: "Settings", desc: "Edit rpc url, contract address, feed and transaction settings", to: screenSettings},
		menuItem{title: "Archive", desc: "Browse archived guestbook messages per contract", to: screenMessages},
		menuItem{title: "Deployments", desc: "View recorded contract deployments", to: screenDeployments},
		menuItem{title: "Quit", desc: "Exit", to: -1},
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Guestbook Admin"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)

	return &rootModel{
		app:      a,
		active:   screenHome,
		homeList: l,
	}
}

func (m *rootModel) Init() tea.Cmd {
	return nil
}

func (m *rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.homeList.SetSize(msg.Width, msg.Height-2)
		if m.settings != nil {
			m.settings.SetSize(msg.Width, msg.Height)
		}
		if m.messages != nil {
			m.messages.SetSize(msg.Width, msg.Height)
		}
		if m.deployments != nil {
			m.deployments.SetSize(msg.Width, msg.Height)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}

	switch m.active {
	case screenHome:
		return m.updateHome(msg)
	case screenSettings:
		m.activate(screenSettings)
		cmd := m.settings.Update(msg)
		if m.settings.Done {
			m.active = screenHome
			m.settings = nil
		}
		return m, cmd
	case screenMessages:
		m.activate(screenMessages)
		cmd := m.messages.Update(msg)
		if m.messages.Done {
			m.active = screenHome
			m.messages = nil
		}
		return m, cmd
	case screenDeployments:
		m.activate(screenDeployments)
		cmd := m.deployments.Update(msg)
		if m.deployments.Done {
			m.active = screenHome
			m.deployments = nil
		}
		return m, cmd
	default:
		return m, nil
	}
}

func (m *rootModel) updateHome(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.homeList, cmd = m.homeList.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if it, ok := m.homeList.SelectedItem().(menuItem); ok {
				if it.to == -1 {
					return m, tea.Quit
				}
				m.activate(it.to)
				return m, nil
			}
		}
	}

	return m, cmd
}

func (m *rootModel) activate(s screen) {
	m.active = s

	switch s {
	case screenSettings:
		if m.settings == nil {
			m.settings = newSettingsModel(m.app)
			m.settings.SetSize(m.width, m.height)
		}
	case screenMessages:
		if m.messages == nil {
			m.messages = newMessagesModel(m.app)
			m.messages.SetSize(m.width, m.height)
		}
	case screenDeployments:
		if m.deployments == nil {
			m.deployments = newDeploymentsModel(m.app)
			m.deployments.SetSize(m.width, m.height)
		}
	}
}

func (m *rootModel) View() string {
	if m.err != nil {
		return errStyle.Render("Error: ") + m.err.Error()
	}

	switch m.active {
	case screenHome:
		return m.homeList.View()
	case screenSettings:
		if m.settings == nil {
			return "Loading settings..."
		}
		return m.settings.View()
	case screenMessages:
		if m.messages == nil {
			return "Loading archive..."
		}
		return m.messages.View()
	case screenDeployments:
		if m.deployments == nil {
			return "Loading deployments..."
		}
		return m.deployments.View()
	default:
		return titleStyle.Render("Unknown screen") + "\n" + fmt.Sprint(m.active)
	}
}
