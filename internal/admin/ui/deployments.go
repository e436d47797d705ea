package ui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/huh"

	"github.com/notepid/guestbook/internal/admin/app"
	"github.com/notepid/guestbook/internal/db"
)

type deploymentsModel struct {
	app *app.App

	width  int
	height int

	Done bool

	state deploymentsState
	list  list.Model
	err   error

	all      []*db.Deployment
	selected *db.Deployment
	detail   string

	form        *huh.Form
	chainFilter string
}

type deploymentsState int

const (
	deploymentsStateList deploymentsState = iota
	deploymentsStateDetail
	deploymentsStateFilter
)

type deploymentItem struct {
	d     *db.Deployment
	title string
	desc  string
}

func (i deploymentItem) Title() string       { return i.title }
func (i deploymentItem) Description() string { return i.desc }
func (i deploymentItem) FilterValue() string { return i.title }

func newDeploymentsModel(a *app.App) *deploymentsModel {
	m := &deploymentsModel{app: a, state: deploymentsStateList}
	m.reload()
	return m
}

func (m *deploymentsModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

func (m *deploymentsModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
				m.err = nil
				m.Done = true
			}
		}
		return nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			if m.state == deploymentsStateList {
				m.Done = true
				return nil
			}
		case "esc":
			m.back()
			return nil
		case "c":
			if m.state == deploymentsStateList {
				m.startFilter()
				return nil
			}
		}
	}

	if m.state == deploymentsStateFilter {
		return m.updateForm(msg)
	}
	if m.state == deploymentsStateDetail {
		return nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			it, ok := m.list.SelectedItem().(deploymentItem)
			if !ok {
				return cmd
			}
			m.selected = it.d
			m.state = deploymentsStateDetail
			m.loadDetail()
			return nil
		}
	}

	return cmd
}

func (m *deploymentsModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Deployments error: %v\n\nPress Enter/Esc to go back.", m.err)
	}

	switch m.state {
	case deploymentsStateList:
		m.list.Title = "Deployments"
		if m.chainFilter != "" {
			m.list.Title = fmt.Sprintf("Deployments (chain %s)", m.chainFilter)
		}
		return m.list.View() + "\n(enter details, c filter by chain, q back)"
	case deploymentsStateDetail:
		return m.detail + "\n\n(esc back)"
	case deploymentsStateFilter:
		return m.form.View() + "\n\n(esc back)"
	default:
		return "Deployments"
	}
}

func (m *deploymentsModel) reload() {
	all, err := m.app.DB.ListDeployments()
	if err != nil {
		m.err = err
		return
	}
	m.all = all
	m.rebuildList()
}

func (m *deploymentsModel) rebuildList() {
	items := make([]list.Item, 0, len(m.all))
	for _, d := range m.all {
		if m.chainFilter != "" && strconv.FormatInt(d.ChainID, 10) != m.chainFilter {
			continue
		}
		desc := fmt.Sprintf("chain %d • %s • %s", d.ChainID, d.Address, d.DeployedAt.Local().Format("2006-01-02 15:04"))
		items = append(items, deploymentItem{d: d, title: d.FutureID, desc: desc})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
}

func (m *deploymentsModel) loadDetail() {
	d := m.selected
	journal := m.app.JournalAddress(d)
	switch {
	case journal == "":
		journal = "(not in journal)"
	case !strings.EqualFold(journal, d.Address):
		journal += " (differs: redeployed since)"
	}

	m.detail = fmt.Sprintf("Future: %s\nContract: %s\nChain: %d\nAddress: %s\nJournal: %s\nTx: %s\nDeployed: %s",
		d.FutureID, d.ContractName, d.ChainID, d.Address, journal, d.TxHash,
		d.DeployedAt.Local().Format("2006-01-02 15:04"),
	)
}

func (m *deploymentsModel) startFilter() {
	m.state = deploymentsStateFilter
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Chain ID (empty for all)").Value(&m.chainFilter).Validate(optionalInt("chain id")),
		),
	)
}

func (m *deploymentsModel) updateForm(msg tea.Msg) tea.Cmd {
	updated, cmd := m.form.Update(msg)
	f, ok := updated.(*huh.Form)
	if !ok {
		m.err = fmt.Errorf("internal error: unexpected form model type")
		return nil
	}
	m.form = f
	if m.form.State == huh.StateCompleted {
		m.chainFilter = strings.TrimSpace(m.chainFilter)
		m.form = nil
		m.state = deploymentsStateList
		m.rebuildList()
		return nil
	}
	return cmd
}

func (m *deploymentsModel) back() {
	switch m.state {
	case deploymentsStateList:
		m.Done = true
	case deploymentsStateDetail:
		m.state = deploymentsStateList
	case deploymentsStateFilter:
		m.form = nil
		m.state = deploymentsStateList
		m.rebuildList()
	}
}

func optionalInt(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
			return fmt.Errorf("%s must be a number", field)
		}
		return nil
	}
}
