package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"

	"github.com/notepid/guestbook/internal/admin/app"
)

type settingsModel struct {
	app *app.App

	width  int
	height int

	Done bool

	form *huh.Form
	err  error

	rpcURL      string
	address     string
	dedup       string
	waitTimeout string
	save        bool
}

func newSettingsModel(a *app.App) *settingsModel {
	cfg := a.Config
	m := &settingsModel{
		app:         a,
		rpcURL:      cfg.Chain.RPCURL,
		address:     cfg.Contract.Address,
		dedup:       cfg.Feed.Dedup,
		waitTimeout: cfg.Transactions.WaitTimeout.String(),
	}
	if m.dedup == "" {
		m.dedup = "keyed"
	}

	m.form = buildSettingsForm(m)
	return m
}

func buildSettingsForm(m *settingsModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("RPC URL").Value(&m.rpcURL).Validate(nonEmpty("rpc url")),
			huh.NewInput().Title("Contract address (empty: use deployment journal)").Value(&m.address).Validate(optionalAddress),
			huh.NewSelect[string]().Title("Feed dedup").Options(
				huh.NewOption("keyed (drop redelivered and reloaded events)", "keyed"),
				huh.NewOption("none (every event appends)", "none"),
			).Value(&m.dedup),
			huh.NewInput().Title("Transaction wait timeout").Value(&m.waitTimeout).Validate(validDuration("wait timeout")),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Save changes?").Value(&m.save),
		),
	)
}

func (m *settingsModel) SetSize(w, h int) {
	m.width, m.height = w, h
}

func (m *settingsModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
				m.Done = true
			}
		}
		return nil
	}

	if m.form == nil {
		m.form = buildSettingsForm(m)
	}

	var cmd tea.Cmd
	updated, cmd := m.form.Update(msg)
	f, ok := updated.(*huh.Form)
	if !ok {
		m.err = fmt.Errorf("internal error: unexpected form model type")
		return nil
	}
	m.form = f

	if m.form.State == huh.StateCompleted {
		if m.save {
			if err := m.apply(); err != nil {
				m.err = err
				return nil
			}
		}
		m.Done = true
		return nil
	}

	return cmd
}

// apply writes the edited values to the config file.
func (m *settingsModel) apply() error {
	timeout, err := time.ParseDuration(strings.TrimSpace(m.waitTimeout))
	if err != nil {
		return fmt.Errorf("wait timeout: %w", err)
	}

	cfg := *m.app.Config
	cfg.Chain.RPCURL = strings.TrimSpace(m.rpcURL)
	cfg.Contract.Address = strings.TrimSpace(m.address)
	cfg.Feed.Dedup = m.dedup
	cfg.Transactions.WaitTimeout = timeout
	return m.app.SaveConfig(&cfg)
}

func (m *settingsModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Settings error: %v\n\nPress Enter/Esc to go back.", m.err)
	}
	return m.form.View() + "\n\n(esc to go back)"
}

func nonEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func optionalAddress(s string) error {
	s = strings.TrimSpace(s)
	if s != "" && !common.IsHexAddress(s) {
		return fmt.Errorf("not a hex address")
	}
	return nil
}

func validDuration(field string) func(string) error {
	return func(s string) error {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%s must be a duration like 2m or 90s", field)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", field)
		}
		return nil
	}
}
