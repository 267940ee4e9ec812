// Package console is the interactive terminal front end of the record sync
// controller. It renders controller state and forwards operator intents; all
// record logic stays in the controller.
package console

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/controller"
	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

// stateMsg carries a controller snapshot into the update loop.
type stateMsg controller.State

type field int

const (
	fieldDomain field = iota
	fieldIP
)

type model struct {
	ctx  context.Context
	ctrl *controller.RecordSyncController

	state   controller.State
	cursor  int
	focus   field
	domain  textinput.Model
	ip      textinput.Model
	spinner spinner.Model

	width int
}

func newModel(ctx context.Context, c *controller.RecordSyncController) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleSpinner

	return model{
		ctx:     ctx,
		ctrl:    c,
		state:   c.State(),
		domain:  newInput("app.home"),
		ip:      newInput("10.0.0.10"),
		spinner: s,
	}
}

func newInput(placeholder string) textinput.Model {
	in := textinput.New()
	in.Prompt = stylePrompt.Render("> ")
	in.Placeholder = placeholder
	in.CharLimit = 253
	in.Cursor.SetMode(cursor.CursorStatic)
	return in
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.do(func() controller.State {
		return m.ctrl.Load(m.ctx)
	}))
}

// do runs a controller operation off the update loop. Controller callbacks
// send into the program, which must not happen from inside Update.
func (m model) do(op func() controller.State) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(op())
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 8 {
			m.domain.Width = msg.Width - 8
			m.ip.Width = msg.Width - 8
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case stateMsg:
		return m.applyState(controller.State(msg)), nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.state.PendingRemoval != "":
			return m.updateConfirm(msg)
		case m.state.FormOpen:
			return m.updateForm(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

// applyState adopts s unless a newer snapshot was already applied.
func (m model) applyState(s controller.State) model {
	if s.Revision < m.state.Revision {
		return m
	}
	opened := s.FormOpen && !m.state.FormOpen
	m.state = s

	if opened {
		m.domain.SetValue(s.Draft.Domain)
		m.ip.SetValue(s.Draft.IP)
		m.setFocus(fieldDomain)
	}
	if !s.FormOpen {
		m.domain.Blur()
		m.ip.Blur()
		m.domain.Reset()
		m.ip.Reset()
	}

	if m.cursor >= len(s.Records) {
		m.cursor = len(s.Records) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

func (m *model) setFocus(f field) {
	m.focus = f
	if f == fieldDomain {
		m.domain.Focus()
		m.ip.Blur()
		return
	}
	m.ip.Focus()
	m.domain.Blur()
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "r":
		if m.state.Loading {
			return m, nil
		}
		return m, m.do(func() controller.State { return m.ctrl.Load(m.ctx) })
	case "a", "+":
		return m, m.do(m.ctrl.ToggleForm)
	case "x":
		return m, m.do(m.ctrl.DismissError)
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.state.Records)-1 {
			m.cursor++
		}
	case "d", "delete":
		if rec, ok := m.selected(); ok {
			domain := rec.Domain
			return m, m.do(func() controller.State { return m.ctrl.RequestRemoval(domain) })
		}
	}
	return m, nil
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, m.do(m.ctrl.CloseForm)
	case "tab", "shift+tab", "up", "down":
		if m.focus == fieldDomain {
			m.setFocus(fieldIP)
		} else {
			m.setFocus(fieldDomain)
		}
		return m, nil
	case "enter":
		draft := dns.Draft{Domain: m.domain.Value(), IP: m.ip.Value()}
		return m, m.do(func() controller.State { return m.ctrl.Create(m.ctx, draft) })
	}

	var cmd tea.Cmd
	if m.focus == fieldDomain {
		m.domain, cmd = m.domain.Update(msg)
	} else {
		m.ip, cmd = m.ip.Update(msg)
	}
	return m, cmd
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch strings.ToLower(msg.String()) {
	case "y":
		return m, m.do(func() controller.State { return m.ctrl.ConfirmRemoval(m.ctx) })
	case "n", "esc":
		return m, m.do(m.ctrl.CancelRemoval)
	}
	return m, nil
}

func (m model) selected() (dns.Record, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Records) {
		return dns.Record{}, false
	}
	return m.state.Records[m.cursor], true
}
