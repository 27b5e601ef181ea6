package ui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/clarinet/pkg/credentials"
	"github.com/go-go-golems/clarinet/pkg/events"
	"github.com/go-go-golems/clarinet/pkg/flow"
	"github.com/go-go-golems/clarinet/pkg/messages"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Flow is what the model needs from the orchestrator.
type Flow interface {
	StartSearchFlow(ctx context.Context, query string, provider credentials.Provider) error
	HandleChoiceSelect(messageID string, choice string) error
	SubmitAnswers(ctx context.Context) error
	Snapshot() flow.State
}

// KeyStore saves the api key entered in the missing-key prompt.
type KeyStore interface {
	SetAPIKey(ctx context.Context, p credentials.Provider, key string) error
}

var _ Flow = &flow.Orchestrator{}

type focus int

const (
	focusInput focus = iota
	focusChoices
	focusKeyPrompt
)

type option struct {
	messageID string
	choice    string
}

type searchDoneMsg struct {
	query    string
	provider credentials.Provider
	err      error
}

type submitDoneMsg struct {
	err error
}

type keySavedMsg struct {
	err error
}

// Model is the interactive search view.
type Model struct {
	ctx      context.Context
	flow     Flow
	keys     KeyStore
	provider credentials.Provider
	state    flow.State

	focus      focus
	input      textinput.Model
	keyInput   textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	cursor     int
	retryQuery string
	status     string
	statusErr  bool
	busy       bool

	width   int
	height  int
	ready   bool
	reports map[string]string

	copy func(string) error
}

func NewModel(ctx context.Context, f Flow, keys KeyStore, provider credentials.Provider) Model {
	in := textinput.New()
	in.Placeholder = "What do you want to search for?"
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	key := textinput.New()
	key.Placeholder = "api key"
	key.EchoMode = textinput.EchoPassword
	key.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	return Model{
		ctx:      ctx,
		flow:     f,
		keys:     keys,
		provider: provider,
		state:    f.Snapshot(),
		input:    in,
		keyInput: key,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		reports:  map[string]string{},
		copy:     clipboard.WriteAll,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 4
		m.keyInput.Width = msg.Width - 12
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 3)
		m.reports = map[string]string{}
		m.ready = true
		m.refresh()
		return m, nil

	case FlowEventMsg:
		m.refresh()
		if msg.Event.Type == events.TypeSearchCompleted {
			m.setStatus("Search completed. ctrl+y copies the report.", false)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Loading || m.state.Polling {
			m.renderContent()
		}
		return m, cmd

	case searchDoneMsg:
		m.busy = false
		if errors.Is(msg.err, flow.ErrAPIKeyMissing) {
			m.openKeyPrompt(msg.query, msg.provider)
		} else if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		}
		m.refresh()
		return m, nil

	case submitDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		}
		m.refresh()
		return m, nil

	case keySavedMsg:
		if msg.err != nil {
			log.Error().Err(msg.err).Msg("could not save api key")
			m.setStatus("Could not save the API key: "+msg.err.Error(), true)
			return m, nil
		}
		m.setStatus("API key saved for "+m.provider.Label()+".", false)
		m.keyInput.Reset()
		m.setFocus(focusInput)
		if m.retryQuery == "" {
			return m, nil
		}
		q := m.retryQuery
		m.retryQuery = ""
		m.busy = true
		return m, m.startCmd(q)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.focus == focusKeyPrompt {
		switch msg.String() {
		case "esc":
			m.retryQuery = ""
			m.keyInput.Reset()
			m.setFocus(focusInput)
			m.setStatus("An API key is required to search with "+m.provider.Label()+".", true)
			return m, nil
		case "enter":
			key := strings.TrimSpace(m.keyInput.Value())
			if key == "" {
				m.setStatus("Please enter an API key.", true)
				return m, nil
			}
			return m, m.saveKeyCmd(key)
		}
		return m.updateInputs(msg)
	}

	switch msg.String() {
	case "ctrl+s":
		return m.submit()
	case "ctrl+y":
		m.copyReport()
		return m, nil
	case "ctrl+p":
		if !m.busy {
			m.provider = nextProvider(m.provider)
			m.setStatus("Provider: "+m.provider.Label(), false)
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "tab":
		if m.focus == focusInput && len(m.options()) > 0 {
			m.setFocus(focusChoices)
		} else {
			m.setFocus(focusInput)
		}
		m.renderContent()
		return m, nil
	}

	if m.focus == focusChoices {
		opts := m.options()
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			m.renderContent()
			return m, nil
		case "down", "j":
			if m.cursor < len(opts)-1 {
				m.cursor++
			}
			m.renderContent()
			return m, nil
		case "enter", " ":
			if m.cursor < len(opts) {
				o := opts[m.cursor]
				if err := m.flow.HandleChoiceSelect(o.messageID, o.choice); err != nil {
					m.setStatus(err.Error(), true)
				} else {
					m.setStatus("", false)
				}
				m.refresh()
			}
			return m, nil
		case "s":
			return m.submit()
		case "esc":
			m.setFocus(focusInput)
			m.renderContent()
			return m, nil
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "enter":
		q := strings.TrimSpace(m.input.Value())
		if q == "" || m.busy {
			return m, nil
		}
		m.input.Reset()
		m.busy = true
		m.setStatus("", false)
		return m, m.startCmd(q)
	}
	return m.updateInputs(msg)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if !m.state.SubmitAvailable || m.busy {
		return m, nil
	}
	m.busy = true
	m.setFocus(focusInput)
	f, ctx := m.flow, m.ctx
	return m, func() tea.Msg {
		return submitDoneMsg{err: f.SubmitAnswers(ctx)}
	}
}

func (m Model) startCmd(q string) tea.Cmd {
	f, ctx, p := m.flow, m.ctx, m.provider
	return func() tea.Msg {
		return searchDoneMsg{query: q, provider: p, err: f.StartSearchFlow(ctx, q, p)}
	}
}

func (m Model) saveKeyCmd(key string) tea.Cmd {
	keys, ctx, p := m.keys, m.ctx, m.provider
	return func() tea.Msg {
		if keys == nil {
			return keySavedMsg{err: errors.New("no credential store configured")}
		}
		return keySavedMsg{err: keys.SetAPIKey(ctx, p, key)}
	}
}

func (m *Model) openKeyPrompt(query string, p credentials.Provider) {
	m.retryQuery = query
	m.provider = p
	m.keyInput.Reset()
	m.setFocus(focusKeyPrompt)
	m.setStatus("No API key stored for "+p.Label()+".", true)
}

func (m *Model) copyReport() {
	p, ok := LastReport(m.state.Messages)
	if !ok {
		m.setStatus("No report to copy yet.", true)
		return
	}
	if err := m.copy(ReportMarkdown(p)); err != nil {
		m.setStatus("Could not copy the report: "+err.Error(), true)
		return
	}
	m.setStatus("Report copied to the clipboard.", false)
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	m.input.Blur()
	m.keyInput.Blur()
	switch f {
	case focusInput:
		m.input.Focus()
	case focusKeyPrompt:
		m.keyInput.Focus()
	case focusChoices:
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// refresh re-reads the flow snapshot and moves focus to the questions when they arrive.
func (m *Model) refresh() {
	prev := m.state.Step
	m.state = m.flow.Snapshot()
	opts := m.options()
	if m.cursor >= len(opts) {
		m.cursor = max(len(opts)-1, 0)
	}
	if m.focus == focusInput && prev != flow.StepQuestions && m.state.Step == flow.StepQuestions && len(opts) > 0 {
		m.cursor = 0
		m.setFocus(focusChoices)
	}
	if m.focus == focusChoices && len(opts) == 0 {
		m.setFocus(focusInput)
	}
	m.renderContent()
}

// options lists the selectable (question, choice) pairs of unanswered questions.
func (m Model) options() []option {
	var ret []option
	for _, msg := range m.state.Messages {
		if msg.Type != messages.TypeQuestion || msg.HasSelection() {
			continue
		}
		for _, c := range msg.Options() {
			ret = append(ret, option{messageID: msg.ID, choice: c})
		}
	}
	return ret
}

func (m *Model) renderContent() {
	r := renderer{
		width:   m.viewport.Width,
		spinner: m.spinner.View(),
		focused: m.focus == focusChoices,
		reports: m.reports,
	}
	if opts := m.options(); m.cursor < len(opts) {
		r.cursor = opts[m.cursor]
	}
	m.viewport.SetContent(r.messages(m.state.Messages))
	m.viewport.GotoBottom()
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusInput:
		m.input, cmd = m.input.Update(msg)
	case focusKeyPrompt:
		m.keyInput, cmd = m.keyInput.Update(msg)
	case focusChoices:
	}
	return m, cmd
}

const (
	headerHeight = 3
	footerHeight = 4
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var sb strings.Builder
	sb.WriteString(renderHeader(m.state, m.provider))
	sb.WriteString("\n\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")

	if m.status != "" {
		if m.statusErr {
			sb.WriteString(errorStyle.Render(m.status))
		} else {
			sb.WriteString(statusStyle.Render(m.status))
		}
	} else if m.state.SubmitAvailable {
		sb.WriteString(submitStyle.Render("Ready to search: press ctrl+s to submit your answers."))
	}
	sb.WriteString("\n")

	if m.focus == focusKeyPrompt {
		sb.WriteString(modalStyle.Render(
			questionStyle.Render("API key for "+m.provider.Label()) + "\n" +
				m.keyInput.View() + "\n" +
				helpStyle.Render("enter save · esc cancel")))
		return sb.String()
	}
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(m.help()))
	return sb.String()
}

func (m Model) help() string {
	if m.focus == focusChoices {
		return "↑/↓ move · enter choose · s submit · tab query · ctrl+c quit"
	}
	return "enter search · tab questions · ctrl+s submit · ctrl+p provider · ctrl+y copy · esc quit"
}

func nextProvider(p credentials.Provider) credentials.Provider {
	all := credentials.Providers()
	for i, q := range all {
		if q == p {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}
