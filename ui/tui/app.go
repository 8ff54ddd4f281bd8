package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"procwatch/internal/collector"
	"procwatch/internal/engine"
	"procwatch/internal/output"
	"procwatch/ui/tui/state"
	"procwatch/ui/tui/styles"
	"procwatch/ui/tui/views"
)

const pageSizeStep = 5

// Source is the live table the TUI drives. *publisher.Publisher implements it.
type Source interface {
	CurrentView() engine.View
	Dispatch(ev engine.Event) (engine.View, error)
	Host() collector.HostInfo
	Trigger()
}

// MainModel is the Bubble Tea Model acting as the Controller
type MainModel struct {
	source    Source
	flagger   output.RowFlagger
	pollEvery time.Duration

	state   state.AppState
	keys    keyMap
	help    help.Model
	filter  textinput.Model
	spinner spinner.Model
	zones   *zone.Manager

	animCursor float64
	velocity   float64 // Physics velocity
	spring     harmonica.Spring

	quitting bool
	width    int
	height   int
}

// Messages
type TickMsg time.Time
type AnimateMsg time.Time

// InitialModel builds the model. pollEvery is how often the published view
// is re-read; it does not affect the sampling cadence.
func InitialModel(source Source, flg output.RowFlagger, pollEvery time.Duration) MainModel {
	if pollEvery <= 0 {
		pollEvery = 250 * time.Millisecond
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = output.FilterPlaceholder
	ti.Prompt = "/ "
	ti.CharLimit = 64

	m := MainModel{
		source:    source,
		flagger:   flg,
		pollEvery: pollEvery,
		keys:      defaultKeyMap(),
		help:      help.New(),
		filter:    ti,
		spinner:   s,
		zones:     zone.New(),
		spring:    harmonica.NewSpring(harmonica.FPS(60), 12.0, 0.9),
	}
	m.state.SetView(source.CurrentView(), flg)
	m.state.Host = output.HostLine(source.Host())
	return m
}

func (m *MainModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tickCmd(m.pollEvery),
		animateCmd(),
	)
}

// Commands
func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func animateCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*16, func(t time.Time) tea.Msg {
		return AnimateMsg(t)
	})
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case AnimateMsg:
		return m.handleAnimateMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case TickMsg:
		m.state.SetView(m.source.CurrentView(), m.flagger)
		m.state.Host = output.HostLine(m.source.Host())
		return m, tickCmd(m.pollEvery)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)
	}

	return m, nil
}

func (m *MainModel) dispatch(ev engine.Event) {
	v, err := m.source.Dispatch(ev)
	m.state.Err = err
	m.state.SetView(v, m.flagger)
}

func (m *MainModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	switch m.state.Mode {
	case state.ModeFilter:
		return m.handleFilterKey(msg)
	case state.ModeColumns:
		return m.handleColumnsKey(msg)
	}

	v := m.state.View
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Up):
		if m.state.RowCursor > 0 {
			m.state.RowCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.state.RowCursor < len(v.Rows)-1 {
			m.state.RowCursor++
		}

	case key.Matches(msg, m.keys.PrevPage):
		m.dispatch(engine.PrevPage{})
	case key.Matches(msg, m.keys.NextPage):
		m.dispatch(engine.NextPage{})

	case key.Matches(msg, m.keys.Select):
		if pid, ok := m.state.CursorPID(); ok {
			m.dispatch(engine.ToggleSelection{PID: pid})
		}
	case key.Matches(msg, m.keys.SelectPage):
		m.selectPage()
	case key.Matches(msg, m.keys.Clear):
		m.dispatch(engine.ClearSelection{})

	case key.Matches(msg, m.keys.Sort):
		idx := int(msg.Runes[0] - '1')
		m.dispatch(engine.ToggleSort{Column: engine.Columns()[idx].Key})

	case key.Matches(msg, m.keys.Bigger):
		m.dispatch(engine.SetPageSize{Size: v.PageSize + pageSizeStep})
	case key.Matches(msg, m.keys.Smaller):
		m.dispatch(engine.SetPageSize{Size: max(v.PageSize-pageSizeStep, 1)})

	case key.Matches(msg, m.keys.Filter):
		m.state.Mode = state.ModeFilter
		m.filter.SetValue(v.FilterText)
		m.filter.CursorEnd()
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Columns):
		m.state.Mode = state.ModeColumns

	case key.Matches(msg, m.keys.Refresh):
		m.source.Trigger()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// selectPage selects every row on the page, or deselects them when they
// are all selected already.
func (m *MainModel) selectPage() {
	rows := m.state.View.Rows
	if len(rows) == 0 {
		return
	}
	pids := make([]int32, len(rows))
	all := true
	for i, r := range rows {
		pids[i] = r.PID
		all = all && m.state.View.IsSelected(r.PID)
	}
	m.dispatch(engine.SetSelection{PIDs: pids, Selected: !all})
}

func (m *MainModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		m.state.Mode = state.ModeTable
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if text := m.filter.Value(); text != m.state.View.FilterText {
		m.dispatch(engine.SetFilter{Text: text})
		m.state.RowCursor = 0
	}
	return m, cmd
}

func (m *MainModel) handleColumnsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := len(engine.Columns()) - 1
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Up):
		if m.state.ColumnCursor > 0 {
			m.state.ColumnCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.state.ColumnCursor < last {
			m.state.ColumnCursor++
		}
	case key.Matches(msg, m.keys.Select):
		m.dispatch(engine.ToggleColumn{Column: engine.Columns()[m.state.ColumnCursor].Key})
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Columns):
		m.state.Mode = state.ModeTable
	}
	return m, nil
}

func (m *MainModel) handleAnimateMsg(msg AnimateMsg) (tea.Model, tea.Cmd) {
	var v float64 = m.velocity
	m.animCursor, v = m.spring.Update(m.animCursor, float64(m.state.ColumnCursor), v)
	m.velocity = v
	return m, animateCmd()
}

func (m *MainModel) clicked(id string, msg tea.MouseMsg) bool {
	z := m.zones.Get(id)
	return z != nil && z.InBounds(msg)
}

func (m *MainModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	if m.state.Mode == state.ModeColumns {
		for i, c := range engine.Columns() {
			if m.clicked(views.ColumnZone(i), msg) {
				m.state.ColumnCursor = i
				m.dispatch(engine.ToggleColumn{Column: c.Key})
				return m, nil
			}
		}
		return m, nil
	}

	v := m.state.View
	for _, c := range v.Columns {
		if m.clicked(views.HeaderZone(c.Key), msg) {
			m.dispatch(engine.ToggleSort{Column: c.Key})
			return m, nil
		}
	}
	for i, r := range v.Rows {
		if m.clicked(views.RowZone(r.PID), msg) {
			m.state.RowCursor = i
			m.dispatch(engine.ToggleSelection{PID: r.PID})
			return m, nil
		}
	}
	switch {
	case v.HasPrev && m.clicked(views.PrevZone, msg):
		m.dispatch(engine.PrevPage{})
	case v.HasNext && m.clicked(views.NextZone, msg):
		m.dispatch(engine.NextPage{})
	}
	return m, nil
}

func (m *MainModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

func (m *MainModel) View() string {
	if m.quitting {
		return "Bye!\n"
	}

	props := views.ViewProps{
		Width:       m.width,
		Height:      m.height,
		Zones:       m.zones,
		AnimCursor:  m.animCursor,
		SpinnerView: m.spinner.View(),
		FilterView:  m.filterView(),
		HelpView:    m.help.View(m.keys),
	}

	if m.state.Mode == state.ModeColumns {
		return views.RenderColumns(m.state, props)
	}
	return views.RenderTable(m.state, props)
}

func (m *MainModel) filterView() string {
	if m.state.Mode == state.ModeFilter {
		return " " + m.filter.View()
	}
	if m.state.View.FilterText == "" {
		return styles.DimStyle.Render(" / " + output.FilterPlaceholder)
	}
	return " / " + m.state.View.FilterText
}

func Start(source Source, flg output.RowFlagger, pollEvery time.Duration) error {
	m := InitialModel(source, flg, pollEvery)
	defer m.zones.Close()

	p := tea.NewProgram(
		&m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}
