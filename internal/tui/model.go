// Package tui is a terminal front end: one code line, slot activity and
// evaluation feedback.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/loopcode"
	"github.com/cbegin/loopcode/internal/slots"
)

const (
	maxResults  = 6
	maxHistory  = 100
	flashBeats  = 4
	beatsPerBar = 4
)

// Session is what the front end drives. *loopcode.App satisfies it.
type Session interface {
	EvaluateAll(code string) []loopcode.Result
	Hush()
	Start()
	Stop()
	Running() bool
	BPM() float64
	SetBPM(bpm float64) float64
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	pulseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	slotStyle   = lipgloss.NewStyle().Padding(0, 1)
	activeStyle = slotStyle.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10"))
	litStyle    = slotStyle.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
	idleStyle   = slotStyle.Foreground(lipgloss.Color("8"))
)

type Model struct {
	session  Session
	events   <-chan loopcode.Event
	input    textinput.Model
	results  []loopcode.Result
	history  []string
	histPos  int
	beat     int
	cycle    int
	active   map[string]bool
	lit      map[int]int
	running  bool
	quitting bool
}

// EventMsg wraps a telemetry event.
type EventMsg loopcode.Event

func NewModel(session Session, events <-chan loopcode.Event) Model {
	ti := textinput.New()
	ti.Placeholder = `d1(s("bd*4"))`
	ti.Prompt = "> "
	ti.CharLimit = 512
	ti.Focus()
	return Model{
		session: session,
		events:  events,
		input:   ti,
		active:  make(map[string]bool),
		lit:     make(map[int]int),
		running: session.Running(),
	}
}

// ListenForEvents waits for the next telemetry event.
func ListenForEvents(ch <-chan loopcode.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return EventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, ListenForEvents(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.session.Stop()
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, nil
		case "ctrl+p":
			if m.session.Running() {
				m.session.Stop()
			} else {
				m.session.Start()
			}
			m.running = m.session.Running()
			return m, nil
		case "ctrl+h":
			m.session.Hush()
			return m, nil
		case "ctrl+up":
			m.session.SetBPM(m.session.BPM() + 5)
			return m, nil
		case "ctrl+down":
			m.session.SetBPM(m.session.BPM() - 5)
			return m, nil
		case "up":
			m.recall(-1)
			return m, nil
		case "down":
			m.recall(1)
			return m, nil
		}

	case EventMsg:
		m.apply(loopcode.Event(msg))
		return m, ListenForEvents(m.events)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() {
	code := strings.TrimSpace(m.input.Value())
	if code == "" {
		return
	}
	m.results = append(m.results, m.session.EvaluateAll(code)...)
	if len(m.results) > maxResults {
		m.results = m.results[len(m.results)-maxResults:]
	}
	if len(m.history) == 0 || m.history[len(m.history)-1] != code {
		m.history = append(m.history, code)
		if len(m.history) > maxHistory {
			m.history = m.history[1:]
		}
	}
	m.histPos = len(m.history)
	m.running = m.session.Running()
	m.input.SetValue("")
}

func (m *Model) recall(dir int) {
	if len(m.history) == 0 {
		return
	}
	m.histPos += dir
	if m.histPos < 0 {
		m.histPos = 0
	}
	if m.histPos >= len(m.history) {
		m.histPos = len(m.history)
		m.input.SetValue("")
		return
	}
	m.input.SetValue(m.history[m.histPos])
	m.input.CursorEnd()
}

func (m *Model) apply(ev loopcode.Event) {
	switch ev.Kind {
	case loopcode.EventBeat:
		m.beat = ev.Beat
		for slot, n := range m.lit {
			if n <= 1 {
				delete(m.lit, slot)
			} else {
				m.lit[slot] = n - 1
			}
		}
	case loopcode.EventCycle:
		m.cycle = ev.Cycle
	case loopcode.EventHighlight:
		m.lit[ev.Slot] = flashBeats
	case loopcode.EventSlots:
		m.active = make(map[string]bool, len(ev.Active))
		for _, name := range ev.Active {
			m.active[name] = true
		}
	case loopcode.EventHush:
		m.active = make(map[string]bool)
		m.lit = make(map[int]int)
	case loopcode.EventTransport:
		m.running = ev.Running
		if !ev.Running {
			m.beat, m.cycle = 0, 0
			m.lit = make(map[int]int)
		}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	state := "STOP"
	if m.running {
		state = "PLAY"
	}
	var pulse strings.Builder
	for i := 0; i < beatsPerBar; i++ {
		if m.running && m.beat%beatsPerBar == i {
			pulse.WriteString(pulseStyle.Render("●"))
		} else {
			pulse.WriteString(dimStyle.Render("○"))
		}
	}
	header := headerStyle.Render(fmt.Sprintf("loopcode  %s  %3.0fbpm  cycle:%03d", state, m.session.BPM(), m.cycle))

	var slotRow []string
	for i, name := range slots.Names() {
		switch {
		case m.lit[i+1] > 0:
			slotRow = append(slotRow, litStyle.Render(name))
		case m.active[name]:
			slotRow = append(slotRow, activeStyle.Render(name))
		default:
			slotRow = append(slotRow, idleStyle.Render(name))
		}
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header + "  " + pulse.String())
	out.WriteString("\n\n")
	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, slotRow...))
	out.WriteString("\n\n")
	for _, res := range m.results {
		if res.Success {
			out.WriteString(okStyle.Render("✓ " + res.Message))
		} else {
			out.WriteString(errStyle.Render("✗ " + res.Message))
		}
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(m.input.View())
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render("enter:eval  ctrl+p:play/stop  ctrl+h:hush  ctrl+↑/↓:tempo  ↑/↓:history  esc:quit"))
	return out.String()
}

// Run starts the program on the terminal and blocks until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, session Session, events <-chan loopcode.Event) error {
	_, err := tea.NewProgram(NewModel(session, events), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
