package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-beatgen/bus"
	"go-beatgen/debug"
	"go-beatgen/midi"
	"go-beatgen/sequencer"
	"go-beatgen/theme"
	"go-beatgen/widgets"
)

// TempoStep is how far +/- move the tempo
const TempoStep = 5

// SaveSlot is the sequence number the s and o keys use
const SaveSlot = 1

// Model is a read-mostly monitor: it shows every sequencer's pattern and
// playhead and drives the transport from the keyboard
type Model struct {
	ctx     context.Context
	Manager *sequencer.Manager
	Devices *midi.DeviceManager // may be nil
	Store   sequencer.Store     // may be nil
	Theme   *theme.Theme

	commands <-chan bus.Command
	cmdSub   *bus.Subscription

	focus    int
	status   string
	showHelp bool
	quitting bool
}

var keyHelp = []widgets.KeySection{
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "space", Desc: "play / stop"},
		{Key: "+ -", Desc: "tempo"},
		{Key: "p", Desc: "all notes off"},
	}},
	{Title: "Sequencers", Keys: []widgets.KeyBinding{
		{Key: "tab", Desc: "next sequencer"},
		{Key: "r", Desc: "regenerate focused"},
		{Key: "R", Desc: "regenerate all"},
		{Key: "l", Desc: "toggle latch"},
		{Key: "s o", Desc: fmt.Sprintf("save / load slot %d", SaveSlot)},
	}},
	{Keys: []widgets.KeyBinding{
		{Key: "?", Desc: "close help"},
		{Key: "q", Desc: "quit"},
	}},
}

// UpdateMsg wraps a step move read from the manager
type UpdateMsg sequencer.StepUpdate

type DeviceEventMsg midi.DeviceEvent

// CommandMsg carries a notification seen on the command bus
type CommandMsg struct{ bus.Command }

func NewModel(ctx context.Context, manager *sequencer.Manager, devices *midi.DeviceManager, store sequencer.Store, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	commands, sub := manager.Commands().SubscribeChan(32)
	return Model{
		ctx:      ctx,
		Manager:  manager,
		Devices:  devices,
		Store:    store,
		Theme:    th,
		commands: commands,
		cmdSub:   sub,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		return UpdateMsg(<-manager.Updates())
	}
}

func ListenForCommands(commands <-chan bus.Command) tea.Cmd {
	return func() tea.Msg {
		return CommandMsg{<-commands}
	}
}

func ListenForDevices(devices *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-devices.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Manager), ListenForCommands(m.commands)}
	if m.Devices != nil {
		cmds = append(cmds, ListenForDevices(m.Devices))
	}
	return tea.Batch(cmds...)
}

// rows is the number of focusable sequencers
func (m Model) rows() int {
	return len(m.Manager.Melodic()) + len(m.Manager.Drums())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case CommandMsg:
		if status := describe(msg.Command); status != "" {
			m.status = status
		}
		return m, ListenForCommands(m.commands)

	case DeviceEventMsg:
		ev := midi.DeviceEvent(msg)
		switch ev.Type {
		case midi.DeviceConnected:
			m.status = "connected " + ev.Name
		case midi.DeviceDisconnected:
			m.status = "disconnected " + ev.Name
		}
		if m.Manager.FollowDevice(ev) {
			m.status += ", now the default output"
		}
		debug.Log("tui", "%s", m.status)
		if m.Devices == nil {
			return m, nil
		}
		return m, ListenForDevices(m.Devices)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.cmdSub.Unsubscribe()
		m.Manager.Stop()
		return m, tea.Quit

	case " ":
		if m.Manager.Playing() {
			m.Manager.Stop()
		} else {
			m.Manager.Start(m.ctx)
		}

	case "+", "=":
		m.Manager.SetTempo(m.Manager.Tempo() + TempoStep)

	case "-", "_":
		m.Manager.SetTempo(m.Manager.Tempo() - TempoStep)

	case "tab":
		if n := m.rows(); n > 0 {
			m.focus = (m.focus + 1) % n
		}

	case "shift+tab":
		if n := m.rows(); n > 0 {
			m.focus = (m.focus + n - 1) % n
		}

	case "r":
		m.regenerateFocused()

	case "R":
		m.Manager.RegenerateAll()
		m.status = "regenerated all"

	case "l":
		m.toggleLatch()

	case "p":
		m.Manager.Commands().Publish(bus.AllNotesOff{From: "tui"})
		m.status = "all notes off"

	case "s":
		m.status = m.persist("saved", m.Manager.SaveAll)

	case "o":
		m.status = m.persist("loaded", m.Manager.LoadAll)

	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

// describe turns the notifications worth showing into a status line
func describe(c bus.Command) string {
	switch c := c.(type) {
	case bus.PatternUpdated:
		return c.Sender() + " new pattern"
	case bus.SequenceLoaded:
		return fmt.Sprintf("%s loaded sequence %d", c.Sender(), c.Sequence)
	case bus.SequenceSaved:
		return fmt.Sprintf("%s saved sequence %d", c.Sender(), c.Sequence)
	case bus.LatchChanged:
		return fmt.Sprintf("%s latch %v", c.Sender(), c.Enabled)
	case bus.AllNotesOff:
		return "all notes off"
	case bus.ScaleChanged, bus.TiltChanged, bus.ParamChanged:
	}
	return ""
}

func (m *Model) persist(verb string, fn func(sequencer.Store, int) error) string {
	if m.Store == nil {
		return "no store"
	}
	if err := fn(m.Store, SaveSlot); err != nil {
		debug.Log("tui", "%s: %v", verb, err)
		return fmt.Sprintf("%s with errors: %v", verb, err)
	}
	return fmt.Sprintf("%s slot %d", verb, SaveSlot)
}

// focused returns the melodic or drum sequencer under the focus index
func (m Model) focused() (*sequencer.Sequencer, *sequencer.DrumSequencer) {
	melodic := m.Manager.Melodic()
	if m.focus < len(melodic) {
		return melodic[m.focus], nil
	}
	drums := m.Manager.Drums()
	if i := m.focus - len(melodic); i < len(drums) {
		return nil, drums[i]
	}
	return nil, nil
}

func (m *Model) regenerateFocused() {
	s, d := m.focused()
	var err error
	switch {
	case s != nil:
		err = s.Regenerate()
		m.status = "regenerated " + s.Name()
	case d != nil:
		err = d.Regenerate()
		m.status = "regenerated " + d.Name()
	}
	if err != nil {
		m.status = err.Error()
	}
}

func (m *Model) toggleLatch() {
	s, d := m.focused()
	switch {
	case s != nil:
		on := !s.Snapshot().LatchEnabled
		s.SetLatch(on)
		m.status = fmt.Sprintf("%s latch %v", s.Name(), on)
	case d != nil:
		on := !d.Lane(0).LatchEnabled
		d.SetLatch(on)
		m.status = fmt.Sprintf("%s latch %v", d.Name(), on)
	}
}

func cells(steps []sequencer.Step) []widgets.Cell {
	out := make([]widgets.Cell, len(steps))
	for i, st := range steps {
		out[i] = widgets.Cell{Active: st.Active, Velocity: st.Velocity, Probability: st.Probability}
	}
	return out
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return "\n" + widgets.RenderKeyHelp(keyHelp) + "\n"
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	focusStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor()).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())

	playing := m.Manager.Playing()
	playState := "STOP"
	if playing {
		playState = "PLAY"
	}
	tick := m.Manager.Clock().Tick()
	bar := tick / (bus.PPQ * 4)
	header := headerStyle.Render(fmt.Sprintf("go-beatgen  %s  %3.0fbpm  bar:%03d", playState, m.Manager.Tempo(), bar+1))
	if port := m.Manager.DefaultPort(); port != "" {
		header += dimStyle.Render("  " + port)
	}

	var rows []string
	row := 0
	label := func(name, detail string) string {
		marker := "  "
		style := labelStyle
		if row == m.focus {
			marker = "> "
			style = focusStyle
		}
		return style.Render(fmt.Sprintf("%s%-7s %-14s", marker, name, detail))
	}

	for _, s := range m.Manager.Melodic() {
		d := s.Snapshot()
		n := 16
		if d.Length() > n {
			n = d.Length()
		}
		detail := fmt.Sprintf("ch%-2d %s", s.Channel()+1, d.Scale)
		grid := widgets.RenderSteps(m.Theme, cells(d.Steps[:n]), d.Length(), s.Cursor(), s.Playing())
		line := label(s.Name(), detail) + " " + grid
		if d.LatchEnabled {
			line += dimStyle.Render("  latch")
		}
		rows = append(rows, line)
		rows = append(rows, dimStyle.Render("          tilt ")+widgets.RenderTilt(m.Theme, d.Tilt[:], int(s.CurrentBar())%sequencer.TiltPositions))
		row++
	}

	for _, s := range m.Manager.Drums() {
		kit := s.Kit()
		rows = append(rows, label(s.Name(), kit.Name))
		for lane := 0; lane < sequencer.DrumLanes; lane++ {
			d := s.Lane(lane)
			if d.ActiveCount() == 0 {
				continue
			}
			n := 16
			if d.Length() > n {
				n = d.Length()
			}
			grid := widgets.RenderSteps(m.Theme, cells(d.Steps[:n]), d.Length(), s.Cursor(lane), s.Playing())
			rows = append(rows, dimStyle.Render(fmt.Sprintf("    %-21s ", sequencer.LaneNames[lane]))+grid)
		}
		row++
	}

	help := dimStyle.Render("space:play  +/-:tempo  tab:focus  r/R:regen  l:latch  ?:help  q:quit")

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(strings.Join(rows, "\n"))
	out.WriteString("\n\n")
	out.WriteString(help)
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.status))
	}
	return out.String()
}
