package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-beatgen/theme"
)

// Cell is one step as the grid draws it
type Cell struct {
	Active      bool
	Velocity    int
	Probability int
}

// RenderSteps draws one row of steps, grouped in fours. Cells at or past
// length are drawn as beyond; the playhead is drawn only while playing.
func RenderSteps(th *theme.Theme, cells []Cell, length, playhead int, playing bool) string {
	sym := th.Symbols
	muted := lipgloss.NewStyle().Foreground(th.Muted())
	head := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)

	var out strings.Builder
	for i, c := range cells {
		if i > 0 && i%4 == 0 {
			out.WriteString(" ")
		}
		switch {
		case playing && i == playhead:
			out.WriteString(head.Render(string(sym.StepPlayhead)))
		case i >= length:
			out.WriteString(muted.Render(string(sym.StepBeyond)))
		case c.Active && c.Probability < 100:
			out.WriteString(lipgloss.NewStyle().Foreground(th.Velocity(c.Velocity)).Render(string(sym.StepGhost)))
		case c.Active:
			out.WriteString(lipgloss.NewStyle().Foreground(th.Velocity(c.Velocity)).Render(string(sym.StepActive)))
		default:
			out.WriteString(muted.Render(string(sym.StepEmpty)))
		}
	}
	return out.String()
}

// RenderTilt draws the 16 tilt entries with the current bar highlighted
func RenderTilt(th *theme.Theme, tilt []int, bar int) string {
	dim := lipgloss.NewStyle().Foreground(th.Muted())
	cur := lipgloss.NewStyle().Foreground(th.Accent())
	parts := make([]string, len(tilt))
	for i, v := range tilt {
		s := fmt.Sprintf("%+d", v)
		if v == 0 {
			s = " 0"
		}
		if i == bar {
			parts[i] = cur.Render(s)
		} else {
			parts[i] = dim.Render(s)
		}
	}
	return strings.Join(parts, " ")
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
