package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"go-beatgen/bus"
	"go-beatgen/midi"
	"go-beatgen/sequencer"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	mgr := sequencer.NewManager(sequencer.ManagerOptions{
		Seed: 1,
		Open: func(string) midi.Device { return nil },
	})
	t.Cleanup(mgr.Close)
	if _, err := mgr.AddMelodic(nil, nil); err != nil {
		t.Fatal(err)
	}
	mgr.AddDrum("gm")
	store := sequencer.NewFileStore(t.TempDir(), sequencer.FormatJSON)
	return NewModel(context.Background(), mgr, nil, store, nil)
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestTempoKeys(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "+")
	m = press(m, "+")
	m = press(m, "-")
	if got := m.Manager.Tempo(); got != sequencer.DefaultBPM+TempoStep {
		t.Fatalf("Tempo = %v", got)
	}
}

func TestPlayStopKey(t *testing.T) {
	m := newTestModel(t)
	m = press(m, " ")
	if !m.Manager.Playing() || !strings.Contains(m.View(), "PLAY") {
		t.Fatal("space did not start playback")
	}
	m = press(m, " ")
	if m.Manager.Playing() || !strings.Contains(m.View(), "STOP") {
		t.Fatal("space did not stop playback")
	}
}

func TestFocusAndRegenerate(t *testing.T) {
	m := newTestModel(t)
	seq := m.Manager.Melodic()[0]

	m = press(m, "r")
	if d := seq.Snapshot(); d.ActiveCount() == 0 {
		t.Fatal("r did not regenerate the focused sequencer")
	}

	m = press(m, "tab")
	if m.focus != 1 {
		t.Fatalf("focus = %d", m.focus)
	}
	m = press(m, "r")
	drum := m.Manager.Drums()[0]
	if kick := drum.Lane(0); kick.ActiveCount() != 4 {
		t.Fatalf("kick has %d hits", kick.ActiveCount())
	}
	m = press(m, "tab")
	if m.focus != 0 {
		t.Fatalf("focus did not wrap: %d", m.focus)
	}
}

func TestLatchKey(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "l")
	if !m.Manager.Melodic()[0].Snapshot().LatchEnabled {
		t.Fatal("latch not enabled")
	}
	m = press(m, "l")
	if m.Manager.Melodic()[0].Snapshot().LatchEnabled {
		t.Fatal("latch not disabled")
	}
}

func TestSaveLoadKeys(t *testing.T) {
	m := newTestModel(t)
	seq := m.Manager.Melodic()[0]
	seq.ToggleStep(5)

	m = press(m, "s")
	if !strings.Contains(m.status, "saved") {
		t.Fatalf("status = %q", m.status)
	}
	seq.ToggleStep(5)
	m = press(m, "o")
	if d := seq.Snapshot(); !d.Steps[5].Active {
		t.Fatalf("load did not restore the step (status %q)", m.status)
	}
}

func TestViewShowsSequencers(t *testing.T) {
	m := newTestModel(t)
	m.Manager.Drums()[0].ToggleStep(0, 0)
	out := m.View()
	for _, want := range []string{"seq0", "drum1", "General MIDI", "Kick", "tilt"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || next.(Model).View() != "" {
		t.Fatal("q did not quit")
	}
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "?")
	if out := m.View(); !strings.Contains(out, "regenerate focused") || strings.Contains(out, "seq0") {
		t.Fatalf("help view = %q", out)
	}
	m = press(m, "?")
	if !strings.Contains(m.View(), "seq0") {
		t.Fatal("help did not close")
	}
}

func TestDeviceConnectSetsDefaultPort(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(DeviceEventMsg{Type: midi.DeviceConnected, Name: "synth"})
	m = next.(Model)
	if got := m.Manager.DefaultPort(); got != "synth" {
		t.Fatalf("DefaultPort = %q", got)
	}
	if !strings.Contains(m.status, "default output") || !strings.Contains(m.View(), "synth") {
		t.Fatalf("status %q", m.status)
	}
}

func TestCommandNotificationsReachStatus(t *testing.T) {
	m := newTestModel(t)
	m.Manager.Commands().Publish(bus.SequenceLoaded{From: "seq0", Sequencer: 0, Sequence: 3})

	msg := ListenForCommands(m.commands)()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if m.status != "seq0 loaded sequence 3" || cmd == nil {
		t.Fatalf("status %q", m.status)
	}

	m = press(m, "q")
	m.Manager.Commands().Publish(bus.AllNotesOff{From: "test"})
	if len(m.commands) != 0 {
		t.Fatal("still subscribed after quit")
	}
}
