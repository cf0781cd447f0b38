package sequencer

import "sort"

// DrumKit maps the drum lanes to MIDI notes
type DrumKit struct {
	Name  string
	Notes [DrumLanes]uint8
}

// LaneNames labels the drum lanes in kit slot order
var LaneNames = [DrumLanes]string{
	"Kick", "Snare", "Closed HH", "Open HH",
	"Low Tom", "Mid Tom", "High Tom", "Crash",
	"Ride", "Clap", "Rimshot", "Cowbell",
	"Clave", "Maracas", "Low Conga", "High Conga",
}

// Kits holds the lane mappings of the supported drum machines, in
// LaneNames order
var Kits = map[string]DrumKit{
	"gm": {Name: "General MIDI", Notes: [DrumLanes]uint8{
		36, 38, 42, 46, 41, 43, 45, 49,
		51, 39, 37, 56, 75, 70, 64, 63,
	}},
	// RD-8 puts its snare on 40
	"rd8": {Name: "Behringer RD-8", Notes: [DrumLanes]uint8{
		36, 40, 42, 46, 45, 48, 50, 49,
		51, 39, 37, 56, 75, 70, 64, 63,
	}},
	"tr8s": {Name: "Roland TR-8S", Notes: [DrumLanes]uint8{
		36, 38, 42, 46, 41, 43, 45, 49,
		51, 39, 37, 56, 75, 70, 62, 63,
	}},
	// ER-1 has four synth voices, two audio inputs and PCM hats, crash
	// and clap; the last lanes are placeholders
	"er1": {Name: "Korg ER-1", Notes: [DrumLanes]uint8{
		36, 38, 42, 46, 40, 41, 43, 49,
		45, 39, 37, 56, 75, 70, 64, 63,
	}},
}

// DefaultKit is used when a kit name is unknown
const DefaultKit = "gm"

// KitNames returns the available kit names, sorted
func KitNames() []string {
	names := make([]string, 0, len(Kits))
	for name := range Kits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetKit returns a kit by name, or the default kit
func GetKit(name string) DrumKit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}

// Lane returns the lane playing note, or -1
func (k DrumKit) Lane(note uint8) int {
	for i, n := range k.Notes {
		if n == note {
			return i
		}
	}
	return -1
}
