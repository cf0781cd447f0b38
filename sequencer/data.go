package sequencer

import (
	"fmt"
	"strings"
)

// Sequence-level parameter bounds
const (
	DefaultPatternLength = 16
	TiltPositions        = 16
	MaxTilt              = 7
	MinSwing             = 0
	MaxSwing             = 100
	MinOctaveShift       = -4
	MaxOctaveShift       = 4
)

// Direction is the order in which the cursor walks the pattern
type Direction int

const (
	Forward Direction = iota
	Backward
	Bounce
	Random
)

var directionNames = []string{"Forward", "Backward", "Bounce", "Random"}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return "Forward"
	}
	return directionNames[d]
}

// ParseDirection accepts a name as printed by String, case insensitive
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if strings.EqualFold(s, name) {
			return Direction(i), nil
		}
	}
	return Forward, fmt.Errorf("unknown direction %q", s)
}

// Division is the number of 24 PPQ pulses between steps
type Division int

const (
	Quarter          Division = 24
	Eighth           Division = 12
	EighthTriplet    Division = 8
	Sixteenth        Division = 6
	SixteenthTriplet Division = 4
	ThirtySecond     Division = 3
)

// Divisions lists the named divisions, slowest first
var Divisions = []Division{Quarter, Eighth, EighthTriplet, Sixteenth, SixteenthTriplet, ThirtySecond}

func (d Division) String() string {
	switch d {
	case Quarter:
		return "1/4"
	case Eighth:
		return "1/8"
	case EighthTriplet:
		return "1/8T"
	case Sixteenth:
		return "1/16"
	case SixteenthTriplet:
		return "1/16T"
	case ThirtySecond:
		return "1/32"
	}
	return fmt.Sprintf("%dp", int(d))
}

// SequenceData is one pattern plus its playback parameters. It is a plain
// value: assignment copies it, == compares it.
type SequenceData struct {
	Steps           [MaxSteps]Step     `json:"steps" yaml:"steps"`
	PatternLength   int                `json:"patternLength" yaml:"patternLength"`
	Direction       Direction          `json:"direction" yaml:"direction"`
	Division        Division           `json:"division" yaml:"division"`
	Looping         bool               `json:"looping" yaml:"looping"`
	SwingEnabled    bool               `json:"swingEnabled" yaml:"swingEnabled"`
	SwingPercent    int                `json:"swingPercent" yaml:"swingPercent"`
	Scale           ScaleType          `json:"scale" yaml:"scale"`
	RootNote        int                `json:"rootNote" yaml:"rootNote"`
	OctaveShift     int                `json:"octaveShift" yaml:"octaveShift"`
	QuantizeEnabled bool               `json:"quantizeEnabled" yaml:"quantizeEnabled"`
	Tilt            [TiltPositions]int `json:"tilt" yaml:"tilt"`
	LatchEnabled    bool               `json:"latchEnabled" yaml:"latchEnabled"`
}

// NewSequenceData returns an empty 16 step pattern with default parameters
func NewSequenceData() SequenceData {
	var d SequenceData
	d.Reset()
	return d
}

// Reset restores every field to its default
func (d *SequenceData) Reset() {
	*d = SequenceData{
		PatternLength: DefaultPatternLength,
		Direction:     Forward,
		Division:      Sixteenth,
		Looping:       true,
		Scale:         ScaleChromatic,
	}
	d.Clear()
}

// Clear resets all steps and the tilt array, keeping sequence parameters
func (d *SequenceData) Clear() {
	for i := range d.Steps {
		d.Steps[i] = NewStep(i)
	}
	d.Tilt = [TiltPositions]int{}
}

// Clone returns an independent copy
func (d *SequenceData) Clone() SequenceData {
	return *d
}

// Equal reports whether both patterns hold identical data
func (d *SequenceData) Equal(o *SequenceData) bool {
	return *d == *o
}

// ActiveCount counts active steps within the pattern length
func (d *SequenceData) ActiveCount() int {
	n := 0
	for i := 0; i < d.Length(); i++ {
		if d.Steps[i].Active {
			n++
		}
	}
	return n
}

// Length returns PatternLength forced into [1, MaxSteps]
func (d *SequenceData) Length() int {
	return clamp(d.PatternLength, 1, MaxSteps)
}

// Clamp forces every field into range. Loaders and Update call it.
func (d *SequenceData) Clamp() {
	for i := range d.Steps {
		d.Steps[i].Index = i
		d.Steps[i].Clamp()
	}
	d.PatternLength = d.Length()
	if d.Direction < Forward || d.Direction > Random {
		d.Direction = Forward
	}
	d.SetDivision(d.Division)
	d.SwingPercent = clamp(d.SwingPercent, MinSwing, MaxSwing)
	if d.Scale < 0 || int(d.Scale) >= len(scaleIntervals) {
		d.Scale = ScaleChromatic
	}
	d.RootNote = mod(d.RootNote, 12)
	d.OctaveShift = clamp(d.OctaveShift, MinOctaveShift, MaxOctaveShift)
	for i := range d.Tilt {
		d.Tilt[i] = clamp(d.Tilt[i], -MaxTilt, MaxTilt)
	}
}

// SetDivision keeps div in [1, 4*Quarter] pulses
func (d *SequenceData) SetDivision(div Division) {
	d.Division = Division(clamp(int(div), 1, 4*int(Quarter)))
}

// SetPatternLength clamps n into [1, MaxSteps]
func (d *SequenceData) SetPatternLength(n int) {
	d.PatternLength = clamp(n, 1, MaxSteps)
}

// SetSwing enables swing and sets its amount
func (d *SequenceData) SetSwing(enabled bool, percent int) {
	d.SwingEnabled = enabled
	d.SwingPercent = clamp(percent, MinSwing, MaxSwing)
}

func (d *SequenceData) SetOctaveShift(n int) {
	d.OctaveShift = clamp(n, MinOctaveShift, MaxOctaveShift)
}

// SetTilt sets bar position i (mod 16) to v, clamped to +/- MaxTilt
func (d *SequenceData) SetTilt(i, v int) {
	d.Tilt[mod(i, TiltPositions)] = clamp(v, -MaxTilt, MaxTilt)
}

// SetStep replaces step i, clamping its fields. Out-of-range indices are ignored.
func (d *SequenceData) SetStep(i int, s Step) {
	if i < 0 || i >= MaxSteps {
		return
	}
	s.Index = i
	s.Clamp()
	d.Steps[i] = s
}
