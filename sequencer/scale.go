package sequencer

import (
	"fmt"
	"strings"
)

// ScaleType selects one of the built-in scales
type ScaleType int

const (
	ScaleChromatic ScaleType = iota
	ScaleMajor
	ScaleMinor
	ScalePentatonic
	ScaleDorian
	ScalePhrygian
	ScaleLydian
	ScaleMixolydian
	ScaleLocrian
	ScaleHarmonicMinor
	ScaleMelodicMinor
	ScaleBlues
	ScaleWholeTone
	ScaleDimHalfWhole
	ScaleDimWholeHalf
	ScaleHungarianMinor
	ScaleDoubleHarmonic
	ScalePhrygianDominant
	ScaleHirajoshi
	ScaleInSen
	ScaleYo
	ScaleBhairavi
)

// Pitch classes above the root, ascending, within one octave
var scaleIntervals = [][]int{
	ScaleChromatic:        {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	ScaleMajor:            {0, 2, 4, 5, 7, 9, 11},
	ScaleMinor:            {0, 2, 3, 5, 7, 8, 10},
	ScalePentatonic:       {0, 2, 4, 7, 9},
	ScaleDorian:           {0, 2, 3, 5, 7, 9, 10},
	ScalePhrygian:         {0, 1, 3, 5, 7, 8, 10},
	ScaleLydian:           {0, 2, 4, 6, 7, 9, 11},
	ScaleMixolydian:       {0, 2, 4, 5, 7, 9, 10},
	ScaleLocrian:          {0, 1, 3, 5, 6, 8, 10},
	ScaleHarmonicMinor:    {0, 2, 3, 5, 7, 8, 11},
	ScaleMelodicMinor:     {0, 2, 3, 5, 7, 9, 11},
	ScaleBlues:            {0, 3, 5, 6, 7, 10},
	ScaleWholeTone:        {0, 2, 4, 6, 8, 10},
	ScaleDimHalfWhole:     {0, 1, 3, 4, 6, 7, 9, 10},
	ScaleDimWholeHalf:     {0, 2, 3, 5, 6, 8, 9, 11},
	ScaleHungarianMinor:   {0, 2, 3, 6, 7, 8, 11},
	ScaleDoubleHarmonic:   {0, 1, 4, 5, 7, 8, 11},
	ScalePhrygianDominant: {0, 1, 4, 5, 7, 8, 10},
	ScaleHirajoshi:        {0, 2, 3, 7, 8},
	ScaleInSen:            {0, 1, 5, 7, 10},
	ScaleYo:               {0, 2, 5, 7, 9},
	ScaleBhairavi:         {0, 1, 3, 5, 7, 8, 10},
}

var scaleNames = []string{
	"Chromatic", "Major", "Minor", "Pentatonic",
	"Dorian", "Phrygian", "Lydian", "Mixolydian", "Locrian",
	"Harm Min", "Mel Min", "Blues", "Whole Tone",
	"Dim H-W", "Dim W-H", "Hungarian", "Dbl Harm",
	"Phryg Dom", "Hirajoshi", "In Sen", "Yo", "Bhairavi",
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (s ScaleType) String() string {
	if s < 0 || int(s) >= len(scaleNames) {
		return scaleNames[ScaleChromatic]
	}
	return scaleNames[s]
}

// Intervals returns the scale's pitch classes relative to the root
func (s ScaleType) Intervals() []int {
	if s < 0 || int(s) >= len(scaleIntervals) {
		return scaleIntervals[ScaleChromatic]
	}
	return scaleIntervals[s]
}

// ScaleNames lists every scale in ScaleType order
func ScaleNames() []string {
	out := make([]string, len(scaleNames))
	copy(out, scaleNames)
	return out
}

// ParseScale matches a display name, ignoring case, spaces and dashes
func ParseScale(name string) (ScaleType, error) {
	want := normalizeName(name)
	for i, n := range scaleNames {
		if normalizeName(n) == want {
			return ScaleType(i), nil
		}
	}
	return ScaleChromatic, fmt.Errorf("unknown scale %q", name)
}

func normalizeName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

// ParseRoot accepts a note name (C, F#, Bb) or a pitch class number
func ParseRoot(s string) (int, error) {
	s = strings.TrimSpace(s)
	for i, n := range noteNames {
		if strings.EqualFold(s, n) {
			return i, nil
		}
	}
	if len(s) == 2 && (s[1] == 'b' || s[1] == 'B') {
		for i, n := range noteNames {
			if strings.EqualFold(s[:1], n) {
				return mod(i-1, 12), nil
			}
		}
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
		return mod(n, 12), nil
	}
	return 0, fmt.Errorf("unknown root %q", s)
}

// NoteName renders a MIDI note as name plus octave, C4 = 60
func NoteName(note int) string {
	return fmt.Sprintf("%s%d", noteNames[mod(note, 12)], note/12-1)
}

// Quantize snaps note to the nearest tone of scale rooted at root. Ties go
// down.
func Quantize(note int, scale ScaleType, root int) int {
	intervals := scale.Intervals()
	pc := mod(note-root, 12)
	best, bestDist := 0, 13
	for _, iv := range intervals {
		for _, cand := range []int{iv - 12, iv, iv + 12} {
			dist := cand - pc
			if dist < 0 {
				dist = -dist
			}
			if dist < bestDist || (dist == bestDist && cand < best) {
				best, bestDist = cand, dist
			}
		}
	}
	return note - pc + best
}

// ScaleDegreeShift moves an in-scale note by shift scale degrees. A note off
// the scale is quantized first.
func ScaleDegreeShift(note, shift int, scale ScaleType, root int) int {
	if shift == 0 {
		return note
	}
	intervals := scale.Intervals()
	n := len(intervals)
	note = Quantize(note, scale, root)

	rel := note - root
	octave := floorDiv(rel, 12)
	pc := rel - octave*12
	idx := 0
	for i, iv := range intervals {
		if iv == pc {
			idx = i
			break
		}
	}

	degree := octave*n + idx + shift
	return root + floorDiv(degree, n)*12 + intervals[mod(degree, n)]
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
