package sequencer

import (
	"math/rand"
	"time"

	"go-beatgen/bus"
)

// Next returns the cursor after c for a pattern of length n. up is the
// bounce flag (true while moving towards n-1); the returned flag replaces it.
func (dir Direction) Next(c, n int, up bool, rng *rand.Rand) (int, bool) {
	if n <= 1 {
		return 0, up
	}
	switch dir {
	case Backward:
		return mod(c-1, n), up
	case Bounce:
		if up {
			if c+1 > n-1 {
				return max(c-1, 0), false
			}
			return c + 1, true
		}
		if c-1 < 0 {
			return min(c+1, n-1), true
		}
		return c - 1, false
	case Random:
		if rng == nil {
			return mod(c+1, n), up
		}
		return rng.Intn(n), up
	default:
		return mod(c+1, n), up
	}
}

// DefaultBPM is used when a pulse carries no tempo
const DefaultBPM = 120.0

// StepDuration is the nominal length of one step at bpm
func StepDuration(div Division, bpm float64) time.Duration {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	if div < 1 {
		div = Sixteenth
	}
	return time.Duration(float64(div) * float64(time.Minute) / (bpm * bus.PPQ))
}

// SwingOffset delays odd steps by up to half a step. Zero when disabled, at
// 0 percent, or on even steps.
func SwingOffset(cursor int, stepDur time.Duration, enabled bool, percent int) time.Duration {
	percent = clamp(percent, MinSwing, MaxSwing)
	if !enabled || percent == 0 || cursor%2 == 0 {
		return 0
	}
	return time.Duration(int64(stepDur) * int64(percent) / 200)
}

// NoteTiming returns when a step's note starts (relative to the pulse) and
// how long it is held
func NoteTiming(st Step, cursor int, d *SequenceData, bpm float64) (delay, duration time.Duration) {
	stepDur := StepDuration(d.Division, bpm)
	delay = time.Duration(st.Nudge)*time.Millisecond + SwingOffset(cursor, stepDur, d.SwingEnabled, d.SwingPercent)
	if delay < 0 {
		delay = 0
	}
	if st.Gate > 0 {
		duration = stepDur * time.Duration(st.Gate) / 100
		if duration < time.Millisecond {
			duration = time.Millisecond
		}
	}
	return delay, duration
}

// EffectiveNote applies octave shift, tilt and quantize to a step's note.
// Tilt counts scale degrees when quantizing and semitones otherwise.
func EffectiveNote(st Step, d *SequenceData, tilt int) int {
	raw := st.Note + d.OctaveShift*12
	var note int
	if d.QuantizeEnabled {
		note = ScaleDegreeShift(Quantize(raw, d.Scale, d.RootNote), tilt, d.Scale, d.RootNote)
	} else {
		note = raw + tilt
	}
	return clamp(note, 0, 127)
}
