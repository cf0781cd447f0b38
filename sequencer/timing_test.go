package sequencer

import (
	"math/rand"
	"testing"
	"time"
)

func TestDirectionNext(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		name   string
		dir    Direction
		cursor int
		up     bool
		want   int
		wantUp bool
	}{
		{"forward wraps", Forward, 7, true, 0, true},
		{"forward steps", Forward, 3, true, 4, true},
		{"backward wraps", Backward, 0, true, 7, true},
		{"backward steps", Backward, 5, true, 4, true},
		{"bounce reflects at top", Bounce, 7, true, 6, false},
		{"bounce reflects at bottom", Bounce, 0, false, 1, true},
		{"bounce climbs", Bounce, 3, true, 4, true},
		{"bounce falls", Bounce, 3, false, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, up := tt.dir.Next(tt.cursor, 8, tt.up, rng)
			if got != tt.want || up != tt.wantUp {
				t.Errorf("Next(%d) = %d,%v; want %d,%v", tt.cursor, got, up, tt.want, tt.wantUp)
			}
		})
	}
}

func TestDirectionRandomStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		c, _ := Random.Next(0, 8, true, rng)
		if c < 0 || c >= 8 {
			t.Fatalf("cursor %d out of range", c)
		}
		seen[c] = true
	}
	if len(seen) != 8 {
		t.Fatalf("visited %d of 8 steps", len(seen))
	}
}

func TestBounceFullCycle(t *testing.T) {
	c, up := 0, true
	var path []int
	for i := 0; i < 10; i++ {
		c, up = Bounce.Next(c, 4, up, nil)
		path = append(path, c)
	}
	want := []int{1, 2, 3, 2, 1, 0, 1, 2, 3, 2}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}
}

func TestSingleStepPatternStaysPut(t *testing.T) {
	for _, dir := range []Direction{Forward, Backward, Bounce, Random} {
		if c, _ := dir.Next(0, 1, true, rand.New(rand.NewSource(1))); c != 0 {
			t.Errorf("%v moved to %d", dir, c)
		}
	}
}

func TestStepDuration(t *testing.T) {
	if d := StepDuration(Sixteenth, 120); d != 125*time.Millisecond {
		t.Errorf("1/16 at 120 = %v", d)
	}
	if d := StepDuration(Quarter, 60); d != time.Second {
		t.Errorf("1/4 at 60 = %v", d)
	}
	if d := StepDuration(Sixteenth, 0); d != 125*time.Millisecond {
		t.Errorf("zero bpm should fall back to 120: %v", d)
	}
}

func TestSwingZeroPercentIsZero(t *testing.T) {
	stepDur := StepDuration(Sixteenth, 120)
	for cursor := 0; cursor < MaxSteps; cursor++ {
		if off := SwingOffset(cursor, stepDur, true, 0); off != 0 {
			t.Fatalf("step %d offset %v at 0%%", cursor, off)
		}
	}
}

func TestSwingOddStepsMonotonic(t *testing.T) {
	stepDur := StepDuration(Sixteenth, 120)
	for _, cursor := range []int{1, 3, 15} {
		prev := time.Duration(0)
		for p := 1; p <= MaxSwing; p++ {
			off := SwingOffset(cursor, stepDur, true, p)
			if off <= 0 {
				t.Fatalf("step %d at %d%%: offset %v not positive", cursor, p, off)
			}
			if off <= prev {
				t.Fatalf("step %d: offset not increasing at %d%% (%v <= %v)", cursor, p, off, prev)
			}
			prev = off
		}
		if prev != stepDur/2 {
			t.Fatalf("max swing = %v, want half a step %v", prev, stepDur/2)
		}
	}
}

func TestSwingEvenStepsAndDisabled(t *testing.T) {
	stepDur := StepDuration(Sixteenth, 120)
	if off := SwingOffset(2, stepDur, true, 80); off != 0 {
		t.Errorf("even step offset %v", off)
	}
	if off := SwingOffset(1, stepDur, false, 80); off != 0 {
		t.Errorf("disabled swing offset %v", off)
	}
}

func TestNoteTiming(t *testing.T) {
	d := NewSequenceData()
	d.SetSwing(true, 50)
	st := NewStep(1)
	st.Gate = 50
	st.Nudge = 10

	delay, dur := NoteTiming(st, 1, &d, 120)
	if want := 10*time.Millisecond + 31250*time.Microsecond; delay != want {
		t.Errorf("delay = %v, want %v", delay, want)
	}
	if dur != 62500*time.Microsecond {
		t.Errorf("duration = %v", dur)
	}

	st.Nudge = -MaxNudge
	delay, _ = NoteTiming(st, 0, &d, 120)
	if delay != 0 {
		t.Errorf("negative delay not clamped: %v", delay)
	}

	st.Gate = 0
	if _, dur = NoteTiming(st, 0, &d, 120); dur != 0 {
		t.Errorf("zero gate duration = %v", dur)
	}
	st.Gate = 1
	if _, dur = NoteTiming(st, 0, &d, 300); dur < time.Millisecond {
		t.Errorf("tiny gate duration = %v", dur)
	}
}

func TestEffectiveNote(t *testing.T) {
	d := NewSequenceData()
	st := NewStep(0)
	st.Note = 61

	if n := EffectiveNote(st, &d, 0); n != 61 {
		t.Errorf("plain = %d", n)
	}
	d.SetOctaveShift(1)
	if n := EffectiveNote(st, &d, 2); n != 75 {
		t.Errorf("octave+tilt semitones = %d, want 75", n)
	}

	d.SetOctaveShift(0)
	d.QuantizeEnabled = true
	d.Scale = ScaleMajor
	if n := EffectiveNote(st, &d, 0); n != 60 {
		t.Errorf("quantized = %d, want 60", n)
	}
	if n := EffectiveNote(st, &d, 2); n != 64 {
		t.Errorf("quantized + 2 degrees = %d, want 64", n)
	}

	st.Note = 127
	d.SetOctaveShift(MaxOctaveShift)
	d.QuantizeEnabled = false
	if n := EffectiveNote(st, &d, 7); n != 127 {
		t.Errorf("clamp high = %d", n)
	}
	st.Note = 0
	d.SetOctaveShift(MinOctaveShift)
	if n := EffectiveNote(st, &d, -7); n != 0 {
		t.Errorf("clamp low = %d", n)
	}
}
