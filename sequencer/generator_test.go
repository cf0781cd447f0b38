package sequencer

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

func TestEuclid(t *testing.T) {
	tests := []struct {
		steps, hits, rotation int
		want                  string
	}{
		{8, 3, 0, "X..X..X."},
		{8, 3, 1, ".X..X..X"},
		{8, 3, 8, "X..X..X."},
		{8, 3, -1, "..X..X.X"},
		{8, 5, 0, "X.XX.XX."},
		{4, 1, 0, "X..."},
		{16, 4, 0, "X...X...X...X..."},
		{5, 0, 0, "....."},
		{4, 4, 0, "XXXX"},
		{4, 9, 0, "XXXX"},
		{2, 1, 0, "X."},
		{13, 5, 0, "X..X.X..X.X.."},
	}
	for _, tt := range tests {
		got := BoolPattern(Euclid(tt.steps, tt.hits, tt.rotation))
		if got != tt.want {
			t.Errorf("E(%d,%d,%d) = %s, want %s", tt.steps, tt.hits, tt.rotation, got, tt.want)
		}
	}
}

func TestEuclidHitCount(t *testing.T) {
	for steps := 1; steps <= 32; steps++ {
		for hits := 0; hits <= steps; hits++ {
			p := Euclid(steps, hits, 0)
			if len(p) != steps {
				t.Fatalf("E(%d,%d) has length %d", steps, hits, len(p))
			}
			n := 0
			for _, on := range p {
				if on {
					n++
				}
			}
			if n != hits {
				t.Fatalf("E(%d,%d) has %d hits", steps, hits, n)
			}
			if hits > 0 && !p[0] {
				t.Fatalf("E(%d,%d) does not start on a hit", steps, hits)
			}
		}
	}
}

func TestEuclideanGeneratorWidth(t *testing.T) {
	d := NewSequenceData()
	g := &EuclideanGenerator{Steps: 8, Hits: 3, Width: 1}
	next, err := Apply(d, g)
	if err != nil {
		t.Fatal(err)
	}
	if got := Pattern(&next); got != "XX.XX.XX" {
		t.Fatalf("width 1 = %s", got)
	}

	g.Width = 5
	next, _ = Apply(d, g)
	if got := Pattern(&next); got != "XXXXXXXX" {
		t.Fatalf("width 5 = %s", got)
	}
}

func TestEuclideanGeneratorSetsLength(t *testing.T) {
	d := NewSequenceData()
	d.Steps[2].Note = 72
	next, err := Apply(d, &EuclideanGenerator{Steps: 12, Hits: 4})
	if err != nil {
		t.Fatal(err)
	}
	if next.PatternLength != 12 {
		t.Fatalf("PatternLength = %d", next.PatternLength)
	}
	if next.Steps[2].Note != 72 {
		t.Fatalf("existing note lost: %d", next.Steps[2].Note)
	}

	next, _ = Apply(d, &EuclideanGenerator{Steps: 500, Hits: 3})
	if next.PatternLength != MaxSteps {
		t.Fatalf("PatternLength = %d, want %d", next.PatternLength, MaxSteps)
	}
}

func TestRandomGeneratorDensityAndRanges(t *testing.T) {
	for _, tt := range []struct {
		octaves, density, want int
	}{
		{1, 50, 8},
		{2, 100, 16},
		{4, 1, 1},
		{3, 0, 0},
		{1, 25, 4},
	} {
		d := NewSequenceData()
		g := NewRandomGenerator(rand.New(rand.NewSource(42)), tt.octaves, tt.density)
		next, err := Apply(d, g)
		if err != nil {
			t.Fatal(err)
		}
		if n := next.ActiveCount(); n != tt.want {
			t.Errorf("density %d: %d active, want %d", tt.density, n, tt.want)
		}

		base := DefaultNote - 6*tt.octaves
		for i := 0; i < next.Length(); i++ {
			st := next.Steps[i]
			if !st.Active {
				continue
			}
			if st.Note < base || st.Note >= base+12*tt.octaves {
				t.Errorf("note %d outside [%d,%d)", st.Note, base, base+12*tt.octaves)
			}
			if st.Velocity < 70 || st.Velocity > 100 {
				t.Errorf("velocity %d", st.Velocity)
			}
			if st.Gate < 50 || st.Gate > 100 {
				t.Errorf("gate %d", st.Gate)
			}
			if st.Probability != 100 && (st.Probability < 50 || st.Probability > 100) {
				t.Errorf("probability %d", st.Probability)
			}
		}
		for _, v := range next.Tilt {
			if v < -3 || v > 3 {
				t.Errorf("tilt %d", v)
			}
		}
	}
}

func TestRandomGeneratorCentresOnMiddleC(t *testing.T) {
	for octaves := 1; octaves <= 4; octaves++ {
		t.Run(fmt.Sprintf("octaves=%d", octaves), func(t *testing.T) {
			g := NewRandomGenerator(rand.New(rand.NewSource(7)), octaves, 100)
			lo, hi := DefaultNote-6*octaves, DefaultNote+6*octaves
			minNote, maxNote, sum, n := 127, 0, 0, 0
			for run := 0; run < 500; run++ {
				next, err := Apply(NewSequenceData(), g)
				if err != nil {
					t.Fatal(err)
				}
				for i := 0; i < next.Length(); i++ {
					note := next.Steps[i].Note
					if note < lo || note >= hi {
						t.Fatalf("note %d outside [%d,%d)", note, lo, hi)
					}
					minNote, maxNote = min(minNote, note), max(maxNote, note)
					sum += note
					n++
				}
			}
			if minNote != lo || maxNote != hi-1 {
				t.Errorf("range [%d,%d], want [%d,%d]", minNote, maxNote, lo, hi-1)
			}
			// uniform over [lo, hi) has mean 59.5
			if mean := float64(sum) / float64(n); mean < 58.5 || mean > 60.5 {
				t.Errorf("mean note %.2f, want about 60", mean)
			}
		})
	}
}

func TestRandomGeneratorClampsInputs(t *testing.T) {
	g := NewRandomGenerator(rand.New(rand.NewSource(1)), 9, 300)
	if g.OctaveRange != 4 || g.Density != 100 {
		t.Fatalf("got range %d density %d", g.OctaveRange, g.Density)
	}
}

func TestRandomGeneratorIsDeterministicPerSeed(t *testing.T) {
	d := NewSequenceData()
	a, _ := Apply(d, NewRandomGenerator(rand.New(rand.NewSource(9)), 2, 50))
	b, _ := Apply(d, NewRandomGenerator(rand.New(rand.NewSource(9)), 2, 50))
	if !a.Equal(&b) {
		t.Fatal("same seed produced different patterns")
	}
}

type failingGenerator struct{}

func (failingGenerator) Generate(d *SequenceData) error {
	d.Steps[0].Active = true
	d.PatternLength = 3
	return errors.New("boom")
}

func TestApplyIsAllOrNothing(t *testing.T) {
	d := NewSequenceData()
	before := d
	got, err := Apply(d, failingGenerator{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !got.Equal(&before) || !d.Equal(&before) {
		t.Fatal("failed generator leaked changes")
	}

	if _, err := Apply(d, &RandomGenerator{Density: 50}); !errors.Is(err, ErrNoRand) {
		t.Fatalf("nil rand err = %v", err)
	}
}

func TestFillGenerator(t *testing.T) {
	tests := []struct {
		typ   FillType
		start int
		want  string
	}{
		{FillAll, 0, "XXXXXXXX"},
		{FillAll, 4, "X...XXXX"},
		{FillEveryOther, 0, "X.X.X.X."},
		{FillEveryOther, 3, "X..X.X.X"},
		{FillEvery4th, 0, "X...X..."},
		{FillEvery4th, 1, "XX...X.."},
		{FillDecay, 6, "X.....XX"},
	}
	for _, tt := range tests {
		d := NewSequenceData()
		d.SetPatternLength(8)
		d.Steps[0].Active = true // outside the fill when start > 0
		next, err := Apply(d, &FillGenerator{Type: tt.typ, StartStep: tt.start})
		if err != nil {
			t.Fatal(err)
		}
		if got := Pattern(&next); got != tt.want {
			t.Errorf("%v from %d = %s, want %s", tt.typ, tt.start, got, tt.want)
		}
	}
}

func TestFillDecayRampsDown(t *testing.T) {
	d := NewSequenceData()
	next, err := Apply(d, &FillGenerator{Type: FillDecay})
	if err != nil {
		t.Fatal(err)
	}
	n := next.Length()
	if next.Steps[0].Velocity != fillDecayStart || next.Steps[n-1].Velocity != fillDecayEnd {
		t.Fatalf("ramp = %d..%d", next.Steps[0].Velocity, next.Steps[n-1].Velocity)
	}
	for i := 1; i < n; i++ {
		if next.Steps[i].Velocity > next.Steps[i-1].Velocity {
			t.Fatalf("velocity rises at %d", i)
		}
	}
	// geometric: the first drop is the largest
	if next.Steps[0].Velocity-next.Steps[1].Velocity < next.Steps[n-2].Velocity-next.Steps[n-1].Velocity {
		t.Fatal("ramp is not geometric")
	}
}

func TestParseFillType(t *testing.T) {
	for _, ft := range []FillType{FillAll, FillEveryOther, FillEvery4th, FillDecay} {
		got, err := ParseFillType(ft.String())
		if err != nil || got != ft {
			t.Errorf("ParseFillType(%q) = %v, %v", ft.String(), got, err)
		}
	}
	if _, err := ParseFillType("most"); err == nil {
		t.Error("expected error")
	}
}
