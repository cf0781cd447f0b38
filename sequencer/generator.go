package sequencer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// ErrNoRand is returned by generators built without a random source
var ErrNoRand = errors.New("generator has no random source")

// Generator fills a pattern. Callers go through Apply, so a failing
// generator never leaves a half-written pattern behind.
type Generator interface {
	Generate(d *SequenceData) error
}

// Apply runs g on a copy of d and returns the copy only on success
func Apply(d SequenceData, g Generator) (SequenceData, error) {
	next := d
	if err := g.Generate(&next); err != nil {
		return d, err
	}
	next.Clamp()
	return next, nil
}

// NewRand returns a source seeded from seed, or from the clock when seed is 0
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RandomGenerator scatters notes over the pattern
type RandomGenerator struct {
	OctaveRange int // 1-4
	Density     int // percent of steps made active
	Rand        *rand.Rand
}

// NewRandomGenerator clamps its inputs
func NewRandomGenerator(rng *rand.Rand, octaveRange, density int) *RandomGenerator {
	return &RandomGenerator{
		OctaveRange: clamp(octaveRange, 1, 4),
		Density:     clamp(density, 0, 100),
		Rand:        rng,
	}
}

func (g *RandomGenerator) Generate(d *SequenceData) error {
	if g.Rand == nil {
		return ErrNoRand
	}
	rng := g.Rand
	octaves := clamp(g.OctaveRange, 1, 4)
	density := clamp(g.Density, 0, 100)

	d.Clear()
	length := d.Length()

	k := int(math.Round(float64(length) * float64(density) / 100))
	if density > 0 && k < 1 {
		k = 1
	}

	picked := make([]bool, length)
	count := 0
	for tries := 0; count < k && tries < length*4; tries++ {
		i := rng.Intn(length)
		if picked[i] {
			continue
		}
		picked[i] = true
		count++
	}
	// Near saturation the random probe stalls; take the rest in order
	for i := 0; count < k && i < length; i++ {
		if !picked[i] {
			picked[i] = true
			count++
		}
	}

	// notes span [60-6k, 60+6k) for k octaves
	base := DefaultNote - 6*octaves
	for i, on := range picked {
		if !on {
			continue
		}
		st := &d.Steps[i]
		st.Active = true
		st.Note = base + rng.Intn(12*octaves)
		st.Velocity = 70 + rng.Intn(31)
		st.Gate = 50 + rng.Intn(51)
		st.Probability = 100
		if rng.Intn(100) < 30 {
			st.Probability = 50 + rng.Intn(51)
		}
	}

	for i := range d.Tilt {
		d.Tilt[i] = rng.Intn(7) - 3
	}
	return nil
}

// EuclideanGenerator spreads Hits evenly over Steps
type EuclideanGenerator struct {
	Steps    int
	Hits     int
	Rotation int // shifts the pattern right
	Width    int // off-steps after each hit that are also played
}

func (g *EuclideanGenerator) Generate(d *SequenceData) error {
	steps := clamp(g.Steps, 1, MaxSteps)
	pattern := Euclid(steps, g.Hits, g.Rotation)
	pattern = widen(pattern, g.Width)

	d.PatternLength = steps
	for i := 0; i < steps; i++ {
		st := &d.Steps[i]
		st.Active = pattern[i]
		if st.Velocity == 0 {
			st.Velocity = 100
		}
		if st.Gate == 0 {
			st.Gate = 50
		}
	}
	return nil
}

// Euclid returns the Bjorklund distribution of hits over steps, starting on
// a hit and then rotated right by rotation
func Euclid(steps, hits, rotation int) []bool {
	if steps < 1 {
		return nil
	}
	hits = clamp(hits, 0, steps)
	out := make([]bool, steps)
	switch {
	case hits == 0:
		return out
	case hits == steps:
		for i := range out {
			out[i] = true
		}
		return out
	}

	base := bjorklund(steps, hits)
	first := 0
	for i, on := range base {
		if on {
			first = i
			break
		}
	}
	for i := range base {
		out[mod(i+rotation, steps)] = base[mod(i+first, steps)]
	}
	return out
}

func bjorklund(steps, hits int) []bool {
	var counts []int
	remainders := []int{hits}
	divisor := steps - hits
	level := 0
	for {
		counts = append(counts, divisor/remainders[level])
		remainders = append(remainders, divisor%remainders[level])
		divisor = remainders[level]
		level++
		if remainders[level] <= 1 {
			break
		}
	}
	counts = append(counts, divisor)

	out := make([]bool, 0, steps)
	var build func(l int)
	build = func(l int) {
		switch l {
		case -1:
			out = append(out, false)
		case -2:
			out = append(out, true)
		default:
			for i := 0; i < counts[l]; i++ {
				build(l - 1)
			}
			if remainders[l] != 0 {
				build(l - 2)
			}
		}
	}
	build(level)
	return out
}

// widen turns up to w off-steps after each hit on, never past the next hit
func widen(p []bool, w int) []bool {
	if w <= 0 {
		return p
	}
	out := make([]bool, len(p))
	copy(out, p)
	n := len(p)
	for i, on := range p {
		if !on {
			continue
		}
		for j := 1; j <= w && j < n; j++ {
			k := (i + j) % n
			if p[k] {
				break
			}
			out[k] = true
		}
	}
	return out
}

// FillType selects a FillGenerator policy
type FillType int

const (
	FillAll FillType = iota
	FillEveryOther
	FillEvery4th
	FillDecay
)

var fillNames = []string{"all", "everyOther", "every4th", "decay"}

func (f FillType) String() string {
	if f < 0 || int(f) >= len(fillNames) {
		return "unknown"
	}
	return fillNames[f]
}

// ParseFillType accepts the names printed by String, case insensitive
func ParseFillType(s string) (FillType, error) {
	for i, name := range fillNames {
		if strings.EqualFold(s, name) {
			return FillType(i), nil
		}
	}
	return FillAll, fmt.Errorf("unknown fill type %q", s)
}

// Decay ramps velocity from fillDecayStart down to fillDecayEnd
const (
	fillDecayStart = 110
	fillDecayEnd   = 30
)

// FillGenerator rewrites the steps from StartStep to the end of the pattern
type FillGenerator struct {
	Type      FillType
	StartStep int
}

func (g *FillGenerator) Generate(d *SequenceData) error {
	if g.Type < FillAll || g.Type > FillDecay {
		return fmt.Errorf("unknown fill type %d", g.Type)
	}
	length := d.Length()
	start := clamp(g.StartStep, 0, length-1)
	span := length - start

	ratio := 1.0
	if span > 1 {
		ratio = math.Pow(float64(fillDecayEnd)/fillDecayStart, 1/float64(span-1))
	}

	for i := start; i < length; i++ {
		rel := i - start
		st := &d.Steps[i]
		switch g.Type {
		case FillAll:
			st.Active = true
		case FillEveryOther:
			st.Active = rel%2 == 0
		case FillEvery4th:
			st.Active = rel%4 == 0
		case FillDecay:
			st.Active = true
			st.Velocity = int(math.Round(fillDecayStart * math.Pow(ratio, float64(rel))))
		}
		if st.Active && st.Velocity == 0 {
			st.Velocity = 100
		}
	}
	return nil
}

// Pattern renders the active steps within the pattern length, X for a hit
func Pattern(d *SequenceData) string {
	return PatternOf(d.Steps[:d.Length()])
}

// PatternOf renders any step slice
func PatternOf(steps []Step) string {
	var b strings.Builder
	for _, st := range steps {
		if st.Active {
			b.WriteByte('X')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// BoolPattern renders a Euclid result
func BoolPattern(p []bool) string {
	var b strings.Builder
	for _, on := range p {
		if on {
			b.WriteByte('X')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
