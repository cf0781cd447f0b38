package sequencer

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
)

// ErrNoGenerator is returned by Regenerate when no generator is set
var ErrNoGenerator = errors.New("no generator set")

// regenerateAttempts bounds how often latch retries a generator that keeps
// producing the pattern it already has
const regenerateAttempts = 8

// pattern holds the current SequenceData snapshot. Readers Load it without
// locking; writers clone, edit and Store under editMu.
type pattern struct {
	data   atomic.Pointer[SequenceData]
	editMu sync.Mutex
	gen    Generator
}

func (p *pattern) init(d SequenceData) {
	d.Clamp()
	p.data.Store(&d)
}

func (p *pattern) load() *SequenceData {
	return p.data.Load()
}

// update applies fn to a copy of the current data and swaps it in. It
// reports whether anything changed.
func (p *pattern) update(fn func(d *SequenceData)) bool {
	p.editMu.Lock()
	defer p.editMu.Unlock()

	cur := p.data.Load()
	next := *cur
	fn(&next)
	next.Clamp()
	if next == *cur {
		return false
	}
	p.data.Store(&next)
	return true
}

func (p *pattern) replace(d SequenceData) {
	d.Clamp()
	p.editMu.Lock()
	p.data.Store(&d)
	p.editMu.Unlock()
}

func (p *pattern) setGenerator(g Generator) {
	p.editMu.Lock()
	p.gen = g
	p.editMu.Unlock()
}

func (p *pattern) generator() Generator {
	p.editMu.Lock()
	defer p.editMu.Unlock()
	return p.gen
}

// regenerate runs the generator until the result differs from the current
// pattern or attempts run out
func (p *pattern) regenerate() error {
	p.editMu.Lock()
	defer p.editMu.Unlock()

	if p.gen == nil {
		return ErrNoGenerator
	}
	cur := p.data.Load()
	var next SequenceData
	for i := 0; i < regenerateAttempts; i++ {
		var err error
		next, err = Apply(*cur, p.gen)
		if err != nil {
			return err
		}
		next.Clamp()
		if next != *cur {
			break
		}
	}
	p.data.Store(&next)
	return nil
}

// playhead walks one pattern
type playhead struct {
	cursor int
	up     bool
	played int // steps since the last completed cycle
}

func (h *playhead) reset() {
	*h = playhead{up: true}
}

// advance moves past the current step. It returns the new cursor and whether
// that step completed a cycle.
func (h *playhead) advance(d *SequenceData, rng *rand.Rand) (next int, cycle bool) {
	n := d.Length()
	h.cursor, h.up = d.Direction.Next(h.cursor, n, h.up, rng)
	h.played++
	if h.played >= n {
		h.played = 0
		cycle = true
	}
	return h.cursor, cycle
}

// fold keeps the cursor inside a pattern that shrank
func (h *playhead) fold(n int) {
	if h.cursor >= n {
		h.cursor = mod(h.cursor, n)
	}
}
