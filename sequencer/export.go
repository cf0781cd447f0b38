package sequencer

import (
	"io"
	"math"
	"math/rand"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ExportResolution is the SMF tick resolution, ticks per quarter note
const ExportResolution = 960

type smfEvent struct {
	tick uint32
	off  bool
	msg  gomidi.Message
}

// ExportSMF writes one cycle of d as a two-track standard MIDI file: a tempo
// track and a note track on channel. Probability and direction are resolved
// with rng (Forward needs none); swing and nudge are kept.
func ExportSMF(w io.Writer, d SequenceData, bpm float64, channel int, rng *rand.Rand) error {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	if rng == nil {
		rng = NewRand(0)
	}
	ch := uint8(clamp(channel, 0, 15))
	d.Clamp()

	ticksPerPulse := float64(ExportResolution) / 24
	stepTicks := uint32(float64(d.Division) * ticksPerPulse)
	stepDur := StepDuration(d.Division, bpm)
	ticksPerSecond := float64(ExportResolution) * bpm / 60

	var events []smfEvent
	var head playhead
	head.reset()
	n := d.Length()
	for i := 0; i < n; i++ {
		cur := head.cursor
		st := d.Steps[cur]
		start := uint32(i) * stepTicks
		if st.Active && rng.Intn(100) < st.Probability {
			delay, dur := NoteTiming(st, cur, &d, bpm)
			on := start + uint32(math.Round(delay.Seconds()*ticksPerSecond))
			length := uint32(float64(stepTicks) * float64(dur) / float64(stepDur))
			if length == 0 {
				length = 1
			}
			note := uint8(EffectiveNote(st, &d, 0))
			events = append(events,
				smfEvent{tick: on, msg: gomidi.NoteOn(ch, note, uint8(st.Velocity))},
				smfEvent{tick: on + length, off: true, msg: gomidi.NoteOff(ch, note)},
			)
		}
		head.advance(&d, rng)
	}

	// note-offs first so repeated notes retrigger cleanly
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ExportResolution)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(bpm))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return fault.Wrap(err, fmsg.With("add tempo track"))
	}

	var notes smf.Track
	var last uint32
	for _, ev := range events {
		notes.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
	end := uint32(n) * stepTicks
	var tail uint32
	if end > last {
		tail = end - last
	}
	notes.Close(tail)
	if err := sm.Add(notes); err != nil {
		return fault.Wrap(err, fmsg.With("add note track"))
	}

	if _, err := sm.WriteTo(w); err != nil {
		return fault.Wrap(err, fmsg.With("write midi file"))
	}
	return nil
}
