package midi

import (
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/ftag"
)

// NumChannels is the number of MIDI channels on one port
const NumChannels = 16

// DefaultDrumChannel is MIDI channel 10, zero-based
const DefaultDrumChannel = 9

// KindExhausted tags errors for a resource with nothing left to hand out
const KindExhausted ftag.Kind = "EXHAUSTED"

var (
	ErrNoChannelAvailable = fault.New("no melodic channel available", ftag.With(KindExhausted))
	ErrChannelInUse       = fault.New("channel already in use", ftag.With(ftag.AlreadyExists))
	ErrDrumChannel        = fault.New("drum channel cannot be reserved", ftag.With(ftag.InvalidArgument))
	ErrInvalidChannel     = fault.New("channel out of range", ftag.With(ftag.InvalidArgument))
)

// ChannelManager hands out the 16 MIDI channels to sequencers. The table
// tracks booleans, not reference counts: double release is a no-op and double
// reserve is rejected. Channels are zero-based (0-15).
type ChannelManager struct {
	mu          sync.Mutex
	inUse       [NumChannels]bool
	drumChannel int
}

// NewChannelManager creates an allocator with drumChannel (0-15) excluded from
// melodic allocation. Out-of-range values fall back to DefaultDrumChannel.
func NewChannelManager(drumChannel int) *ChannelManager {
	if drumChannel < 0 || drumChannel >= NumChannels {
		drumChannel = DefaultDrumChannel
	}
	return &ChannelManager{drumChannel: drumChannel}
}

// DrumChannel returns the reserved drum channel
func (c *ChannelManager) DrumChannel() int {
	return c.drumChannel
}

// GetNextAvailableMelodicChannel marks and returns the lowest free non-drum
// channel, or -1 and ErrNoChannelAvailable
func (c *ChannelManager) GetNextAvailableMelodicChannel() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ch := 0; ch < NumChannels; ch++ {
		if ch == c.drumChannel || c.inUse[ch] {
			continue
		}
		c.inUse[ch] = true
		return ch, nil
	}
	return -1, ErrNoChannelAvailable
}

// ReserveChannel claims ch if it is free and not the drum channel
func (c *ChannelManager) ReserveChannel(ch int) error {
	if ch < 0 || ch >= NumChannels {
		return ErrInvalidChannel
	}
	if ch == c.drumChannel {
		return ErrDrumChannel
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inUse[ch] {
		return ErrChannelInUse
	}
	c.inUse[ch] = true
	return nil
}

// ReleaseChannel frees ch. Releasing a free or invalid channel does nothing.
func (c *ChannelManager) ReleaseChannel(ch int) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	c.mu.Lock()
	c.inUse[ch] = false
	c.mu.Unlock()
}

// ReleaseAll frees every channel
func (c *ChannelManager) ReleaseAll() {
	c.mu.Lock()
	c.inUse = [NumChannels]bool{}
	c.mu.Unlock()
}

// InUse reports whether ch is currently claimed
func (c *ChannelManager) InUse(ch int) bool {
	if ch < 0 || ch >= NumChannels {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inUse[ch]
}

// Available returns how many melodic channels are still free
func (c *ChannelManager) Available() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for ch := 0; ch < NumChannels; ch++ {
		if ch != c.drumChannel && !c.inUse[ch] {
			n++
		}
	}
	return n
}

// ChannelForSequencerIndex maps a sequencer index onto the melodic channels
// in order, wrapping after 15. It ignores the in-use table and reserves
// nothing.
func (c *ChannelManager) ChannelForSequencerIndex(idx int) int {
	const melodic = NumChannels - 1
	idx %= melodic
	if idx < 0 {
		idx += melodic
	}
	if idx >= c.drumChannel {
		idx++
	}
	return idx
}
