package midi

import (
	"errors"
	"sync"
	"testing"

	"github.com/Southclaws/fault/ftag"
)

func TestReserveDrumChannelAlwaysFails(t *testing.T) {
	cm := NewChannelManager(DefaultDrumChannel)
	for i := 0; i < 3; i++ {
		if err := cm.ReserveChannel(DefaultDrumChannel); !errors.Is(err, ErrDrumChannel) {
			t.Fatalf("ReserveChannel(drum) = %v, want ErrDrumChannel", err)
		}
	}
	cm.ReleaseChannel(DefaultDrumChannel)
	if err := cm.ReserveChannel(DefaultDrumChannel); !errors.Is(err, ErrDrumChannel) {
		t.Fatalf("ReserveChannel(drum) after release = %v, want ErrDrumChannel", err)
	}
}

func TestReserveReleaseCycle(t *testing.T) {
	cm := NewChannelManager(DefaultDrumChannel)
	if err := cm.ReserveChannel(3); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := cm.ReserveChannel(3); !errors.Is(err, ErrChannelInUse) {
		t.Fatalf("second reserve = %v, want ErrChannelInUse", err)
	}
	cm.ReleaseChannel(3)
	cm.ReleaseChannel(3) // idempotent
	if cm.InUse(3) {
		t.Fatal("channel 3 still in use after release")
	}
	if err := cm.ReserveChannel(3); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestReserveInvalidChannel(t *testing.T) {
	cm := NewChannelManager(DefaultDrumChannel)
	for _, ch := range []int{-1, 16, 100} {
		if err := cm.ReserveChannel(ch); !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("ReserveChannel(%d) = %v, want ErrInvalidChannel", ch, err)
		}
	}
}

func TestNextAvailableSkipsDrumAndExhausts(t *testing.T) {
	cm := NewChannelManager(DefaultDrumChannel)
	seen := map[int]bool{}
	for i := 0; i < NumChannels-1; i++ {
		ch, err := cm.GetNextAvailableMelodicChannel()
		if err != nil {
			t.Fatalf("allocation %d failed: %v", i, err)
		}
		if ch == DefaultDrumChannel {
			t.Fatal("drum channel handed out for melodic use")
		}
		if seen[ch] {
			t.Fatalf("channel %d handed out twice", ch)
		}
		seen[ch] = true
	}
	ch, err := cm.GetNextAvailableMelodicChannel()
	if !errors.Is(err, ErrNoChannelAvailable) || ch != -1 {
		t.Fatalf("exhausted allocation = (%d, %v), want (-1, ErrNoChannelAvailable)", ch, err)
	}
	if cm.Available() != 0 {
		t.Fatalf("Available = %d, want 0", cm.Available())
	}

	cm.ReleaseChannel(4)
	ch, err = cm.GetNextAvailableMelodicChannel()
	if err != nil || ch != 4 {
		t.Fatalf("after release = (%d, %v), want (4, nil)", ch, err)
	}
}

func TestChannelForSequencerIndex(t *testing.T) {
	cm := NewChannelManager(DefaultDrumChannel)
	tests := []struct{ idx, want int }{
		{0, 0}, {8, 8}, {9, 10}, {14, 15}, {15, 0}, {24, 10}, {-1, 15},
	}
	for _, tt := range tests {
		if got := cm.ChannelForSequencerIndex(tt.idx); got != tt.want {
			t.Errorf("ChannelForSequencerIndex(%d) = %d, want %d", tt.idx, got, tt.want)
		}
	}
	// Mapping does not reserve
	if cm.InUse(0) {
		t.Error("ChannelForSequencerIndex reserved a channel")
	}
	// and does not depend on the table
	cm.ReserveChannel(0)
	if got := cm.ChannelForSequencerIndex(0); got != 0 {
		t.Errorf("mapping changed after reserve: %d", got)
	}
}

func TestConcurrentAllocationIsExclusive(t *testing.T) {
	cm := NewChannelManager(DefaultDrumChannel)
	var wg sync.WaitGroup
	results := make(chan int, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ch, err := cm.GetNextAvailableMelodicChannel(); err == nil {
				results <- ch
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int]bool{}
	for ch := range results {
		if seen[ch] {
			t.Fatalf("channel %d allocated twice", ch)
		}
		seen[ch] = true
	}
	if len(seen) != NumChannels-1 {
		t.Fatalf("allocated %d channels, want %d", len(seen), NumChannels-1)
	}
}

func TestChannelErrorKinds(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want ftag.Kind
	}{
		{ErrNoChannelAvailable, KindExhausted},
		{ErrChannelInUse, ftag.AlreadyExists},
		{ErrDrumChannel, ftag.InvalidArgument},
		{ErrInvalidChannel, ftag.InvalidArgument},
	} {
		if got := ftag.Get(tt.err); got != tt.want {
			t.Errorf("ftag.Get(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
