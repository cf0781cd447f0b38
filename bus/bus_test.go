package bus

import (
	"sync"
	"testing"
)

func TestPublishReachesAllSubscribersInOrder(t *testing.T) {
	b := New[int]("test")
	var got []string
	b.Subscribe(func(v int) { got = append(got, "a") })
	b.Subscribe(func(v int) { got = append(got, "b") })
	b.Subscribe(func(v int) { got = append(got, "c") })

	b.Publish(1)

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %v, want [a b c]", got)
	}
}

func TestPanicInHandlerIsIsolated(t *testing.T) {
	b := New[Pulse]("timing")
	delivered := 0
	b.Subscribe(func(Pulse) { panic("boom") })
	b.Subscribe(func(Pulse) { delivered++ })

	b.Publish(Pulse{Tick: 1})
	b.Publish(Pulse{Tick: 2})

	if delivered != 2 {
		t.Fatalf("delivered = %d, want 2", delivered)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New[int]("test")
	count := 0
	sub := b.Subscribe(func(int) { count++ })
	b.Publish(1)
	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Publish(2)

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d, want 0", b.Len())
	}
}

func TestSubscribeChanDropsWhenFull(t *testing.T) {
	b := New[int]("test")
	ch, sub := b.SubscribeChan(2)
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		b.Publish(i) // must not block
	}
	if len(ch) != 2 {
		t.Fatalf("len(ch) = %d, want 2", len(ch))
	}
	if v := <-ch; v != 0 {
		t.Errorf("first = %d, want 0", v)
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	b := New[int]("test")
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(func(int) {
				mu.Lock()
				total++
				mu.Unlock()
			})
			for j := 0; j < 100; j++ {
				b.Publish(j)
			}
			sub.Unsubscribe()
		}()
	}
	wg.Wait()
	if total == 0 {
		t.Fatal("no events delivered")
	}
}

func TestPulseAt(t *testing.T) {
	tests := []struct {
		tick            int64
		beat, bar, part int64
	}{
		{0, 0, 0, 0},
		{23, 0, 0, 0},
		{24, 1, 0, 0},
		{96, 4, 1, 0},
		{96 * 16, 64, 16, 1},
	}
	for _, tt := range tests {
		p := PulseAt(tt.tick, 120, 4, 16)
		if p.Beat != tt.beat || p.Bar != tt.bar || p.Part != tt.part {
			t.Errorf("PulseAt(%d) = %+v, want beat=%d bar=%d part=%d", tt.tick, p, tt.beat, tt.bar, tt.part)
		}
	}
}

func TestCommandSwitch(t *testing.T) {
	cmds := []Command{
		PatternUpdated{From: "seq", Sequencer: 1},
		ScaleChanged{From: "ui", Sequencer: AllSequencers, Scale: "Minor", Root: 2},
		TiltChanged{From: "ui", Sequencer: 0, Bar: 3, Value: -2},
		AllNotesOff{From: "ui"},
	}
	kinds := map[string]int{}
	for _, c := range cmds {
		switch c.(type) {
		case PatternUpdated:
			kinds["pattern"]++
		case ScaleChanged:
			kinds["scale"]++
		case TiltChanged:
			kinds["tilt"]++
		case AllNotesOff:
			kinds["panic"]++
		}
	}
	if len(kinds) != 4 {
		t.Fatalf("kinds = %v", kinds)
	}
	if cmds[1].Sender() != "ui" {
		t.Errorf("Sender = %q, want ui", cmds[1].Sender())
	}
	if !Targets(AllSequencers, 5) || Targets(2, 5) || !Targets(5, 5) {
		t.Error("Targets mismatch")
	}
}
