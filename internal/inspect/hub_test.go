package inspect

import "testing"

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish("tick", 3)
	ev := <-ch
	if ev.Phase != "tick" || ev.Time != 3 {
		t.Fatalf("got %+v, want {tick 3}", ev)
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBacklog+10; i++ {
		h.Publish("tick", i) // must never block even though nothing is draining ch
	}
	if len(ch) != subscriberBacklog {
		t.Fatalf("channel len = %d, want %d", len(ch), subscriberBacklog)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	cancel()

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}
