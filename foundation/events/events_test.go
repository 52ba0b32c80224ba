package events_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/events"
)

func Test_Events(t *testing.T) {
	evts := events.New()

	ch1 := evts.Acquire("one")
	ch2 := evts.Acquire("two")

	if evts.Acquire("one") != ch1 {
		t.Fatalf("Should get back the same channel for the same id.")
	}

	evts.Send("viewer: block: 1")

	for _, ch := range []chan string{ch1, ch2} {
		if s := <-ch; s != "viewer: block: 1" {
			t.Fatalf("Should receive the message, got %q.", s)
		}
	}

	if err := evts.Release("one"); err != nil {
		t.Fatalf("Should be able to release a channel: %v", err)
	}

	if _, open := <-ch1; open {
		t.Fatalf("Should close a released channel.")
	}

	if err := evts.Release("one"); err == nil {
		t.Fatalf("Should not release a channel twice.")
	}

	// Send never blocks on a receiver that is not reading.
	for i := 0; i < 1000; i++ {
		evts.Send("viewer: flood")
	}

	evts.Shutdown()

	if evts.Receivers() != 0 {
		t.Fatalf("Should remove every channel on shutdown.")
	}

	var n int
	for range ch2 {
		n++
	}
	if n != 100 {
		t.Fatalf("Should keep only the buffered messages, got %d.", n)
	}
}
