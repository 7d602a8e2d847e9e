package events

import (
	"testing"
	"time"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[string]()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}
	if _, ok := <-ch1; ok {
		t.Fatal("expected unsubscribed channel to be closed")
	}

	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}
}

func TestBroadcasterPublish(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[string]()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish("boot_a")

	for i, ch := range []chan string{ch1, ch2} {
		select {
		case got := <-ch:
			if got != "boot_a" {
				t.Fatalf("subscriber %d: got %q, want boot_a", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int]()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < Buffer*2; i++ {
		b.Publish(i)
	}

	count := 0
	for len(ch) > 0 {
		<-ch
		count++
	}
	if count != Buffer {
		t.Fatalf("expected %d buffered values, got %d", Buffer, count)
	}
}
